package player

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Amitkumar2801/classroom-quest-game/pkg/connectivity"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/events"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/metrics"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/record"
)

// Sync pushes the cached player to the remote store when a sync is pending.
// It is a no-op otherwise. A remote failure leaves the flags set for the next
// attempt and is reported through the result, not the error.
func (s *Service) Sync(ctx context.Context) (SyncResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncLocked(ctx)
}

func (s *Service) syncLocked(ctx context.Context) (SyncResult, error) {
	st, err := s.loadState(ctx)
	if err != nil {
		return SyncResult{}, err
	}
	if !st.SyncPending() {
		return SyncResult{State: st}, nil
	}

	rec, err := s.loadPlayer(ctx)
	if err != nil {
		return SyncResult{}, err
	}

	pushed, err := s.push(ctx, rec, st.Connected)
	if err != nil {
		metrics.SyncAttemptsTotal.WithLabelValues("failed").Inc()
		s.logger.Warn("sync failed, will retry on reconnect", zap.Error(err), zap.Int64("roll", rec.Roll))
		return SyncResult{Pending: true, State: st, RemoteErr: err}, nil
	}
	if pushed != rec {
		if err := s.cache.SavePlayer(ctx, pushed); err != nil {
			return SyncResult{}, fmt.Errorf("failed to cache merged player: %w", err)
		}
	}

	st = st.Synced()
	if err := s.saveState(ctx, st); err != nil {
		return SyncResult{}, err
	}

	metrics.SyncAttemptsTotal.WithLabelValues("synced").Inc()
	s.logger.Info("offline data synced", zap.Int64("roll", pushed.Roll))
	s.publish(ctx, events.TypeSynced, events.SourceRemote, pushed, s.clock.Time())
	return SyncResult{Pending: true, Synced: true, State: st}, nil
}

// push writes rec to the store and returns what the store now holds. A player
// the store has never seen is inserted, or merged with an existing row for the
// same roll so progress recorded there is never lowered.
func (s *Service) push(ctx context.Context, rec record.StudentRecord, connected bool) (record.StudentRecord, error) {
	if !connected {
		found, err := s.remote.FindByRoll(ctx, rec.Roll)
		if err != nil {
			return rec, fmt.Errorf("failed to look up roll %d: %w", rec.Roll, err)
		}
		if len(found) == 0 {
			if _, err := s.remote.Insert(ctx, rec); err != nil {
				return rec, fmt.Errorf("failed to insert roll %d: %w", rec.Roll, err)
			}
			return rec, nil
		}
		rec = rec.MaxProgress(found[0])
	}

	if _, err := s.remote.PatchByRoll(ctx, rec.Roll, rec.ProgressPatch()); err != nil {
		return rec, fmt.Errorf("failed to patch roll %d: %w", rec.Roll, err)
	}
	return rec, nil
}

// HandleReconnect clears the offline flag and attempts a sync.
func (s *Service) HandleReconnect(ctx context.Context) (SyncResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.loadState(ctx)
	if err != nil {
		return SyncResult{}, err
	}
	if err := s.saveState(ctx, st.Reconnected()); err != nil {
		return SyncResult{}, err
	}
	return s.syncLocked(ctx)
}

// HandleDisconnect forces the offline flag.
func (s *Service) HandleDisconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.loadState(ctx)
	if err != nil {
		return err
	}
	return s.saveState(ctx, st.Disconnected())
}

// Watch applies connectivity transitions until ctx is done or the watcher fails.
func (s *Service) Watch(ctx context.Context, w connectivity.Watcher) error {
	eventChan, errChan := w.Watch(ctx)

	for {
		select {
		case ev, ok := <-eventChan:
			if !ok {
				return nil
			}
			s.handleConnectivity(ctx, ev)

		case err, ok := <-errChan:
			if !ok {
				errChan = nil
				continue
			}
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("connectivity watcher error: %w", err)
			}

		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Service) handleConnectivity(ctx context.Context, ev connectivity.Event) {
	if !ev.Online {
		s.logger.Info("offline mode activated")
		if err := s.HandleDisconnect(ctx); err != nil {
			s.logger.Error("failed to record disconnect", err)
		}
		return
	}

	s.logger.Info("back online, attempting to sync")
	res, err := s.HandleReconnect(ctx)
	switch {
	case errors.Is(err, ErrNoPlayer):
		s.logger.Debug("nothing to sync")
	case err != nil:
		s.logger.Error("failed to handle reconnect", err)
	case res.Synced:
		s.logger.Info("reconnect sync complete")
	}
}
