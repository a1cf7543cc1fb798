package player

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Amitkumar2801/classroom-quest-game/pkg/events"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/metrics"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/record"
)

// Register validates the input and records the player remotely, falling back to
// the local cache when the remote store fails. Only invalid input and cache
// failures are returned as errors.
func (s *Service) Register(ctx context.Context, in record.RegistrationInput) (RegistrationResult, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return RegistrationResult{}, err
	}
	roll, err := in.RollNumber()
	if err != nil {
		return RegistrationResult{}, err
	}

	now := s.clock.Time()
	candidate := record.NewCandidate(in, roll, s.clock.Format(now))

	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.loadState(ctx)
	if err != nil {
		return RegistrationResult{}, err
	}

	rec, existing, remoteErr := s.registerRemote(ctx, candidate)
	if remoteErr != nil {
		rec.ID = newLocalID()
		st = st.RegisteredLocally()
		s.logger.Warn("registration fell back to local cache",
			zap.Error(remoteErr),
			zap.Int64("roll", roll),
			zap.String("local_id", rec.ID))
	} else {
		st = st.RegisteredRemotely()
		s.logger.Info("player registered", zap.Int64("roll", roll), zap.Bool("existing", existing))
	}

	if err := s.cache.SavePlayer(ctx, rec); err != nil {
		return RegistrationResult{}, fmt.Errorf("failed to cache player: %w", err)
	}
	if err := s.saveState(ctx, st); err != nil {
		return RegistrationResult{}, err
	}

	src := sourceOf(remoteErr == nil)
	metrics.RegistrationsTotal.WithLabelValues(string(src)).Inc()
	s.publish(ctx, events.TypeRegistered, src, rec, now)

	return RegistrationResult{
		Record:       rec,
		State:        st,
		Existing:     existing,
		Degraded:     remoteErr != nil,
		RemoteErr:    remoteErr,
		ProceedAfter: s.cfg.ProceedDelay,
	}, nil
}

// registerRemote returns the best known record even on failure, so progress
// read from the store survives a failed LastPlayed patch.
func (s *Service) registerRemote(ctx context.Context, candidate record.StudentRecord) (record.StudentRecord, bool, error) {
	found, err := s.remote.FindByRoll(ctx, candidate.Roll)
	if err != nil {
		return candidate, false, fmt.Errorf("failed to look up roll %d: %w", candidate.Roll, err)
	}

	if len(found) > 0 {
		rec := candidate.WithProgressFrom(found[0])
		if _, err := s.remote.PatchByRoll(ctx, rec.Roll, record.LastPlayedPatch(rec.LastPlayed)); err != nil {
			return rec, true, fmt.Errorf("failed to touch roll %d: %w", rec.Roll, err)
		}
		return rec, true, nil
	}

	if _, err := s.remote.Insert(ctx, candidate); err != nil {
		return candidate, false, fmt.Errorf("failed to insert roll %d: %w", candidate.Roll, err)
	}
	return candidate, false, nil
}
