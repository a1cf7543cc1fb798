package player

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Amitkumar2801/classroom-quest-game/pkg/events"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/metrics"
)

// UpdateScore adds points to the cached player and raises the level to minLevel
// when it is higher. The cache is written first; the remote patch is best-effort
// and a failure only marks the player as needing a sync.
func (s *Service) UpdateScore(ctx context.Context, points int64, minLevel *int) (UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.loadPlayer(ctx)
	if err != nil {
		return UpdateResult{}, err
	}
	st, err := s.loadState(ctx)
	if err != nil {
		return UpdateResult{}, err
	}

	now := s.clock.Time()
	updated, err := rec.AddScore(points, minLevel, s.clock.Format(now))
	if err != nil {
		return UpdateResult{}, err
	}
	if err := s.cache.SavePlayer(ctx, updated); err != nil {
		return UpdateResult{}, fmt.Errorf("failed to cache score: %w", err)
	}

	result := UpdateResult{Record: updated}
	outcome := "deferred"
	if st.CanWriteRemote() {
		_, err := s.remote.PatchByRoll(ctx, updated.Roll, updated.ProgressPatch())
		if err != nil {
			result.RemoteErr = err
			outcome = "failed"
			s.logger.Warn("score update not synced", zap.Error(err), zap.Int64("roll", updated.Roll))
		} else {
			result.Synced = true
			outcome = "synced"
		}
	} else {
		result.Skipped = true
	}

	if !result.Synced {
		next := st.UpdateDeferred()
		if next != st {
			if err := s.saveState(ctx, next); err != nil {
				return UpdateResult{}, err
			}
		}
		st = next
	}
	result.State = st

	metrics.ScoreUpdatesTotal.WithLabelValues(outcome).Inc()
	s.publish(ctx, events.TypeScoreUpdated, sourceOf(result.Synced), updated, now)
	return result, nil
}
