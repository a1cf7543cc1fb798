package player

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/Amitkumar2801/classroom-quest-game/pkg/metrics"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/record"
)

// Leaderboard returns the top players by score. On any remote failure it
// returns the cached player alone, tagged as local. It never fails.
func (s *Service) Leaderboard(ctx context.Context) LeaderboardResult {
	all, err := s.remote.ListAll(ctx)
	if err != nil {
		s.logger.Warn("leaderboard fell back to local cache", zap.Error(err))
		metrics.LeaderboardReadsTotal.WithLabelValues("local").Inc()
		return s.localLeaderboard(ctx)
	}

	top := Rank(all, s.cfg.LeaderboardLimit)
	count := len(top)
	metrics.LeaderboardReadsTotal.WithLabelValues("remote").Inc()
	return LeaderboardResult{
		Success:   true,
		Data:      top,
		Count:     &count,
		Source:    "remote",
		Timestamp: s.clock.Time().UTC().Format(time.RFC3339Nano),
	}
}

func (s *Service) localLeaderboard(ctx context.Context) LeaderboardResult {
	data := []record.StudentRecord{}
	rec, err := s.cache.LoadPlayer(ctx)
	if err != nil {
		s.logger.Warn("failed to read local cache for leaderboard", zap.Error(err))
	} else if rec != nil && rec.Roll != 0 {
		data = append(data, *rec)
	}
	return LeaderboardResult{
		Success: true,
		Data:    data,
		Source:  "local",
		Warning: OfflineWarning,
	}
}

// Rank orders records by Score descending, keeping store order among equal
// scores, and keeps at most limit entries.
func Rank(recs []record.StudentRecord, limit int) []record.StudentRecord {
	out := make([]record.StudentRecord, len(recs))
	copy(out, recs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
