package player

import (
	"context"
	"fmt"

	"github.com/Amitkumar2801/classroom-quest-game/pkg/record"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/sheetdb"
)

// Lookup returns the remote record for roll, or sheetdb.ErrNotFound.
func (s *Service) Lookup(ctx context.Context, roll int64) (record.StudentRecord, error) {
	found, err := s.remote.FindByRoll(ctx, roll)
	if err != nil {
		return record.StudentRecord{}, err
	}
	if len(found) == 0 {
		return record.StudentRecord{}, fmt.Errorf("roll %d: %w", roll, sheetdb.ErrNotFound)
	}
	return found[0], nil
}

// Status reports the cached player and the session phase.
func (s *Service) Status(ctx context.Context) (StatusResult, error) {
	rec, err := s.cache.LoadPlayer(ctx)
	if err != nil {
		return StatusResult{}, fmt.Errorf("failed to read local cache: %w", err)
	}
	st, err := s.loadState(ctx)
	if err != nil {
		return StatusResult{}, err
	}
	return StatusResult{Player: rec, State: st, Phase: st.Phase()}, nil
}

// Ping checks the remote store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.remote.Ping(ctx)
}
