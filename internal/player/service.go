// Package player implements the registration, score, leaderboard and sync flows
// of the quest client on top of the remote sheet and the local cache.
package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Amitkumar2801/classroom-quest-game/pkg/cache"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/events"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/logger"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/record"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/session"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/sheetdb"
)

// ErrNoPlayer is returned by flows that need a cached player when there is none.
var ErrNoPlayer = errors.New("no registered player in the local cache")

// LocalIDPrefix marks records created while the remote store was unreachable.
const LocalIDPrefix = "local_"

// OfflineWarning annotates a leaderboard built from the local cache.
const OfflineWarning = "Offline mode - showing local data only"

// Config tunes the flows.
type Config struct {
	// ProceedDelay is the hint returned after registration before the game starts.
	ProceedDelay     time.Duration
	LeaderboardLimit int
	// PublishTimeout bounds each event publish; zero means 5s.
	PublishTimeout time.Duration
}

// Service runs the player flows. It is safe for concurrent use; flows that write
// the cache or the remote store run one at a time.
type Service struct {
	remote    sheetdb.Store
	cache     cache.Store
	publisher events.Publisher
	clock     *record.Clock
	logger    *logger.Logger
	cfg       Config

	mu sync.Mutex
}

func NewService(
	l *logger.Logger,
	remote sheetdb.Store,
	store cache.Store,
	publisher events.Publisher,
	clock *record.Clock,
	cfg Config,
) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if cfg.LeaderboardLimit < 1 {
		cfg.LeaderboardLimit = 10
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	return &Service{
		remote:    remote,
		cache:     store,
		publisher: publisher,
		clock:     clock,
		logger:    l.Named("player"),
		cfg:       cfg,
	}
}

func newLocalID() string {
	return LocalIDPrefix + uuid.NewString()
}

func (s *Service) loadPlayer(ctx context.Context) (record.StudentRecord, error) {
	rec, err := s.cache.LoadPlayer(ctx)
	if err != nil {
		return record.StudentRecord{}, fmt.Errorf("failed to read local cache: %w", err)
	}
	if rec == nil {
		return record.StudentRecord{}, ErrNoPlayer
	}
	return *rec, nil
}

func (s *Service) loadState(ctx context.Context) (session.State, error) {
	st, err := s.cache.LoadState(ctx)
	if err != nil {
		return session.State{}, fmt.Errorf("failed to read session state: %w", err)
	}
	return st, nil
}

func (s *Service) saveState(ctx context.Context, st session.State) error {
	if err := s.cache.SaveState(ctx, st); err != nil {
		return fmt.Errorf("failed to save session state: %w", err)
	}
	return nil
}

// publish sends an event without letting a broker failure change the flow outcome.
func (s *Service) publish(ctx context.Context, t events.Type, src events.Source, rec record.StudentRecord, at time.Time) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.PublishTimeout)
	defer cancel()

	ev := events.NewPlayerEvent(t, src, rec, at)
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("failed to publish player event",
			zap.Error(err),
			zap.String("event_id", ev.ID),
			zap.String("type", string(t)),
			zap.Int64("roll", rec.Roll))
	}
}

func sourceOf(remoteOK bool) events.Source {
	if remoteOK {
		return events.SourceRemote
	}
	return events.SourceLocal
}
