package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Amitkumar2801/classroom-quest-game/internal/player"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/cache"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/config"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/events"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/logger"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/record"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/sheetdb"
)

const usage = `usage: player [-config file] <command> [flags]

commands:
  register     register or log in a student
  update       add points to the current player
  leaderboard  print the top players
  sync         push pending local progress
  lookup       print the remote row for a roll
  status       print the cached player and session state
  watch        follow connectivity and serve the player endpoints
`

func main() {
	configPath := flag.String("config", "", "optional config file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	// 1. Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.ValidatePlayer(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize logger. Command output goes to stdout, logs to stderr.
	l, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Environment,
		ServiceName: cfg.ServiceName,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer l.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Initialize components
	a, err := newApp(ctx, cfg, l)
	if err != nil {
		l.Error("failed to initialize player client", err)
		os.Exit(1)
	}
	defer a.close()

	// 4. Run command
	cmd, args := flag.Arg(0), flag.Args()[1:]
	l.Debug("running command", zap.String("command", cmd))
	if err := a.run(ctx, cmd, args); err != nil {
		var verr *record.ValidationError
		switch {
		case errors.As(err, &verr), errors.Is(err, errUsage):
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		case errors.Is(err, context.Canceled):
			l.Info("player client stopping")
		default:
			l.Error("command failed", err, zap.String("command", cmd))
			os.Exit(1)
		}
	}
}

// app holds the wired player client.
type app struct {
	cfg       *config.AppConfig
	logger    *logger.Logger
	remote    *sheetdb.Client
	svc       *player.Service
	publisher events.Publisher
	closers   []func() error
}

func newApp(ctx context.Context, cfg *config.AppConfig, l *logger.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: l}

	clock, err := record.NewClock(cfg.Registration.Timezone)
	if err != nil {
		return nil, err
	}

	store, err := a.newCache(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	a.remote = sheetdb.NewClient(sheetdb.Config{
		BaseURL:     cfg.Remote.BaseURL,
		APIKey:      cfg.Remote.APIKey,
		Timeout:     cfg.Remote.Timeout,
		MaxAttempts: cfg.Remote.MaxAttempts,
	}, l)

	a.publisher = events.NopPublisher{}
	if cfg.EventsEnabled() {
		kp := events.NewKafkaPublisher(events.PublisherConfig{
			Brokers: cfg.Events.Brokers,
			Topic:   cfg.Events.Topic,
		})
		a.publisher = kp
		a.closers = append(a.closers, kp.Close)
		l.Info("publishing player events", zap.Strings("brokers", cfg.Events.Brokers), zap.String("topic", cfg.Events.Topic))
	}

	a.svc = player.NewService(l, a.remote, store, a.publisher, clock, player.Config{
		ProceedDelay:     cfg.Registration.ProceedDelay,
		LeaderboardLimit: cfg.Leaderboard.Limit,
	})
	return a, nil
}

func (a *app) newCache(ctx context.Context) (cache.Store, error) {
	switch a.cfg.Cache.Backend {
	case config.CacheBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     a.cfg.Cache.RedisAddr,
			Password: a.cfg.Cache.RedisPassword,
			DB:       a.cfg.Cache.RedisDB,
		})
		a.closers = append(a.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return cache.NewRedisStore(client, a.cfg.Cache.KeyPrefix), nil
	default:
		return cache.NewFileStore(a.cfg.Cache.Path), nil
	}
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
}
