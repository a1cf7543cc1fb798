package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Amitkumar2801/classroom-quest-game/internal/mirror"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/config"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/events"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/logger"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/retry"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/server"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/worker"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/writer"
)

func main() {
	configPath := flag.String("config", "", "optional config file")
	flag.Parse()

	// 1. Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.ValidateMirror(); err != nil {
		fmt.Printf("invalid config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize logger
	l, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Environment,
		ServiceName: "mirror",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer l.Sync()

	l.Info("mirror service initializing", zap.String("env", cfg.Environment))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Initialize PostgreSQL
	pgWriter, err := writer.NewPostgresWriter(ctx, writer.PostgresConfig{
		URI:      cfg.Postgres.URI,
		MinConns: int32(cfg.Postgres.MinConns),
		MaxConns: int32(cfg.Postgres.MaxConns),
	}, l)
	if err != nil {
		l.Error("failed to connect to postgres", err)
		os.Exit(1)
	}
	defer pgWriter.Close()

	// 4. Initialize subscriber
	subscriber := events.NewKafkaSubscriber(events.SubscriberConfig{
		Brokers: cfg.Events.Brokers,
		Topic:   cfg.Events.Topic,
		GroupID: cfg.Events.GroupID,
	})

	// 5. Initialize worker pool
	writeRetry := retry.DefaultOptions()
	writeRetry.MaxAttempts = 3
	workerPool := worker.NewWorkerPool(l, pgWriter, subscriber, worker.Config{
		Workers:       cfg.Mirror.WorkerCount,
		BatchSize:     cfg.Mirror.BatchSize,
		FlushInterval: cfg.Mirror.FlushInterval,
		WriteRetry:    writeRetry,
	})

	// 6. Create service
	svc := mirror.NewService(l, subscriber, workerPool)

	// 7. Start observability server
	obsServer := server.New(cfg.Server.Addr, l, server.WithReadyCheck("postgres", pgWriter.Ping))
	go func() {
		if err := obsServer.Start(); err != nil {
			l.Error("observability server failed", err)
		}
	}()

	// 8. Start service
	l.Info("mirror service starting", zap.Strings("brokers", cfg.Events.Brokers), zap.String("topic", cfg.Events.Topic))
	if err := svc.Start(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			l.Info("mirror service stopping")
		} else {
			l.Error("mirror service failed", err)
		}
	}

	// Clean up observability server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = obsServer.Shutdown(shutdownCtx)
}
