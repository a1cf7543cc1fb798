// Package mirror copies player events from Kafka into the PostgreSQL reporting table.
package mirror

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Amitkumar2801/classroom-quest-game/pkg/events"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/logger"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/metrics"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/parser"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/worker"
)

// Pool is the part of the worker pool the service drives.
type Pool interface {
	Start(ctx context.Context)
	Submit(ctx context.Context, job worker.Job) error
	Shutdown(ctx context.Context) error
}

// Service coordinates the subscriber and the worker pool.
type Service struct {
	logger     *logger.Logger
	subscriber events.Subscriber
	pool       Pool
}

func NewService(l *logger.Logger, s events.Subscriber, p Pool) *Service {
	return &Service{
		logger:     l.Named("mirror"),
		subscriber: s,
		pool:       p,
	}
}

// Start consumes until ctx is done or the subscriber fails, then shuts down.
func (s *Service) Start(ctx context.Context) error {
	s.logger.Info("starting mirror service")

	s.pool.Start(ctx)
	msgChan, errChan := s.subscriber.Consume(ctx)

	for {
		select {
		case msg, ok := <-msgChan:
			if !ok {
				return s.Shutdown(context.Background())
			}
			metrics.MirrorMessagesConsumedTotal.Inc()

			if err := s.handleMessage(ctx, msg); err != nil {
				s.logger.Error("failed to handle message", err, zap.Int64("offset", msg.Offset))
			}

		case err, ok := <-errChan:
			if !ok {
				errChan = nil
				continue
			}
			if err != nil {
				_ = s.Shutdown(context.Background())
				return fmt.Errorf("subscriber error: %w", err)
			}

		case <-ctx.Done():
			return s.Shutdown(context.Background())
		}
	}
}

func (s *Service) handleMessage(ctx context.Context, msg events.Message) error {
	row, err := parser.ParsePlayerEvent(msg.Value)
	if err != nil {
		metrics.MirrorMalformedTotal.Inc()
		s.logger.Warn("skipping malformed message",
			zap.Error(err),
			zap.Int64("offset", msg.Offset),
			zap.ByteString("payload", msg.Value))

		// Malformed messages will never parse; commit so they are not redelivered.
		return s.subscriber.Commit(ctx, msg)
	}

	// The pool commits the message once its row is written.
	return s.pool.Submit(ctx, worker.Job{
		Row:     row,
		Message: msg,
	})
}

// Shutdown flushes the pool and closes the subscriber.
func (s *Service) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down mirror service")

	errPool := s.pool.Shutdown(ctx)
	errSub := s.subscriber.Close()

	if errPool != nil || errSub != nil {
		return fmt.Errorf("shutdown errors: pool=%v, subscriber=%v", errPool, errSub)
	}
	return nil
}
