package events

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Amitkumar2801/classroom-quest-game/pkg/metrics"
)

// Publisher sends player events somewhere durable.
type Publisher interface {
	Publish(ctx context.Context, ev PlayerEvent) error

	// Close flushes pending writes and releases the connection.
	Close() error
}

// messageWriter is the subset of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a Kafka topic keyed by Roll.
type KafkaPublisher struct {
	writer messageWriter
}

var _ Publisher = (*KafkaPublisher)(nil)

// PublisherConfig holds Kafka producer configuration.
type PublisherConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

func NewKafkaPublisher(cfg PublisherConfig) *KafkaPublisher {
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return newKafkaPublisher(&kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           timeout,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	})
}

func newKafkaPublisher(w messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

// Publish blocks until the broker acknowledges the event or ctx is done.
func (p *KafkaPublisher) Publish(ctx context.Context, ev PlayerEvent) error {
	value, err := ev.Encode()
	if err != nil {
		metrics.EventsPublishErrorsTotal.Inc()
		return err
	}

	msg := kafka.Message{
		Key:   ev.Key(),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		metrics.EventsPublishErrorsTotal.Inc()
		return fmt.Errorf("failed to publish %s event: %w", ev.Type, err)
	}
	metrics.EventsPublishedTotal.Inc()
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops every event. It is used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, ev PlayerEvent) error { return nil }

func (NopPublisher) Close() error { return nil }
