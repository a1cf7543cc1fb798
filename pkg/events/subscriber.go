package events

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// Message is a fetched player event together with its position in the topic.
type Message struct {
	Key       []byte
	Value     []byte
	Partition int
	Offset    int64
	Topic     string
	Raw       kafka.Message
}

// Subscriber delivers player events and acknowledges them on request.
// A commit moves the partition offset past every message up to the highest one
// given, so callers must only commit a partition's messages in order.
type Subscriber interface {
	Consume(ctx context.Context) (<-chan Message, <-chan error)
	Commit(ctx context.Context, msgs ...Message) error
	Close() error
}

// KafkaSubscriber reads the event topic as a member of a consumer group.
type KafkaSubscriber struct {
	reader *kafka.Reader
}

var _ Subscriber = (*KafkaSubscriber)(nil)

type SubscriberConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

func NewKafkaSubscriber(cfg SubscriberConfig) *KafkaSubscriber {
	return &KafkaSubscriber{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			Topic:    cfg.Topic,
			GroupID:  cfg.GroupID,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
	}
}

// Consume fetches until ctx is done or the reader fails. Nothing is committed
// here; offsets only move through Commit.
func (s *KafkaSubscriber) Consume(ctx context.Context) (<-chan Message, <-chan error) {
	msgChan := make(chan Message)
	errChan := make(chan error, 1)

	go func() {
		defer close(msgChan)
		defer close(errChan)

		for {
			m, err := s.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() == nil {
					errChan <- fmt.Errorf("failed to fetch player event: %w", err)
				}
				return
			}

			select {
			case msgChan <- fromKafka(m):
			case <-ctx.Done():
				return
			}
		}
	}()

	return msgChan, errChan
}

func fromKafka(m kafka.Message) Message {
	return Message{
		Key:       m.Key,
		Value:     m.Value,
		Partition: m.Partition,
		Offset:    m.Offset,
		Topic:     m.Topic,
		Raw:       m,
	}
}

func (s *KafkaSubscriber) Commit(ctx context.Context, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	raw := make([]kafka.Message, len(msgs))
	for i, m := range msgs {
		raw[i] = m.Raw
	}
	if err := s.reader.CommitMessages(ctx, raw...); err != nil {
		return fmt.Errorf("failed to commit %d player events: %w", len(msgs), err)
	}
	return nil
}

func (s *KafkaSubscriber) Close() error {
	return s.reader.Close()
}
