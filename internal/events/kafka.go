package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer used by KafkaPublisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON messages keyed by Event.Key.
type KafkaPublisher struct {
	topic  string
	writer MessageWriter
}

// NewKafkaPublisher creates a synchronous writer for topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return NewKafkaPublisherWithWriter(topic, &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		RequiredAcks:           kafka.RequireAll,
		Compression:            kafka.Snappy,
		Async:                  false,
		AllowAutoTopicCreation: true,
	})
}

// NewKafkaPublisherWithWriter wires a custom writer.
func NewKafkaPublisherWithWriter(topic string, writer MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{topic: topic, writer: writer}
}

// Publish implements Publisher.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.Type, err)
	}
	msg := kafka.Message{
		Key:   []byte(event.Key),
		Value: body,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "job", Value: []byte(event.Job)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s to %s: %w", event.Type, p.topic, err)
	}
	return nil
}

// Close implements Publisher.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
