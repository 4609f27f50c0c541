// Package kafka implements an eventstream publisher on Apache Kafka.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/dialhaven/recall/pkg/eventstream"
)

// Config holds Kafka publisher settings.
type Config struct {
	// Brokers is the list of bootstrap broker addresses.
	Brokers []string

	// Topic is the topic events are published to.
	Topic string
}

// Publisher publishes memory lifecycle events to a Kafka topic. Messages
// are keyed so events for the same tenant or thread land on the same
// partition and preserve order.
type Publisher struct {
	writer *kafkago.Writer
}

// NewPublisher creates a Kafka-backed publisher.
func NewPublisher(cfg Config) *Publisher {
	return &Publisher{
		writer: &kafkago.Writer{
			Addr:     kafkago.TCP(cfg.Brokers...),
			Topic:    cfg.Topic,
			Balancer: &kafkago.Hash{},
		},
	}
}

// PublishRecordWritten publishes a record-written event keyed by tenant.
func (p *Publisher) PublishRecordWritten(ctx context.Context, event *eventstream.RecordWrittenEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	return p.publish(ctx, []byte(event.TenantID), event)
}

// PublishThreadConsolidated publishes a consolidation event keyed by thread.
func (p *Publisher) PublishThreadConsolidated(ctx context.Context, event *eventstream.ThreadConsolidatedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	return p.publish(ctx, []byte(event.ThreadID), event)
}

func (p *Publisher) publish(ctx context.Context, key []byte, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	if err := p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   key,
		Value: payload,
	}); err != nil {
		return fmt.Errorf("writing event: %w", err)
	}

	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ eventstream.Publisher = (*Publisher)(nil)
