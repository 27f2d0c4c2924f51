// Package kafka forwards audit events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"voxid/internal/platform/kafka/producer"
	"voxid/pkg/platform/audit"
)

type Producer interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// Sink serializes events as JSON. Records are keyed by subject so one
// identity's events stay ordered within a partition.
type Sink struct {
	producer Producer
	topic    string
}

func NewSink(p Producer, topic string) *Sink {
	return &Sink{producer: p, topic: topic}
}

func (s *Sink) Append(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	return s.producer.Produce(ctx, &producer.Message{
		Topic: s.topic,
		Key:   []byte(event.Subject),
		Value: payload,
		Headers: map[string]string{
			"event":    event.Action,
			"category": string(audit.AuditEvent(event.Action).Category()),
		},
	})
}
