// Package changefeed carries news document changes from the admin API to the
// notification worker over Kafka.
package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/herewego/transfer-admin/internal/models"
)

// Header keys set on every change message.
const (
	HeaderEventID = "event_id"
	HeaderKind    = "kind"
)

// MessageWriter is the subset of *kafka.Writer used by the publisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Publisher writes change events keyed by document id, so every change to a
// document lands on the same partition in order.
type Publisher struct {
	w   MessageWriter
	now func() time.Time
}

// NewWriter returns a Kafka writer configured for the changes topic.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
	}
}

// NewPublisher wraps w.
func NewPublisher(w MessageWriter) *Publisher {
	return &Publisher{w: w, now: time.Now}
}

// Publish emits one change event and returns its id.
func (p *Publisher) Publish(ctx context.Context, change models.Change) (string, error) {
	event := models.ChangeEvent{
		EventID:    uuid.NewString(),
		DocumentID: change.DocumentID,
		Before:     change.Before,
		After:      change.After,
		OccurredAt: p.now().UTC(),
	}

	msg, err := Encode(event, change.Kind)
	if err != nil {
		return "", err
	}

	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return "", fmt.Errorf("write change event: %w", err)
	}
	return event.EventID, nil
}

// Encode builds the Kafka message for event.
func Encode(event models.ChangeEvent, kind models.ChangeKind) (kafka.Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal change event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(event.DocumentID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: HeaderEventID, Value: []byte(event.EventID)},
			{Key: HeaderKind, Value: []byte(kind.String())},
		},
	}, nil
}

// Decode parses a change message. Messages without an event id get a
// deterministic one derived from their partition and offset.
func Decode(msg kafka.Message) (models.ChangeEvent, models.Change, error) {
	var event models.ChangeEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return models.ChangeEvent{}, models.Change{}, fmt.Errorf("decode change event: %w", err)
	}

	if event.DocumentID == "" {
		event.DocumentID = string(msg.Key)
	}
	if event.DocumentID == "" {
		return models.ChangeEvent{}, models.Change{}, fmt.Errorf("decode change event: missing document id")
	}
	if event.EventID == "" {
		event.EventID = fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
	}

	change, err := models.NewChange(event.DocumentID, event.Before, event.After)
	if err != nil {
		return models.ChangeEvent{}, models.Change{}, fmt.Errorf("decode change event: %w", err)
	}
	if change.After != nil {
		change.After.ID = event.DocumentID
	}
	if change.Before != nil {
		change.Before.ID = event.DocumentID
	}

	return event, change, nil
}
