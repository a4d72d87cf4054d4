// Package events exports UI events to Kafka for external consumers.
// The publisher is optional: a nil *Publisher is a safe no-op, so the
// server never branches on whether export is configured.
package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// UIEvent is one exported record, keyed by correlation id.
type UIEvent struct {
	Type          string `json:"type"`
	CorrelationID string `json:"correlation_id"`
	Detail        string `json:"detail,omitempty"`
	Timestamp     string `json:"timestamp"`
}

// Publisher wraps a Kafka writer for best-effort event export.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher creates a publisher, or nil when brokers is blank.
func NewPublisher(brokers, topic string) *Publisher {
	brokers = strings.TrimSpace(brokers)
	if brokers == "" {
		return nil
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(brokers, ",")...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
	return &Publisher{writer: w}
}

// Publish writes one event. Errors are logged and dropped; export is
// observability, never on the user path.
func (p *Publisher) Publish(ctx context.Context, evt UIEvent) {
	if p == nil {
		return
	}
	if evt.Timestamp == "" {
		evt.Timestamp = time.Now().Format(time.RFC3339)
	}
	value, err := json.Marshal(evt)
	if err != nil {
		return
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	msg := kafka.Message{
		Key:   []byte(evt.CorrelationID),
		Value: value,
		Time:  time.Now(),
	}
	if err := p.writer.WriteMessages(writeCtx, msg); err != nil {
		log.Warn().Err(err).Str("type", evt.Type).Msg("ui event export failed")
	}
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
