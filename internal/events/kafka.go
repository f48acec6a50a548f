// Package events publishes settlement events to Kafka for downstream
// consumers (analytics, accounting export).
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fasol-market/api/internal/service"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer used by Publisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewWriter creates a writer for topic on brokers.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           50 * time.Millisecond,
	}
}

// Publisher is a service.Notifier that writes one message per event. Messages
// are keyed by order id so every event of an order lands on one partition
// in commit order.
type Publisher struct {
	w       MessageWriter
	timeout time.Duration
}

func NewPublisher(w MessageWriter) *Publisher {
	return &Publisher{w: w, timeout: 5 * time.Second}
}

// message is the wire format on the topic.
type message struct {
	Type       string        `json:"type"`
	OrderID    string        `json:"order_id"`
	PaymentID  string        `json:"payment_id"`
	OccurredAt time.Time     `json:"occurred_at"`
	Order      service.Order `json:"order"`
}

func (p *Publisher) Notify(ctx context.Context, event service.Event) error {
	value, err := json.Marshal(message{
		Type:       event.Type,
		OrderID:    event.Order.ID,
		PaymentID:  event.Order.PaymentID,
		OccurredAt: event.OccurredAt,
		Order:      event.Order,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte("order-" + event.Order.ID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte("order." + event.Type)},
		},
		Time: event.OccurredAt,
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish order.%s for %s: %w", event.Type, event.Order.ID, err)
	}

	log.Debug().Str("event", event.Type).Str("order_id", event.Order.ID).Msg("event published")
	return nil
}

func (p *Publisher) Close() error {
	return p.w.Close()
}
