// Package notify delivers committed settlement events to operators.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fasol-market/api/internal/service"
	"github.com/fasol-market/api/internal/ws"
	"github.com/rs/zerolog/log"
)

// Multi fans an event out to every sink. A failing sink does not stop the
// others; all failures are returned joined.
type Multi []service.Notifier

func (m Multi) Notify(ctx context.Context, event service.Event) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Notify(ctx, event); err != nil {
			log.Warn().Err(err).
				Str("event", event.Type).
				Str("order_id", event.Order.ID).
				Str("sink", fmt.Sprintf("%T", sink)).
				Msg("notification sink failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Broadcaster is the subset of *ws.Hub used by Hub.
type Broadcaster interface {
	BroadcastToTopic(topic string, event ws.Event)
}

// Hub pushes order events to dashboards subscribed to the orders topic.
type Hub struct {
	hub Broadcaster
}

func NewHub(hub Broadcaster) *Hub {
	return &Hub{hub: hub}
}

func (h *Hub) Notify(_ context.Context, event service.Event) error {
	payload, err := json.Marshal(event.Order)
	if err != nil {
		return fmt.Errorf("marshal order %s: %w", event.Order.ID, err)
	}
	h.hub.BroadcastToTopic(ws.TopicOrders, ws.Event{
		Type:    "order." + event.Type,
		Payload: payload,
	})
	return nil
}
