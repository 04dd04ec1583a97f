package webhooks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"shipportal/internal/store"
)

// Event types delivered to customer subscriptions.
const (
	EventShipmentCreated = "shipment.created"
	EventShipmentUpdated = "shipment.updated"
)

// KnownEvents lists the event types a subscription may name.
var KnownEvents = []string{EventShipmentCreated, EventShipmentUpdated}

type Publisher struct {
	Store store.WebhookStore
	Log   *zap.Logger
}

func NewPublisher(s store.WebhookStore, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{Store: s, Log: log.Named("webhooks")}
}

// Emit enqueues an event for every subscription the customer has for eventType.
// It returns the number of deliveries queued.
func (p *Publisher) Emit(ctx context.Context, customerID, eventType string, data any) int {
	subs, err := p.Store.GetSubscriptionsForEvent(ctx, customerID, eventType)
	if err != nil {
		p.Log.Warn("subscription lookup failed", zap.String("event_type", eventType), zap.Error(err))
		return 0
	}
	if len(subs) == 0 {
		return 0
	}
	payload := map[string]any{
		"id":         "evt_" + uuid.New().String(),
		"type":       eventType,
		"customerId": customerID,
		"ts":         time.Now().UTC().Format(time.RFC3339),
		"data":       data,
	}
	body, _ := json.Marshal(payload)
	n := 0
	for _, s := range subs {
		if _, err := p.Store.EnqueueWebhook(ctx, customerID, s.ID, eventType, s.URL, s.Secret, body); err != nil {
			p.Log.Warn("enqueue webhook failed", zap.String("subscription_id", s.ID), zap.Error(err))
			continue
		}
		n++
	}
	return n
}
