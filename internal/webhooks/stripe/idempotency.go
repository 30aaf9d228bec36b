package stripewebhook

import (
	"context"
	"errors"

	"github.com/angelmondragon/grocery-backend/pkg/outbox/idempotency"
)

const eventConsumer = "stripe-webhook"

// EventGuard dedupes Stripe deliveries by event id.
type EventGuard struct {
	manager *idempotency.Manager
}

func NewEventGuard(manager *idempotency.Manager) (*EventGuard, error) {
	if manager == nil {
		return nil, errors.New("idempotency manager is required")
	}
	return &EventGuard{manager: manager}, nil
}

// CheckAndMark reports whether eventID was already handled and marks it
// otherwise.
func (g *EventGuard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	return g.manager.CheckAndMark(ctx, eventConsumer, eventID)
}

// Delete clears the mark after a failed delivery so Stripe's retry is handled.
func (g *EventGuard) Delete(ctx context.Context, eventID string) error {
	return g.manager.Release(ctx, eventConsumer, eventID)
}
