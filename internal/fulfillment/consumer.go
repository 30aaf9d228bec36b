package fulfillment

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/grocery-backend/pkg/enums"
	"github.com/angelmondragon/grocery-backend/pkg/logger"
	"github.com/angelmondragon/grocery-backend/pkg/outbox"
	"github.com/angelmondragon/grocery-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/grocery-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/grocery-backend/pkg/outbox/registry"
)

const consumerName = "fulfillment"

type subscription interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

type runner interface {
	Run(ctx context.Context, orderID uuid.UUID) Result
}

// Consumer starts a saga for every order_created event on the orders
// subscription.
type Consumer struct {
	saga         runner
	subscription subscription
	idempotency  *idempotency.Manager
	decoders     *registry.DecoderRegistry
	logg         *logger.Logger
}

// NewConsumer builds the fulfillment consumer.
func NewConsumer(saga runner, sub subscription, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if saga == nil {
		return nil, fmt.Errorf("fulfillment saga required")
	}
	if sub == nil {
		return nil, fmt.Errorf("orders subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		saga:         saga,
		subscription: sub,
		idempotency:  manager,
		decoders:     registry.NewOrderDecoders(),
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if eventType != string(enums.EventOrderCreated) {
		c.logg.Info(logCtx, "skipping non order_created event")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	decoded, err := c.decoders.Decode(enums.EventOrderCreated, envelope.Version, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		return processResult{ack: true}
	}
	event, ok := decoded.(*payloads.OrderCreatedEvent)
	if !ok || event.OrderID == uuid.Nil {
		c.logg.Warn(logCtx, "order_created payload missing order id")
		return processResult{ack: true}
	}
	logCtx = c.logg.WithOrderID(logCtx, event.OrderID.String())

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, consumerName, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	// Steps are not idempotent, so a partial run is acked and repaired
	// through RetryStep rather than redelivery.
	result := c.saga.Run(logCtx, event.OrderID)
	if err := result.Err(); err != nil {
		c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "fulfillment saga finished with failures")
	}
	return processResult{ack: true}
}
