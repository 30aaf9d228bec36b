// Package stripewebhook turns verified Stripe events into order reconciliation.
package stripewebhook

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/stripe/stripe-go/v83"

	"github.com/angelmondragon/grocery-backend/internal/checkout"
	pkgerrors "github.com/angelmondragon/grocery-backend/pkg/errors"
	"github.com/angelmondragon/grocery-backend/pkg/logger"
)

type sessionReconciler interface {
	ReconcileSession(ctx context.Context, sessionID string) (*checkout.ReconcileResult, error)
}

type ServiceParams struct {
	Checkout sessionReconciler
	Logger   *logger.Logger
}

type Service struct {
	checkout sessionReconciler
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Checkout == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "checkout service required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{checkout: params.Checkout, logg: logg}, nil
}

// HandleEvent reconciles paid checkout sessions. Other event types are
// acknowledged and ignored.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted,
		stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session event")
		}
		if strings.TrimSpace(cs.ID) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "checkout session id missing")
		}
		ctx = s.logg.WithField(ctx, "stripe_session_id", cs.ID)
		// Delayed payment methods complete unpaid and follow up with
		// async_payment_succeeded.
		if cs.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
			s.logg.Info(s.logg.WithField(ctx, "payment_status", string(cs.PaymentStatus)), "checkout session not paid yet")
			return nil
		}
		result, err := s.checkout.ReconcileSession(ctx, cs.ID)
		if err != nil {
			return err
		}
		if result.Created {
			s.logg.Info(s.logg.WithOrderID(ctx, result.Order.ID.String()), "order created from checkout session")
		}
		return nil
	default:
		return nil
	}
}
