package stripewebhook

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stripe/stripe-go/v83"

	"github.com/angelmondragon/grocery-backend/internal/checkout"
	"github.com/angelmondragon/grocery-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/grocery-backend/pkg/errors"
	"github.com/angelmondragon/grocery-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/grocery-backend/pkg/redis"
)

type stubReconciler struct {
	sessions []string
	err      error
}

func (s *stubReconciler) ReconcileSession(_ context.Context, id string) (*checkout.ReconcileResult, error) {
	s.sessions = append(s.sessions, id)
	if s.err != nil {
		return nil, s.err
	}
	return &checkout.ReconcileResult{Order: &models.Order{ID: uuid.New()}, Created: true}, nil
}

func sessionEvent(t *testing.T, eventType stripe.EventType, status stripe.CheckoutSessionPaymentStatus) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"id": "cs_test_1", "object": "checkout.session", "payment_status": status})
	if err != nil {
		t.Fatalf("marshal session: %v", err)
	}
	return &stripe.Event{ID: "evt_1", Type: eventType, Data: &stripe.EventData{Raw: raw}}
}

func newService(t *testing.T, rec *stubReconciler) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Checkout: rec})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	return svc
}

func TestHandleEventReconcilesPaidSession(t *testing.T) {
	rec := &stubReconciler{}
	svc := newService(t, rec)

	err := svc.HandleEvent(context.Background(), sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, stripe.CheckoutSessionPaymentStatusPaid))
	if err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(rec.sessions) != 1 || rec.sessions[0] != "cs_test_1" {
		t.Fatalf("expected cs_test_1 reconciled, got %v", rec.sessions)
	}
}

func TestHandleEventWaitsForAsyncPayment(t *testing.T) {
	rec := &stubReconciler{}
	svc := newService(t, rec)

	err := svc.HandleEvent(context.Background(), sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, stripe.CheckoutSessionPaymentStatusUnpaid))
	if err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(rec.sessions) != 0 {
		t.Fatalf("unpaid session must not reconcile")
	}

	err = svc.HandleEvent(context.Background(), sessionEvent(t, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded, stripe.CheckoutSessionPaymentStatusPaid))
	if err != nil {
		t.Fatalf("handle async event: %v", err)
	}
	if len(rec.sessions) != 1 {
		t.Fatalf("expected async success to reconcile")
	}
}

func TestHandleEventSurfacesReconcileErrors(t *testing.T) {
	rec := &stubReconciler{err: pkgerrors.New(pkgerrors.CodeIdempotency, "reconciliation in progress")}
	svc := newService(t, rec)

	err := svc.HandleEvent(context.Background(), sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, stripe.CheckoutSessionPaymentStatusPaid))
	if !pkgerrors.Is(err, pkgerrors.CodeIdempotency) {
		t.Fatalf("expected idempotency error, got %v", err)
	}
}

func TestHandleEventIgnoresOtherTypes(t *testing.T) {
	rec := &stubReconciler{}
	svc := newService(t, rec)
	event := &stripe.Event{Type: stripe.EventTypeInvoicePaid, Data: &stripe.EventData{Raw: json.RawMessage(`{}`)}}

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if len(rec.sessions) != 0 {
		t.Fatalf("expected no reconciliation")
	}
}

func TestHandleEventRejectsMissingData(t *testing.T) {
	svc := newService(t, &stubReconciler{})
	if err := svc.HandleEvent(context.Background(), &stripe.Event{}); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestEventGuardMarksAndReleases(t *testing.T) {
	mr := miniredis.RunT(t)
	manager, err := idempotency.NewManager(redis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()})), time.Hour)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	guard, err := NewEventGuard(manager)
	if err != nil {
		t.Fatalf("guard: %v", err)
	}
	ctx := context.Background()

	if seen, err := guard.CheckAndMark(ctx, "evt_1"); err != nil || seen {
		t.Fatalf("first delivery: seen=%v err=%v", seen, err)
	}
	if seen, _ := guard.CheckAndMark(ctx, "evt_1"); !seen {
		t.Fatalf("expected duplicate detected")
	}
	if err := guard.Delete(ctx, "evt_1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if seen, _ := guard.CheckAndMark(ctx, "evt_1"); seen {
		t.Fatalf("expected released event handled again")
	}
}
