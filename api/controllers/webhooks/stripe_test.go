package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/webhook"

	stripewebhook "github.com/angelmondragon/grocery-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/grocery-backend/pkg/outbox/idempotency"
	pkgredis "github.com/angelmondragon/grocery-backend/pkg/redis"
)

const testSigningSecret = "whsec_test"

type delivery struct {
	payload   []byte
	signature string
}

func (d delivery) send(h http.Handler) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(d.payload))
	if d.signature != "" {
		req.Header.Set("Stripe-Signature", d.signature)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStripeWebhookDedupesRedelivery(t *testing.T) {
	d := signedSessionCompleted(t)
	service := &recordingService{}
	handler := StripeWebhook(service, secretVerifier{testSigningSecret}, newGuard(t), nil)

	for i := 1; i <= 2; i++ {
		if rec := d.send(handler); rec.Code != http.StatusOK {
			t.Fatalf("delivery %d: expected 200, got %d (%s)", i, rec.Code, rec.Body.String())
		}
	}
	if service.calls != 1 {
		t.Fatalf("duplicate delivery reached the service: %d calls", service.calls)
	}
}

func TestStripeWebhookRejectsBadSignatures(t *testing.T) {
	d := signedSessionCompleted(t)
	service := &recordingService{}
	handler := StripeWebhook(service, secretVerifier{testSigningSecret}, newGuard(t), nil)

	tests := []struct {
		name      string
		signature string
		want      int
	}{
		{"forged", "t=1,v1=deadbeef", http.StatusUnauthorized},
		{"missing", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := delivery{payload: d.payload, signature: tt.signature}.send(handler)
		if rec.Code != tt.want {
			t.Fatalf("%s: expected %d, got %d", tt.name, tt.want, rec.Code)
		}
	}
	if service.calls != 0 {
		t.Fatalf("service must not see unverified events")
	}
}

func TestStripeWebhookFailureUnmarksEvent(t *testing.T) {
	d := signedSessionCompleted(t)
	service := &recordingService{err: errors.New("database unavailable")}
	handler := StripeWebhook(service, secretVerifier{testSigningSecret}, newGuard(t), nil)

	if rec := d.send(handler); rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on failure, got %d", rec.Code)
	}
	service.err = nil
	if rec := d.send(handler); rec.Code != http.StatusOK {
		t.Fatalf("expected redelivery to succeed, got %d", rec.Code)
	}
	if service.calls != 2 {
		t.Fatalf("expected two attempts, got %d", service.calls)
	}
}

func TestStripeWebhookWithoutServiceIsUnavailable(t *testing.T) {
	d := signedSessionCompleted(t)
	rec := d.send(StripeWebhook(nil, secretVerifier{testSigningSecret}, newGuard(t), nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func newGuard(t *testing.T) *stripewebhook.EventGuard {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })

	manager, err := idempotency.NewManager(pkgredis.Wrap(raw), time.Minute)
	if err != nil {
		t.Fatalf("manager setup: %v", err)
	}
	guard, err := stripewebhook.NewEventGuard(manager)
	if err != nil {
		t.Fatalf("guard setup: %v", err)
	}
	return guard
}

func signedSessionCompleted(t *testing.T) delivery {
	t.Helper()
	session, err := json.Marshal(&stripe.CheckoutSession{
		ID:            "cs_test_" + uuid.NewString(),
		PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
		Metadata:      map[string]string{"vendor_id": uuid.NewString()},
	})
	if err != nil {
		t.Fatalf("marshal session: %v", err)
	}
	payload, err := json.Marshal(&stripe.Event{
		ID:         "evt_" + uuid.NewString(),
		Type:       stripe.EventTypeCheckoutSessionCompleted,
		Object:     "event",
		APIVersion: stripe.APIVersion,
		Data:       &stripe.EventData{Raw: session},
	})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testSigningSecret,
		Timestamp: time.Now(),
	})
	return delivery{payload: payload, signature: signed.Header}
}

type secretVerifier struct {
	secret string
}

func (v secretVerifier) ConstructEvent(payload []byte, signature string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, signature, v.secret)
}

type recordingService struct {
	calls int
	err   error
}

func (s *recordingService) HandleEvent(context.Context, *stripe.Event) error {
	s.calls++
	return s.err
}
