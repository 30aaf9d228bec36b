package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/grocery-backend/internal/fulfillment"
	"github.com/angelmondragon/grocery-backend/pkg/config"
	"github.com/angelmondragon/grocery-backend/pkg/db/models"
	"github.com/angelmondragon/grocery-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/grocery-backend/pkg/errors"
)

type stubFulfillment struct {
	history  []models.FulfillmentStepLog
	result   *fulfillment.StepResult
	err      error
	lastStep enums.FulfillmentStep
}

func (s *stubFulfillment) History(context.Context, uuid.UUID) ([]models.FulfillmentStepLog, error) {
	return s.history, s.err
}

func (s *stubFulfillment) RetryStep(_ context.Context, _ uuid.UUID, step enums.FulfillmentStep) (*fulfillment.StepResult, error) {
	s.lastStep = step
	return s.result, s.err
}

func TestAdminFulfillmentRetryParsesStep(t *testing.T) {
	orderID := uuid.New()
	svc := &stubFulfillment{result: &fulfillment.StepResult{Step: enums.StepVendorSMS, Status: enums.StepStatusSucceeded, Attempt: 2}}

	req := withURLParams(authedRequest(http.MethodPost, "/", "", "ops@example.com", enums.RoleAdmin), "orderId", orderID.String(), "step", "vendor_sms")
	resp := httptest.NewRecorder()
	AdminFulfillmentRetry(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.lastStep != enums.StepVendorSMS {
		t.Fatalf("unexpected step %q", svc.lastStep)
	}
	var envelope struct {
		Data fulfillment.StepResult `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.Attempt != 2 {
		t.Fatalf("unexpected attempt %d", envelope.Data.Attempt)
	}
}

func TestAdminFulfillmentRetryRejectsUnknownStep(t *testing.T) {
	req := withURLParams(authedRequest(http.MethodPost, "/", "", "ops@example.com", enums.RoleAdmin), "orderId", uuid.NewString(), "step", "vendor_fax")
	resp := httptest.NewRecorder()
	AdminFulfillmentRetry(&stubFulfillment{}, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestAdminFulfillmentHistoryNotFound(t *testing.T) {
	svc := &stubFulfillment{err: pkgerrors.NotFound("order not found")}
	req := withURLParams(authedRequest(http.MethodGet, "/", "", "ops@example.com", enums.RoleAdmin), "orderId", uuid.NewString())
	resp := httptest.NewRecorder()
	AdminFulfillmentHistory(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{}
	cfg.App.Env = "test"

	resp := httptest.NewRecorder()
	HealthReady(cfg, nil, map[string]Pinger{"db": stubPinger{}}).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if resp.Header().Get("X-Grocery-Env") != "test" {
		t.Fatalf("missing env header")
	}

	resp = httptest.NewRecorder()
	HealthReady(cfg, nil, map[string]Pinger{"redis": stubPinger{err: errors.New("dial tcp: refused")}}).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 got %d", resp.Code)
	}
}
