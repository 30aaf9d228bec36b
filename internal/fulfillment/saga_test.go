package fulfillment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/angelmondragon/grocery-backend/internal/notifications"
	"github.com/angelmondragon/grocery-backend/internal/orders"
	"github.com/angelmondragon/grocery-backend/internal/vendors"
	"github.com/angelmondragon/grocery-backend/pkg/db"
	"github.com/angelmondragon/grocery-backend/pkg/db/dbtest"
	"github.com/angelmondragon/grocery-backend/pkg/db/models"
	"github.com/angelmondragon/grocery-backend/pkg/documents"
	"github.com/angelmondragon/grocery-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/grocery-backend/pkg/errors"
	"github.com/angelmondragon/grocery-backend/pkg/mailer"
	"github.com/angelmondragon/grocery-backend/pkg/sms"
)

type stubRenderer struct {
	err   error
	panic bool
	calls int
}

func (s *stubRenderer) RenderPurchaseOrder(_ context.Context, _ documents.PurchaseOrder) ([]byte, error) {
	s.calls++
	if s.panic {
		panic("chrome crashed")
	}
	if s.err != nil {
		return nil, s.err
	}
	return []byte("%PDF-1.4"), nil
}

type stubMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (s *stubMailer) Send(_ context.Context, msg mailer.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

type smsCall struct {
	messageType sms.MessageType
	recipient   sms.Recipient
	language    enums.Language
}

type stubSMS struct {
	calls []smsCall
	err   error
}

func (s *stubSMS) Send(_ context.Context, _ uuid.UUID, messageType sms.MessageType, recipient sms.Recipient, language enums.Language) error {
	s.calls = append(s.calls, smsCall{messageType, recipient, language})
	return s.err
}

type sagaHarness struct {
	conn     *db.Client
	renderer *stubRenderer
	mail     *stubMailer
	sms      *stubSMS
	notes    notifications.Service
	logs     StepLogRepository
	saga     *Saga
	order    *models.Order
	vendor   *models.Vendor
}

func newSagaHarness(t *testing.T, vendorEmail *string) *sagaHarness {
	t.Helper()
	conn := dbtest.Open(t)
	ctx := context.Background()

	vendorRepo := vendors.NewRepository(conn.DB())
	vendor := &models.Vendor{Name: "Green Farm", ContactEmail: vendorEmail, Currency: enums.CurrencyILS, Language: enums.LanguageHebrew}
	require.NoError(t, vendorRepo.Create(ctx, vendor))

	orderRepo := orders.NewRepository(conn.DB())
	order := &models.Order{
		OrderNumber:     "PO-D260401-H0930-C0001-V0001",
		UserEmail:       "dana@example.com",
		VendorID:        vendor.ID,
		TotalAmount:     35,
		DeliveryPrice:   5,
		OrderCurrency:   enums.CurrencyILS,
		Language:        enums.LanguageEnglish,
		PaymentMethod:   enums.PaymentMethodCash,
		DeliveryAddress: "1 Herzl St",
		DeliveryCity:    "Haifa",
		Items: []models.OrderItem{{
			ProductID: uuid.New(), ProductName: "Tomatoes", Unit: "kg", Quantity: 3, Price: 10,
		}},
	}
	require.NoError(t, orderRepo.Create(ctx, order))

	notes, err := notifications.NewService(notifications.NewRepository(conn.DB()))
	require.NoError(t, err)

	h := &sagaHarness{
		conn:     conn,
		renderer: &stubRenderer{},
		mail:     &stubMailer{},
		sms:      &stubSMS{},
		notes:    notes,
		logs:     NewStepLogRepository(conn.DB()),
		order:    order,
		vendor:   vendor,
	}
	tick := time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)
	saga, err := NewSaga(Params{
		Orders:    orderRepo,
		Vendors:   vendorRepo,
		Documents: h.renderer,
		Email:     h.mail,
		SMS:       h.sms,
		Notifier:  notes,
		StepLogs:  h.logs,
		FromName:  "Grocery Orders",
		Clock: func() time.Time {
			tick = tick.Add(time.Millisecond)
			return tick
		},
	})
	require.NoError(t, err)
	h.saga = saga
	return h
}

func strPtr(v string) *string { return &v }

func statuses(steps []StepResult) map[enums.FulfillmentStep]enums.StepStatus {
	out := make(map[enums.FulfillmentStep]enums.StepStatus, len(steps))
	for _, s := range steps {
		out[s.Step] = s.Status
	}
	return out
}

func TestRunAllStepsSucceed(t *testing.T) {
	h := newSagaHarness(t, strPtr("orders@greenfarm.example"))
	ctx := context.Background()

	result := h.saga.Run(ctx, h.order.ID)
	assert.True(t, result.Success)
	assert.Equal(t, enums.SagaStatusCompleted, result.Status)
	assert.NoError(t, result.Err())
	require.Len(t, result.Steps, len(enums.FulfillmentSteps))
	for i, step := range enums.FulfillmentSteps {
		assert.Equal(t, step, result.Steps[i].Step)
		assert.Equal(t, enums.StepStatusSucceeded, result.Steps[i].Status)
		assert.Equal(t, 1, result.Steps[i].Attempt)
	}

	require.Len(t, h.mail.sent, 2)
	assert.Equal(t, "orders@greenfarm.example", h.mail.sent[0].To)
	assert.Contains(t, h.mail.sent[0].Subject, "הזמנה חדשה")
	assert.Equal(t, "dana@example.com", h.mail.sent[1].To)
	assert.Contains(t, h.mail.sent[1].Subject, "is confirmed")
	for _, msg := range h.mail.sent {
		require.Len(t, msg.Attachments, 1)
		assert.Equal(t, "purchase-order-PO-D260401-H0930-C0001-V0001.pdf", msg.Attachments[0].Filename)
		assert.Equal(t, "Grocery Orders", msg.FromName)
	}

	assert.Equal(t, []smsCall{
		{sms.MessageOrderReceived, sms.RecipientVendor, enums.LanguageHebrew},
		{sms.MessageOrderPlaced, sms.RecipientCustomer, enums.LanguageEnglish},
	}, h.sms.calls)

	customer, err := h.notes.List(ctx, "dana@example.com", notifications.ListParams{})
	require.NoError(t, err)
	require.Len(t, customer.Items, 1)
	assert.Equal(t, enums.NotificationTypeOrderPlaced, customer.Items[0].Type)
	vendor, err := h.notes.List(ctx, "orders@greenfarm.example", notifications.ListParams{})
	require.NoError(t, err)
	require.Len(t, vendor.Items, 1)
	assert.Equal(t, enums.NotificationTypeOrderReceived, vendor.Items[0].Type)

	history, err := h.saga.History(ctx, h.order.ID)
	require.NoError(t, err)
	assert.Len(t, history, len(enums.FulfillmentSteps))
}

func TestRunDocumentFailureStillAttemptsRemainingSteps(t *testing.T) {
	h := newSagaHarness(t, strPtr("orders@greenfarm.example"))
	h.renderer.err = errors.New("chrome unavailable")

	result := h.saga.Run(context.Background(), h.order.ID)
	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.ErrorContains(t, result.Err(), "chrome unavailable")

	got := statuses(result.Steps)
	require.Len(t, got, 7)
	assert.Equal(t, enums.StepStatusFailed, got[enums.StepPurchaseOrderDocument])
	for _, step := range enums.FulfillmentSteps[1:] {
		assert.Equal(t, enums.StepStatusSucceeded, got[step], step)
	}
	require.Len(t, h.mail.sent, 2)
	for _, msg := range h.mail.sent {
		assert.Empty(t, msg.Attachments)
	}
}

func TestRunRecoversFromPanickingStep(t *testing.T) {
	h := newSagaHarness(t, strPtr("orders@greenfarm.example"))
	h.renderer.panic = true

	result := h.saga.Run(context.Background(), h.order.ID)
	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.ErrorContains(t, result.Err(), "chrome crashed")
	assert.Len(t, result.Steps, 7)
}

func TestRunSkipsVendorStepsWithoutContact(t *testing.T) {
	h := newSagaHarness(t, nil)

	result := h.saga.Run(context.Background(), h.order.ID)
	assert.False(t, result.Success)
	got := statuses(result.Steps)
	assert.Equal(t, enums.StepStatusSkipped, got[enums.StepVendorEmail])
	assert.Equal(t, enums.StepStatusSkipped, got[enums.StepVendorInApp])
	assert.Equal(t, enums.StepStatusSucceeded, got[enums.StepCustomerEmail])
	assert.Len(t, result.Errors, 2)
	assert.ErrorContains(t, result.Err(), "missing contact")
}

func TestRunUnknownOrderReportsLoadFailure(t *testing.T) {
	h := newSagaHarness(t, nil)

	result := h.saga.Run(context.Background(), uuid.New())
	assert.False(t, result.Success)
	assert.Empty(t, result.Steps)
	require.Len(t, result.Errors, 1)
	assert.True(t, pkgerrors.Is(result.Errors[0], pkgerrors.CodeNotFound))
}

func TestRunRecordsStepLogsWithTrace(t *testing.T) {
	h := newSagaHarness(t, strPtr("orders@greenfarm.example"))
	h.sms.err = errors.New("gateway down")

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	result := h.saga.Run(ctx, h.order.ID)
	assert.False(t, result.Success)
	assert.Len(t, result.Errors, 2)

	rows, err := h.logs.ListByOrder(context.Background(), h.order.ID)
	require.NoError(t, err)
	require.Len(t, rows, 7)
	for i, row := range rows {
		assert.Equal(t, enums.FulfillmentSteps[i], row.Step)
		assert.Equal(t, result.RunID, row.RunID)
		require.NotNil(t, row.TraceID)
		assert.Equal(t, traceID.String(), *row.TraceID)
		assert.False(t, row.FinishedAt.Before(row.StartedAt))
	}
	assert.Equal(t, enums.StepStatusFailed, rows[2].Status)
	require.NotNil(t, rows[2].ErrorMessage)
	assert.Contains(t, *rows[2].ErrorMessage, "gateway down")
}

func TestRetryStepRunsFailedStepAgain(t *testing.T) {
	h := newSagaHarness(t, strPtr("orders@greenfarm.example"))
	ctx := context.Background()
	h.mail.err = errors.New("relay refused")

	first := h.saga.Run(ctx, h.order.ID)
	require.False(t, first.Success)

	h.mail.err = nil
	retried, err := h.saga.RetryStep(ctx, h.order.ID, enums.StepVendorEmail)
	require.NoError(t, err)
	assert.Equal(t, enums.StepStatusSucceeded, retried.Status)
	assert.Equal(t, 2, retried.Attempt)
	require.Len(t, h.mail.sent, 1)
	assert.Len(t, h.mail.sent[0].Attachments, 1)
	assert.Equal(t, 2, h.renderer.calls)

	latest, err := h.logs.Latest(ctx, h.order.ID, enums.StepVendorEmail)
	require.NoError(t, err)
	assert.Equal(t, enums.StepStatusSucceeded, latest.Status)
}

func TestRetryStepRejectsSucceededAndInvalidSteps(t *testing.T) {
	h := newSagaHarness(t, strPtr("orders@greenfarm.example"))
	ctx := context.Background()
	require.True(t, h.saga.Run(ctx, h.order.ID).Success)

	_, err := h.saga.RetryStep(ctx, h.order.ID, enums.StepCustomerSMS)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))

	_, err = h.saga.RetryStep(ctx, h.order.ID, enums.FulfillmentStep("fax"))
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestRetryStepAllowsNeverAttemptedStep(t *testing.T) {
	h := newSagaHarness(t, strPtr("orders@greenfarm.example"))

	result, err := h.saga.RetryStep(context.Background(), h.order.ID, enums.StepCustomerInApp)
	require.NoError(t, err)
	assert.Equal(t, enums.StepStatusSucceeded, result.Status)
	assert.Equal(t, 1, result.Attempt)
}

func TestRunWithoutSendersFailsTheirSteps(t *testing.T) {
	h := newSagaHarness(t, strPtr("orders@greenfarm.example"))
	saga, err := NewSaga(Params{
		Orders:   orders.NewRepository(h.conn.DB()),
		Vendors:  vendors.NewRepository(h.conn.DB()),
		StepLogs: h.logs,
	})
	require.NoError(t, err)

	result := saga.Run(context.Background(), h.order.ID)
	assert.False(t, result.Success)
	assert.Len(t, result.Errors, 7)
	assert.True(t, pkgerrors.Is(result.Errors[0], pkgerrors.CodeDependency))
}
