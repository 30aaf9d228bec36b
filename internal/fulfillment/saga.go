// Package fulfillment runs the post-order side effects for one vendor order:
// the purchase-order document, vendor and customer emails, text messages and
// in-app notifications. Steps are attempted in a fixed order and never roll
// back; a failed step is recorded and the saga moves on.
package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/multierr"

	"github.com/angelmondragon/grocery-backend/internal/notifications"
	"github.com/angelmondragon/grocery-backend/pkg/db/models"
	"github.com/angelmondragon/grocery-backend/pkg/documents"
	"github.com/angelmondragon/grocery-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/grocery-backend/pkg/errors"
	"github.com/angelmondragon/grocery-backend/pkg/logger"
	"github.com/angelmondragon/grocery-backend/pkg/mailer"
	"github.com/angelmondragon/grocery-backend/pkg/metrics"
	"github.com/angelmondragon/grocery-backend/pkg/sms"
)

const purchaseOrderFilename = "purchase-order-%s.pdf"

type orderReader interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

type vendorReader interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Vendor, error)
}

type notifier interface {
	Create(ctx context.Context, in notifications.CreateInput) (*models.Notification, error)
}

// skipError marks a step that could not run for lack of input. It still
// counts as a failure.
type skipError struct{ reason string }

func (e skipError) Error() string { return "skipped: " + e.reason }

var errMissingContact = skipError{reason: "missing contact"}

// StepResult is the outcome of one step attempt.
type StepResult struct {
	Step    enums.FulfillmentStep `json:"step"`
	Status  enums.StepStatus      `json:"status"`
	Attempt int                   `json:"attempt"`
	Error   string                `json:"error,omitempty"`

	err error
}

// Result summarizes one saga run.
type Result struct {
	OrderID uuid.UUID        `json:"orderId"`
	RunID   uuid.UUID        `json:"runId"`
	Status  enums.SagaStatus `json:"status"`
	Success bool             `json:"success"`
	Steps   []StepResult     `json:"steps"`
	Errors  []error          `json:"-"`
}

// Err combines every recorded step error, or nil on success.
func (r Result) Err() error {
	return multierr.Combine(r.Errors...)
}

// Params wires the saga. Any sender left nil makes its steps fail with a
// configuration error.
type Params struct {
	Orders    orderReader
	Vendors   vendorReader
	Documents documents.Renderer
	Email     mailer.Sender
	SMS       sms.Sender
	Notifier  notifier
	StepLogs  StepLogRepository
	Metrics   *metrics.FulfillmentMetrics
	Tracer    trace.Tracer
	Logger    *logger.Logger
	FromName  string
	Clock     func() time.Time
}

// Saga executes the fulfillment steps for an order.
type Saga struct {
	orders    orderReader
	vendors   vendorReader
	documents documents.Renderer
	email     mailer.Sender
	sms       sms.Sender
	notifier  notifier
	logs      StepLogRepository
	metrics   *metrics.FulfillmentMetrics
	tracer    trace.Tracer
	logg      *logger.Logger
	fromName  string
	clock     func() time.Time
}

// NewSaga validates required dependencies.
func NewSaga(p Params) (*Saga, error) {
	if p.Orders == nil || p.Vendors == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment requires order and vendor readers")
	}
	if p.StepLogs == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment requires a step log repository")
	}
	s := &Saga{
		orders:    p.Orders,
		vendors:   p.Vendors,
		documents: p.Documents,
		email:     p.Email,
		sms:       p.SMS,
		notifier:  p.Notifier,
		logs:      p.StepLogs,
		metrics:   p.Metrics,
		tracer:    p.Tracer,
		logg:      p.Logger,
		fromName:  p.FromName,
		clock:     p.Clock,
	}
	if s.tracer == nil {
		s.tracer = noop.NewTracerProvider().Tracer("fulfillment")
	}
	if s.logg == nil {
		s.logg = logger.Nop()
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	return s, nil
}

// run carries state between steps of one execution.
type run struct {
	order    models.Order
	vendor   models.Vendor
	document []byte
}

type stepFunc func(ctx context.Context, r *run) error

func (s *Saga) stepFor(step enums.FulfillmentStep) stepFunc {
	switch step {
	case enums.StepPurchaseOrderDocument:
		return s.renderDocument
	case enums.StepVendorEmail:
		return s.vendorEmail
	case enums.StepVendorSMS:
		return s.vendorSMS
	case enums.StepCustomerSMS:
		return s.customerSMS
	case enums.StepCustomerInApp:
		return s.customerInApp
	case enums.StepVendorInApp:
		return s.vendorInApp
	case enums.StepCustomerEmail:
		return s.customerEmail
	}
	return nil
}

// Run attempts every step once, in order. Failures never stop the run; they
// are collected on the result.
func (s *Saga) Run(ctx context.Context, orderID uuid.UUID) Result {
	result := Result{OrderID: orderID, RunID: uuid.New(), Status: enums.SagaStatusStarted}
	ctx = s.logg.WithFields(ctx, map[string]any{"order_id": orderID.String(), "run_id": result.RunID.String()})

	ctx, span := s.tracer.Start(ctx, "fulfillment.run", trace.WithAttributes(
		attribute.String("order.id", orderID.String()),
	))
	defer span.End()

	state, err := s.load(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		s.logg.Error(ctx, "fulfillment could not load order", err)
		result.Errors = append(result.Errors, err)
		result.Status = enums.SagaStatusCompleted
		s.metrics.ObserveRun(false)
		return result
	}

	for _, step := range enums.FulfillmentSteps {
		sr := s.attempt(ctx, state, step, result.RunID)
		result.Steps = append(result.Steps, sr)
		if sr.Status.Failed() {
			result.Errors = append(result.Errors, fmt.Errorf("%s: %w", step, sr.err))
		}
	}

	result.Status = enums.SagaStatusCompleted
	result.Success = len(result.Errors) == 0
	s.metrics.ObserveRun(result.Success)
	if result.Success {
		s.logg.Info(ctx, "fulfillment completed")
	} else {
		s.logg.Warn(s.logg.WithField(ctx, "failed_steps", len(result.Errors)), "fulfillment completed with failures")
	}
	return result
}

// RetryStep re-runs one step that has not yet succeeded.
func (s *Saga) RetryStep(ctx context.Context, orderID uuid.UUID, step enums.FulfillmentStep) (*StepResult, error) {
	if !step.IsValid() {
		return nil, pkgerrors.Validation("invalid fulfillment step").
			WithDetails(map[string]any{"step": step.String()})
	}
	latest, err := s.logs.Latest(ctx, orderID, step)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read step history")
	}
	if latest != nil && latest.Status == enums.StepStatusSucceeded {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "step already succeeded").
			WithDetails(map[string]any{"step": step.String()})
	}

	state, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithOrderID(ctx, orderID.String())

	// Emails carry the document, so rebuild it without recording a step.
	if (step == enums.StepVendorEmail || step == enums.StepCustomerEmail) && s.documents != nil {
		if doc, err := s.documents.RenderPurchaseOrder(ctx, documents.PurchaseOrder{Order: state.order, Vendor: state.vendor}); err == nil {
			state.document = doc
		} else {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "retry sends email without purchase order")
		}
	}

	sr := s.attempt(ctx, state, step, uuid.New())
	return &sr, nil
}

// History returns every recorded attempt for an order, oldest first.
func (s *Saga) History(ctx context.Context, orderID uuid.UUID) ([]models.FulfillmentStepLog, error) {
	rows, err := s.logs.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list fulfillment history")
	}
	return rows, nil
}

func (s *Saga) load(ctx context.Context, orderID uuid.UUID) (*run, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	vendor, err := s.vendors.Get(ctx, order.VendorID)
	if err != nil {
		return nil, err
	}
	return &run{order: *order, vendor: *vendor}, nil
}

func (s *Saga) attempt(ctx context.Context, state *run, step enums.FulfillmentStep, runID uuid.UUID) StepResult {
	spanCtx, span := s.tracer.Start(ctx, "fulfillment."+step.String())
	defer span.End()
	stepCtx := s.logg.WithField(spanCtx, "step", step.String())

	startedAt := s.clock()
	err := safeCall(stepCtx, state, s.stepFor(step))
	finishedAt := s.clock()

	status := enums.StepStatusSucceeded
	var skip skipError
	switch {
	case errors.As(err, &skip):
		status = enums.StepStatusSkipped
	case err != nil:
		status = enums.StepStatusFailed
	}

	sr := StepResult{Step: step, Status: status, Attempt: s.nextAttempt(stepCtx, state.order.ID, step), err: err}
	entry := &models.FulfillmentStepLog{
		OrderID:    state.order.ID,
		RunID:      runID,
		Step:       step,
		Attempt:    sr.Attempt,
		Status:     status,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
	}
	entry.TraceID, entry.SpanID = traceIDs(spanCtx)
	if err != nil {
		msg := err.Error()
		sr.Error = msg
		entry.ErrorMessage = &msg
		span.RecordError(err)
	}
	if logErr := s.logs.Append(stepCtx, entry); logErr != nil {
		s.logg.Error(stepCtx, "record fulfillment step", logErr)
	}
	s.metrics.ObserveStep(step.String(), string(status), finishedAt.Sub(startedAt))

	switch status {
	case enums.StepStatusSucceeded:
		s.logg.Info(stepCtx, "fulfillment step succeeded")
	case enums.StepStatusSkipped:
		s.logg.Warn(s.logg.WithField(stepCtx, "reason", skip.reason), "fulfillment step skipped")
	default:
		s.logg.Error(stepCtx, "fulfillment step failed", err)
	}
	return sr
}

func (s *Saga) nextAttempt(ctx context.Context, orderID uuid.UUID, step enums.FulfillmentStep) int {
	latest, err := s.logs.Latest(ctx, orderID, step)
	if err != nil || latest == nil {
		return 1
	}
	return latest.Attempt + 1
}

// safeCall turns a panicking step into an ordinary failure.
func safeCall(ctx context.Context, state *run, fn stepFunc) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("step panicked: %v", rec)
		}
	}()
	if fn == nil {
		return errors.New("unknown step")
	}
	return fn(ctx, state)
}

func notConfigured(what string) error {
	return pkgerrors.New(pkgerrors.CodeDependency, what+" not configured")
}

func (s *Saga) renderDocument(ctx context.Context, r *run) error {
	if s.documents == nil {
		return notConfigured("document renderer")
	}
	doc, err := s.documents.RenderPurchaseOrder(ctx, documents.PurchaseOrder{Order: r.order, Vendor: r.vendor})
	if err != nil {
		return err
	}
	r.document = doc
	return nil
}

func (s *Saga) vendorEmail(ctx context.Context, r *run) error {
	to := vendorContact(r.vendor)
	if to == "" {
		return errMissingContact
	}
	return s.sendEmail(ctx, r, to, toVendor)
}

func (s *Saga) customerEmail(ctx context.Context, r *run) error {
	if r.order.UserEmail == "" {
		return errMissingContact
	}
	return s.sendEmail(ctx, r, r.order.UserEmail, toCustomer)
}

func (s *Saga) sendEmail(ctx context.Context, r *run, to string, who audience) error {
	if s.email == nil {
		return notConfigured("email sender")
	}
	subject, body, err := renderEmail(r.order, r.vendor, who, len(r.document) > 0)
	if err != nil {
		return err
	}
	msg := mailer.Message{To: to, Subject: subject, HTMLBody: body, FromName: s.fromName}
	if len(r.document) > 0 {
		msg.Attachments = []mailer.Attachment{{
			Filename: fmt.Sprintf(purchaseOrderFilename, r.order.OrderNumber),
			Data:     r.document,
		}}
	}
	return s.email.Send(ctx, msg)
}

func (s *Saga) vendorSMS(ctx context.Context, r *run) error {
	if s.sms == nil {
		return notConfigured("sms sender")
	}
	return s.sms.Send(ctx, r.order.ID, sms.MessageOrderReceived, sms.RecipientVendor, r.vendor.Language)
}

func (s *Saga) customerSMS(ctx context.Context, r *run) error {
	if s.sms == nil {
		return notConfigured("sms sender")
	}
	return s.sms.Send(ctx, r.order.ID, sms.MessageOrderPlaced, sms.RecipientCustomer, r.order.Language)
}

func (s *Saga) customerInApp(ctx context.Context, r *run) error {
	if r.order.UserEmail == "" {
		return errMissingContact
	}
	c := copyFor(r.order.Language)
	return s.notify(ctx, r, r.order.UserEmail, enums.NotificationTypeOrderPlaced, fmt.Sprintf(c.InAppCustomer, r.order.OrderNumber), c.CustIntro)
}

func (s *Saga) vendorInApp(ctx context.Context, r *run) error {
	to := vendorContact(r.vendor)
	if to == "" {
		return errMissingContact
	}
	c := copyFor(r.vendor.Language)
	return s.notify(ctx, r, to, enums.NotificationTypeOrderReceived, fmt.Sprintf(c.InAppVendor, r.order.OrderNumber), c.VendorIntro)
}

func (s *Saga) notify(ctx context.Context, r *run, to string, kind enums.NotificationType, title, message string) error {
	if s.notifier == nil {
		return notConfigured("notifier")
	}
	orderID := r.order.ID
	link := "/orders/" + orderID.String()
	_, err := s.notifier.Create(ctx, notifications.CreateInput{
		RecipientEmail: to,
		Type:           kind,
		Title:          title,
		Message:        message,
		OrderID:        &orderID,
		Link:           &link,
	})
	return err
}

func vendorContact(v models.Vendor) string {
	if v.ContactEmail == nil {
		return ""
	}
	return *v.ContactEmail
}
