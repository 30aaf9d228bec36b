package fulfillment

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/angelmondragon/grocery-backend/internal/repo"
	"github.com/angelmondragon/grocery-backend/pkg/db/models"
	"github.com/angelmondragon/grocery-backend/pkg/enums"
)

// StepLogRepository persists step attempts. Rows are never updated.
type StepLogRepository interface {
	WithTx(tx *gorm.DB) StepLogRepository
	Append(ctx context.Context, entry *models.FulfillmentStepLog) error
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.FulfillmentStepLog, error)
	Latest(ctx context.Context, orderID uuid.UUID, step enums.FulfillmentStep) (*models.FulfillmentStepLog, error)
}

type stepLogRepository struct {
	repo.Store[models.FulfillmentStepLog]
}

func NewStepLogRepository(conn *gorm.DB) StepLogRepository {
	return &stepLogRepository{Store: repo.NewStore[models.FulfillmentStepLog](conn, "fulfillment step log")}
}

func (r *stepLogRepository) WithTx(tx *gorm.DB) StepLogRepository {
	if tx == nil {
		return r
	}
	return &stepLogRepository{Store: r.Store.Tx(tx)}
}

func (r *stepLogRepository) Append(ctx context.Context, entry *models.FulfillmentStepLog) error {
	return r.Create(ctx, entry)
}

// ListByOrder returns every attempt for the order, oldest first.
func (r *stepLogRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.FulfillmentStepLog, error) {
	var rows []models.FulfillmentStepLog
	err := r.DB(ctx).
		Where("order_id = ?", orderID).
		Order("started_at ASC, attempt ASC").
		Find(&rows).Error
	return rows, err
}

// Latest returns the newest attempt of step, or nil when it never ran.
func (r *stepLogRepository) Latest(ctx context.Context, orderID uuid.UUID, step enums.FulfillmentStep) (*models.FulfillmentStepLog, error) {
	var rows []models.FulfillmentStepLog
	err := r.DB(ctx).
		Where("order_id = ? AND step = ?", orderID, step).
		Order("attempt DESC").
		Limit(1).
		Find(&rows).Error
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

// traceIDs reads the active span from ctx. Both values are nil without one.
func traceIDs(ctx context.Context) (traceID, spanID *string) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil, nil
	}
	t, s := sc.TraceID().String(), sc.SpanID().String()
	return &t, &s
}
