package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/grocery-backend/pkg/enums"
)

// FulfillmentStepLog is an append-only record of one saga step attempt.
type FulfillmentStepLog struct {
	ID           uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrderID      uuid.UUID             `gorm:"column:order_id;type:uuid;not null;index:idx_fulfillment_step_logs_order_step"`
	RunID        uuid.UUID             `gorm:"column:run_id;type:uuid;not null"`
	Step         enums.FulfillmentStep `gorm:"column:step;type:text;not null;index:idx_fulfillment_step_logs_order_step"`
	Attempt      int                   `gorm:"column:attempt;not null"`
	Status       enums.StepStatus      `gorm:"column:status;type:text;not null"`
	ErrorMessage *string               `gorm:"column:error_message;type:text"`
	TraceID      *string               `gorm:"column:trace_id;type:text"`
	SpanID       *string               `gorm:"column:span_id;type:text"`
	StartedAt    time.Time             `gorm:"column:started_at;not null"`
	FinishedAt   time.Time             `gorm:"column:finished_at;not null"`
	CreatedAt    time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (FulfillmentStepLog) TableName() string { return "fulfillment_step_logs" }

func (l *FulfillmentStepLog) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}
