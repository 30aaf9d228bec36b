package payloads

import "github.com/google/uuid"

// OrderSource records which entry point created an order.
type OrderSource string

const (
	SourceDirect         OrderSource = "direct"
	SourcePaymentSession OrderSource = "payment_session"
)

// OrderCreatedEvent triggers the post-order fulfillment saga for one order.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID   `json:"order_id"`
	OrderNumber string      `json:"order_number"`
	VendorID    uuid.UUID   `json:"vendor_id"`
	HouseholdID *uuid.UUID  `json:"household_id,omitempty"`
	UserEmail   string      `json:"user_email"`
	Source      OrderSource `json:"source"`
}
