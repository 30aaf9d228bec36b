package enums

import "slices"

// OrderStatus tracks an order through picking and delivery. Only pending is
// written by order creation; the rest belong to fulfillment workflows.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShopping  OrderStatus = "shopping"
	OrderStatusReady     OrderStatus = "ready_for_delivery"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusShopping,
	OrderStatusReady,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

func (s OrderStatus) String() string {
	return string(s)
}

func (s OrderStatus) IsValid() bool {
	return slices.Contains(validOrderStatuses, s)
}

func ParseOrderStatus(value string) (OrderStatus, error) {
	return member(validOrderStatuses, "order status", value, value)
}
