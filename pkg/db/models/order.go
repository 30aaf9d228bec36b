package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/grocery-backend/pkg/enums"
)

// Order is the per-vendor envelope created at placement. The uuid ID is the
// uniqueness anchor; OrderNumber is display only and may collide.
type Order struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber string     `gorm:"column:order_number;type:text;not null;index"`
	UserEmail   string     `gorm:"column:user_email;type:text;not null;index"`
	VendorID    uuid.UUID  `gorm:"column:vendor_id;type:uuid;not null"`
	HouseholdID *uuid.UUID `gorm:"column:household_id;type:uuid;index"`

	HouseholdCode         *string `gorm:"column:household_code;type:text"`
	HouseholdName         *string `gorm:"column:household_name;type:text"`
	HouseholdContactName  *string `gorm:"column:household_contact_name;type:text"`
	HouseholdContactPhone *string `gorm:"column:household_contact_phone;type:text"`

	Items         []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	TotalAmount   float64           `gorm:"column:total_amount;not null"`
	DeliveryPrice float64           `gorm:"column:delivery_price;not null;default:0"`
	OrderCurrency enums.Currency    `gorm:"column:order_currency;type:text;not null"`
	Language      enums.Language    `gorm:"column:language;type:text;not null;default:'he'"`
	Status        enums.OrderStatus `gorm:"column:status;type:text;not null;default:'pending'"`

	PaymentStatus   enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	IsPaid          bool                `gorm:"column:is_paid;not null;default:false"`
	PaymentMethod   enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	StripeSessionID *string             `gorm:"column:stripe_session_id;type:text;uniqueIndex:idx_orders_stripe_session_id"`

	DeliveryAddress string     `gorm:"column:delivery_address;type:text;not null"`
	DeliveryCity    string     `gorm:"column:delivery_city;type:text;not null"`
	DeliveryPhone   *string    `gorm:"column:delivery_phone;type:text"`
	DeliveryNotes   *string    `gorm:"column:delivery_notes;type:text"`
	DeliveryDate    *time.Time `gorm:"column:delivery_date"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string { return "orders" }

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// ComputedTotal returns Σ(price × effective quantity) + delivery price.
func (o Order) ComputedTotal() float64 {
	total := o.DeliveryPrice
	for _, item := range o.Items {
		total += item.LineTotal()
	}
	return total
}

// OrderItem snapshots a product at creation time. Price is in the order's
// currency and is frozen once written.
type OrderItem struct {
	ID                   uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID              uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID            uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	ProductName          string    `gorm:"column:product_name;type:text;not null"`
	ProductNameLocalized *string   `gorm:"column:product_name_localized;type:text"`
	SKU                  *string   `gorm:"column:sku;type:text"`
	Unit                 string    `gorm:"column:unit;type:text;not null"`
	Category             *string   `gorm:"column:category;type:text"`
	Quantity             float64   `gorm:"column:quantity;not null"`
	ActualQuantity       *float64  `gorm:"column:actual_quantity"`
	Price                float64   `gorm:"column:price;not null"`
	ReturnedQuantity     *float64  `gorm:"column:returned_quantity"`
	ReturnReason         *string   `gorm:"column:return_reason;type:text"`
	Position             int       `gorm:"column:position;not null;default:0"`
	CreatedAt            time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (OrderItem) TableName() string { return "order_items" }

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// EffectiveQuantity is the shopped quantity when known, otherwise the ordered one.
func (i OrderItem) EffectiveQuantity() float64 {
	if i.ActualQuantity != nil {
		return *i.ActualQuantity
	}
	return i.Quantity
}

func (i OrderItem) LineTotal() float64 {
	return i.Price * i.EffectiveQuantity()
}
