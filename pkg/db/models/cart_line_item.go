package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/grocery-backend/pkg/enums"
)

// CartLineItem is one product in a cart, keyed by the owning cart identity.
// UnitPrice is captured in Currency when the line is added and never re-derived.
type CartLineItem struct {
	ID           uuid.UUID      `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	CartIdentity string         `gorm:"column:cart_identity;type:text;not null;index:idx_cart_line_items_identity" json:"cart_identity"`
	ProductID    uuid.UUID      `gorm:"column:product_id;type:uuid;not null" json:"product_id"`
	VendorID     *uuid.UUID     `gorm:"column:vendor_id;type:uuid" json:"vendor_id,omitempty"`
	HouseholdID  *uuid.UUID     `gorm:"column:household_id;type:uuid" json:"household_id,omitempty"`
	UnitPrice    float64        `gorm:"column:unit_price;not null" json:"unit_price"`
	Currency     enums.Currency `gorm:"column:currency;type:text;not null;default:'ILS'" json:"currency"`
	Quantity     float64        `gorm:"column:quantity;not null" json:"quantity"`
	Unit         string         `gorm:"column:unit;type:text;not null;default:'unit'" json:"unit"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (CartLineItem) TableName() string { return "cart_line_items" }

func (c *CartLineItem) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
