package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/grocery-backend/pkg/enums"
)

// Product carries tiered prices in its native Currency. A nil tier falls back
// to BasePrice.
type Product struct {
	ID             uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	VendorID       *uuid.UUID     `gorm:"column:vendor_id;type:uuid;index"`
	Name           string         `gorm:"column:name;type:text;not null"`
	NameLocalized  *string        `gorm:"column:name_localized;type:text"`
	SKU            *string        `gorm:"column:sku;type:text"`
	Unit           string         `gorm:"column:unit;type:text;not null;default:'unit'"`
	Category       *string        `gorm:"column:category;type:text"`
	BasePrice      float64        `gorm:"column:base_price;not null"`
	CustomerPrice  *float64       `gorm:"column:customer_price"`
	HouseholdPrice *float64       `gorm:"column:household_price"`
	Currency       enums.Currency `gorm:"column:currency;type:text;not null;default:'ILS'"`
	IsActive       bool           `gorm:"column:is_active;not null;default:true"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (Product) TableName() string { return "products" }

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// Vendor is a supplier whose items are split into their own order.
type Vendor struct {
	ID           uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Name         string         `gorm:"column:name;type:text;not null"`
	ContactEmail *string        `gorm:"column:contact_email;type:text"`
	ContactPhone *string        `gorm:"column:contact_phone;type:text"`
	DeliveryFee  float64        `gorm:"column:delivery_fee;not null;default:0"`
	Currency     enums.Currency `gorm:"column:currency;type:text;not null;default:'ILS'"`
	Language     enums.Language `gorm:"column:language;type:text;not null;default:'he'"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (Vendor) TableName() string { return "vendors" }

func (v *Vendor) BeforeCreate(*gorm.DB) error {
	ensureID(&v.ID)
	return nil
}

// Household is a customer account unit that staff may order on behalf of.
type Household struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	Code         string            `gorm:"column:code;type:text;not null;uniqueIndex"`
	Name         string            `gorm:"column:name;type:text;not null"`
	ContactName  *string           `gorm:"column:contact_name;type:text"`
	ContactPhone *string           `gorm:"column:contact_phone;type:text"`
	ContactEmail *string           `gorm:"column:contact_email;type:text"`
	Members      []HouseholdMember `gorm:"foreignKey:HouseholdID"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (Household) TableName() string { return "households" }

func (h *Household) BeforeCreate(*gorm.DB) error {
	ensureID(&h.ID)
	return nil
}

// HouseholdMember grants a user email self-service ordering for a household.
type HouseholdMember struct {
	HouseholdID uuid.UUID `gorm:"column:household_id;type:uuid;primaryKey"`
	UserEmail   string    `gorm:"column:user_email;type:text;primaryKey"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (HouseholdMember) TableName() string { return "household_members" }
