package helpers

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/grocery-backend/pkg/currency"
	"github.com/angelmondragon/grocery-backend/pkg/db/models"
	"github.com/angelmondragon/grocery-backend/pkg/enums"
)

// SplitOptions controls SplitByVendor. Converter and TargetCurrency are
// required; Vendors supplies delivery fees.
type SplitOptions struct {
	TargetVendorID  *uuid.UUID
	DefaultVendorID *uuid.UUID
	TargetCurrency  enums.Currency
	Converter       currency.Converter
	Vendors         map[uuid.UUID]models.Vendor
}

// PricedLine is a cart line with its unit price expressed in the group currency.
type PricedLine struct {
	Line      models.CartLineItem
	UnitPrice float64
}

func (p PricedLine) Total() float64 {
	return p.UnitPrice * p.Line.Quantity
}

// VendorGroup is one future order. Total is Subtotal plus DeliveryFee, all in
// Currency and unrounded.
type VendorGroup struct {
	VendorID    uuid.UUID
	Currency    enums.Currency
	Items       []PricedLine
	Subtotal    float64
	DeliveryFee float64
	Total       float64
}

// Warning explains why a line or fee was left out of a group.
type Warning struct {
	LineID uuid.UUID `json:"line_id,omitempty"`
	Reason string    `json:"reason"`
}

// SplitByVendor groups lines by vendor, falling back to the default vendor for
// rows without one, and prices each group in the target currency. Groups keep
// the order in which their vendor first appears. Rows with no resolvable
// vendor are dropped with a warning. With TargetVendorID set only that
// vendor's group is returned.
func SplitByVendor(items []models.CartLineItem, opts SplitOptions) ([]VendorGroup, []Warning, error) {
	if !opts.TargetCurrency.IsValid() {
		return nil, nil, fmt.Errorf("unsupported target currency %q", opts.TargetCurrency)
	}

	var (
		order    []uuid.UUID
		byVendor = map[uuid.UUID]*VendorGroup{}
		warnings []Warning
	)
	for _, item := range items {
		vendorID, ok := resolveVendor(item, opts.DefaultVendorID)
		if !ok {
			warnings = append(warnings, Warning{LineID: item.ID, Reason: "line has no vendor"})
			continue
		}
		if opts.TargetVendorID != nil && vendorID != *opts.TargetVendorID {
			continue
		}

		price, err := opts.Converter.Convert(item.UnitPrice, lineCurrency(item), opts.TargetCurrency)
		if err != nil {
			return nil, warnings, err
		}

		group, seen := byVendor[vendorID]
		if !seen {
			group = &VendorGroup{VendorID: vendorID, Currency: opts.TargetCurrency}
			byVendor[vendorID] = group
			order = append(order, vendorID)
		}
		line := PricedLine{Line: item, UnitPrice: price}
		group.Items = append(group.Items, line)
		group.Subtotal += line.Total()
	}

	groups := make([]VendorGroup, 0, len(order))
	for _, vendorID := range order {
		group := byVendor[vendorID]
		if vendor, ok := opts.Vendors[vendorID]; ok {
			fee, err := opts.Converter.Convert(vendor.DeliveryFee, vendorCurrency(vendor), opts.TargetCurrency)
			if err != nil {
				return nil, warnings, err
			}
			group.DeliveryFee = fee
		} else {
			warnings = append(warnings, Warning{Reason: fmt.Sprintf("vendor %s not found, no delivery fee applied", vendorID)})
		}
		group.Total = group.Subtotal + group.DeliveryFee
		groups = append(groups, *group)
	}
	return groups, warnings, nil
}

func resolveVendor(item models.CartLineItem, fallback *uuid.UUID) (uuid.UUID, bool) {
	if item.VendorID != nil && *item.VendorID != uuid.Nil {
		return *item.VendorID, true
	}
	if fallback != nil && *fallback != uuid.Nil {
		return *fallback, true
	}
	return uuid.Nil, false
}

func lineCurrency(item models.CartLineItem) enums.Currency {
	if item.Currency == "" {
		return currency.Base
	}
	return item.Currency
}

func vendorCurrency(vendor models.Vendor) enums.Currency {
	if vendor.Currency == "" {
		return currency.Base
	}
	return vendor.Currency
}
