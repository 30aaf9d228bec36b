package helpers

import (
	"strings"

	pkgerrors "github.com/angelmondragon/grocery-backend/pkg/errors"
)

// Delivery is where and how an order is delivered.
type Delivery struct {
	Address string
	City    string
	Phone   *string
	Notes   *string
}

// ValidateDelivery trims fields in place and rejects a missing address or city.
func ValidateDelivery(d *Delivery) error {
	if d == nil {
		return pkgerrors.Validation("delivery details are required")
	}
	d.Address = strings.TrimSpace(d.Address)
	d.City = strings.TrimSpace(d.City)
	d.Phone = trimmedOrNil(d.Phone)
	d.Notes = trimmedOrNil(d.Notes)

	missing := []string{}
	if d.Address == "" {
		missing = append(missing, "delivery_address")
	}
	if d.City == "" {
		missing = append(missing, "delivery_city")
	}
	if len(missing) > 0 {
		return pkgerrors.Validation("delivery details incomplete").
			WithDetails(map[string]any{"missing": missing})
	}
	return nil
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
