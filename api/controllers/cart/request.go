package cart

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/grocery-backend/internal/cartsync"
)

type addItemRequest struct {
	ProductID   uuid.UUID  `json:"product_id" validate:"required"`
	Quantity    float64    `json:"quantity" validate:"gt=0"`
	HouseholdID *uuid.UUID `json:"household_id,omitempty"`
}

// updateItemRequest allows zero, which removes the line.
type updateItemRequest struct {
	Quantity *float64 `json:"quantity" validate:"required,gte=0"`
}

type cartView struct {
	Identity string             `json:"identity"`
	Lines    []cartsync.Line    `json:"lines"`
	Notice   cartsync.Notice    `json:"notice,omitempty"`
	Totals   map[string]float64 `json:"totals"`
}

func newCartView(session *cartsync.Session, notice cartsync.Notice) cartView {
	lines := session.Lines()
	totals := map[string]float64{}
	for _, line := range lines {
		totals[string(line.Currency)] += line.UnitPrice * line.Quantity
	}
	return cartView{
		Identity: session.Identity(),
		Lines:    lines,
		Notice:   notice,
		Totals:   totals,
	}
}
