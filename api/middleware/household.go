package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/grocery-backend/api/responses"
	pkgerrors "github.com/angelmondragon/grocery-backend/pkg/errors"
	"github.com/angelmondragon/grocery-backend/pkg/logger"
)

const actingHouseholdHeader = "X-Acting-Household"

// ActingHousehold reads the optional X-Acting-Household header. Membership is
// checked when the cart session is resolved and again when orders are placed.
func ActingHousehold(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(actingHouseholdHeader))
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}
			id, err := uuid.Parse(raw)
			if err != nil || id == uuid.Nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Validation("invalid acting household").
					WithDetails(map[string]any{"header": actingHouseholdHeader}))
				return
			}
			ctx := WithActingHousehold(r.Context(), id)
			if logg != nil {
				ctx = logg.WithHouseholdID(ctx, id.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
