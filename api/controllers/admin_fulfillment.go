package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/grocery-backend/api/responses"
	"github.com/angelmondragon/grocery-backend/api/validators"
	"github.com/angelmondragon/grocery-backend/internal/fulfillment"
	"github.com/angelmondragon/grocery-backend/pkg/db/models"
	"github.com/angelmondragon/grocery-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/grocery-backend/pkg/errors"
	"github.com/angelmondragon/grocery-backend/pkg/logger"
)

type fulfillmentAdmin interface {
	History(ctx context.Context, orderID uuid.UUID) ([]models.FulfillmentStepLog, error)
	RetryStep(ctx context.Context, orderID uuid.UUID, step enums.FulfillmentStep) (*fulfillment.StepResult, error)
}

// AdminFulfillmentHistory lists every recorded step attempt for an order.
func AdminFulfillmentHistory(svc fulfillmentAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment unavailable"))
			return
		}

		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.History(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"order_id": orderID, "steps": rows})
	}
}

// AdminFulfillmentRetry re-runs a single step. A step that fails again is
// still a 200; the result carries the failure.
func AdminFulfillmentRetry(svc fulfillmentAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment unavailable"))
			return
		}

		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		step, err := enums.ParseFulfillmentStep(chi.URLParam(r, "step"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Validation(err.Error()).WithDetails(map[string]any{"field": "step"}))
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, orderID.String())
		}
		result, err := svc.RetryStep(ctx, orderID, step)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
