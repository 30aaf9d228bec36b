package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/grocery-backend/api/middleware"
	"github.com/angelmondragon/grocery-backend/api/responses"
	"github.com/angelmondragon/grocery-backend/api/validators"
	"github.com/angelmondragon/grocery-backend/internal/cartsync"
	"github.com/angelmondragon/grocery-backend/internal/checkout"
	"github.com/angelmondragon/grocery-backend/internal/checkout/helpers"
	"github.com/angelmondragon/grocery-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/grocery-backend/pkg/errors"
	"github.com/angelmondragon/grocery-backend/pkg/logger"
	pkgstripe "github.com/angelmondragon/grocery-backend/pkg/stripe"
)

const deliveryDateLayout = "2006-01-02"

type orderPlacer interface {
	PlaceOrders(ctx context.Context, cartCtx cartsync.CartContext, in checkout.PlaceOrdersInput) (*checkout.PlacementResult, error)
}

type paymentSessionCreator interface {
	CreatePaymentSession(ctx context.Context, cartCtx cartsync.CartContext, in checkout.PlaceOrdersInput) (*pkgstripe.Session, error)
}

type sessionFinalizer interface {
	FinalizeSession(ctx context.Context, caller cartsync.CartContext, sessionID string) (*checkout.ReconcileResult, error)
}

type checkoutRequest struct {
	DeliveryAddress string     `json:"delivery_address" validate:"required,max=500"`
	DeliveryCity    string     `json:"delivery_city" validate:"required,max=120"`
	DeliveryPhone   *string    `json:"delivery_phone,omitempty" validate:"omitempty,max=40"`
	DeliveryNotes   *string    `json:"delivery_notes,omitempty" validate:"omitempty,max=1000"`
	DeliveryDate    *string    `json:"delivery_date,omitempty"`
	Language        string     `json:"language,omitempty"`
	PaymentMethod   string     `json:"payment_method,omitempty"`
	VendorID        *uuid.UUID `json:"vendor_id,omitempty"`
}

func (req checkoutRequest) toInput() (checkout.PlaceOrdersInput, error) {
	in := checkout.PlaceOrdersInput{
		Delivery: helpers.Delivery{
			Address: validators.SanitizeString(req.DeliveryAddress, 500),
			City:    validators.SanitizeString(req.DeliveryCity, 120),
			Phone:   req.DeliveryPhone,
			Notes:   req.DeliveryNotes,
		},
		VendorID: req.VendorID,
	}
	if req.DeliveryDate != nil && strings.TrimSpace(*req.DeliveryDate) != "" {
		date, err := time.Parse(deliveryDateLayout, strings.TrimSpace(*req.DeliveryDate))
		if err != nil {
			return in, pkgerrors.Validation("delivery_date must be YYYY-MM-DD").WithDetails(map[string]any{"field": "delivery_date"})
		}
		in.DeliveryDate = &date
	}
	if lang := strings.TrimSpace(req.Language); lang != "" {
		parsed, err := enums.ParseLanguage(lang)
		if err != nil {
			return in, pkgerrors.Validation(err.Error()).WithDetails(map[string]any{"field": "language"})
		}
		in.Language = parsed
	}
	if method := strings.TrimSpace(req.PaymentMethod); method != "" {
		parsed, err := enums.ParsePaymentMethod(method)
		if err != nil {
			return in, pkgerrors.Validation(err.Error()).WithDetails(map[string]any{"field": "payment_method"})
		}
		in.PaymentMethod = parsed
	}
	return in, nil
}

func decodeCheckout(r *http.Request) (checkout.PlaceOrdersInput, error) {
	var payload checkoutRequest
	if err := validators.DecodeJSONBody(r, &payload); err != nil {
		return checkout.PlaceOrdersInput{}, err
	}
	return payload.toInput()
}

// CheckoutPlace turns the active cart into one order per vendor.
func CheckoutPlace(svc orderPlacer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		in, err := decodeCheckout(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.PlaceOrders(r.Context(), middleware.CartContext(r.Context()), in)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

type paymentSessionResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// CheckoutCreateSession opens a hosted payment page for one vendor's lines.
func CheckoutCreateSession(svc paymentSessionCreator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments unavailable"))
			return
		}

		in, err := decodeCheckout(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.CreatePaymentSession(r.Context(), middleware.CartContext(r.Context()), in)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, paymentSessionResponse{SessionID: session.ID, URL: session.URL})
	}
}

// CheckoutFinalizeSession is the return-page path of reconciliation. The
// webhook may have already created the order; either way exactly one exists.
// Only the session's owner or staff may finalize it.
func CheckoutFinalizeSession(svc sessionFinalizer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments unavailable"))
			return
		}

		sessionID := strings.TrimSpace(chi.URLParam(r, "sessionId"))
		if sessionID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Validation("session id is required"))
			return
		}

		result, err := svc.FinalizeSession(r.Context(), middleware.CartContext(r.Context()), sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
