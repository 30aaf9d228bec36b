// Package cart exposes the caller's active cart over HTTP. Mutations go
// through the caller's cartsync session so local state and the remote rows
// stay reconciled.
package cart

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/grocery-backend/api/middleware"
	"github.com/angelmondragon/grocery-backend/api/responses"
	"github.com/angelmondragon/grocery-backend/api/validators"
	"github.com/angelmondragon/grocery-backend/internal/cartsync"
	"github.com/angelmondragon/grocery-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/grocery-backend/pkg/errors"
	"github.com/angelmondragon/grocery-backend/pkg/logger"
)

// Sessions resolves the caller's cart session for a request context.
type Sessions interface {
	Session(ctx context.Context, cartCtx cartsync.CartContext) (*cartsync.Session, error)
}

// Products looks up the catalog row being added.
type Products interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// CartFetch returns the active cart for the caller's current context.
func CartFetch(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := resolveSession(w, r, sessions, logg)
		if !ok {
			return
		}
		// Session switches already load when the identity changes; this
		// honours the debounce window for repeated fetches.
		if err := session.Load(r.Context(), false); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartView(session, cartsync.NoticeNone))
	}
}

// CartAddItem adds a product to the active cart.
func CartAddItem(sessions Sessions, products Products, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if products == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product catalog unavailable"))
			return
		}

		var payload addItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := products.Get(r.Context(), payload.ProductID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !product.IsActive {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Validation("product is not available"))
			return
		}

		session, ok := resolveSession(w, r, sessions, logg)
		if !ok {
			return
		}
		writeOutcome(w, r, logg, session, session.Add(r.Context(), *product, payload.Quantity, payload.HouseholdID))
	}
}

// CartUpdateItem sets a line's quantity; zero removes it.
func CartUpdateItem(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lineID, err := validators.ParseUUIDParam(r, "lineId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, ok := resolveSession(w, r, sessions, logg)
		if !ok {
			return
		}
		writeOutcome(w, r, logg, session, session.UpdateQuantity(r.Context(), lineID, *payload.Quantity))
	}
}

// CartRemoveItem deletes one line.
func CartRemoveItem(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lineID, err := validators.ParseUUIDParam(r, "lineId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, ok := resolveSession(w, r, sessions, logg)
		if !ok {
			return
		}
		writeOutcome(w, r, logg, session, session.Remove(r.Context(), lineID))
	}
}

// CartClear empties the cart, or only one vendor's lines when vendor_id is set.
func CartClear(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vendorID, err := validators.ParseOptionalUUIDQuery(r, "vendor_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, ok := resolveSession(w, r, sessions, logg)
		if !ok {
			return
		}
		writeOutcome(w, r, logg, session, session.Clear(r.Context(), vendorID))
	}
}

func resolveSession(w http.ResponseWriter, r *http.Request, sessions Sessions, logg *logger.Logger) (*cartsync.Session, bool) {
	if sessions == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
		return nil, false
	}
	session, err := sessions.Session(r.Context(), middleware.CartContext(r.Context()))
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return nil, false
	}
	return session, true
}

// writeOutcome maps a mutation outcome to a response. Rejections without a
// notice never touched the cart and are plain errors. Reconciled failures
// still return the cart so the client can redraw it.
func writeOutcome(w http.ResponseWriter, r *http.Request, logg *logger.Logger, session *cartsync.Session, out cartsync.Outcome) {
	switch {
	case out.OK():
		responses.WriteSuccess(w, newCartView(session, cartsync.NoticeNone))
	case out.Notice == cartsync.NoticeSyncConflict:
		responses.WriteSuccessStatus(w, http.StatusConflict, newCartView(session, out.Notice))
	case out.Notice == cartsync.NoticeRetry:
		if logg != nil {
			logg.Warn(logg.WithField(r.Context(), "error", out.Err.Error()), "cart mutation reverted")
		}
		responses.WriteSuccessStatus(w, http.StatusServiceUnavailable, newCartView(session, out.Notice))
	default:
		responses.WriteError(r.Context(), logg, w, out.Err)
	}
}
