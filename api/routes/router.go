package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v83"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/angelmondragon/grocery-backend/api/controllers"
	cartcontrollers "github.com/angelmondragon/grocery-backend/api/controllers/cart"
	ordercontrollers "github.com/angelmondragon/grocery-backend/api/controllers/orders"
	webhookcontrollers "github.com/angelmondragon/grocery-backend/api/controllers/webhooks"
	"github.com/angelmondragon/grocery-backend/api/middleware"
	"github.com/angelmondragon/grocery-backend/internal/cartsync"
	"github.com/angelmondragon/grocery-backend/internal/checkout"
	"github.com/angelmondragon/grocery-backend/internal/fulfillment"
	"github.com/angelmondragon/grocery-backend/internal/notifications"
	"github.com/angelmondragon/grocery-backend/internal/orders"
	"github.com/angelmondragon/grocery-backend/pkg/config"
	"github.com/angelmondragon/grocery-backend/pkg/db/models"
	"github.com/angelmondragon/grocery-backend/pkg/enums"
	"github.com/angelmondragon/grocery-backend/pkg/logger"
	"github.com/angelmondragon/grocery-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/grocery-backend/pkg/redis"
	pkgstripe "github.com/angelmondragon/grocery-backend/pkg/stripe"
)

// CheckoutService is the checkout surface the API exposes.
type CheckoutService interface {
	PlaceOrders(ctx context.Context, cartCtx cartsync.CartContext, in checkout.PlaceOrdersInput) (*checkout.PlacementResult, error)
	CreatePaymentSession(ctx context.Context, cartCtx cartsync.CartContext, in checkout.PlaceOrdersInput) (*pkgstripe.Session, error)
	FinalizeSession(ctx context.Context, caller cartsync.CartContext, sessionID string) (*checkout.ReconcileResult, error)
}

// FulfillmentAdmin is the operator surface of the fulfillment saga.
type FulfillmentAdmin interface {
	History(ctx context.Context, orderID uuid.UUID) ([]models.FulfillmentStepLog, error)
	RetryStep(ctx context.Context, orderID uuid.UUID, step enums.FulfillmentStep) (*fulfillment.StepResult, error)
}

type StripeVerifier interface {
	ConstructEvent(payload []byte, signature string) (stripe.Event, error)
}

type StripeEventGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

// Dependencies are the services the router mounts. Nil services leave their
// routes answering 500 "unavailable" rather than panicking.
type Dependencies struct {
	Config           *config.Config
	Logger           *logger.Logger
	Pingers          map[string]controllers.Pinger
	IdempotencyStore pkgredis.IdempotencyStore
	HTTPMetrics      *metrics.HTTPMetrics
	MetricsHandler   http.Handler

	CartSessions  cartcontrollers.Sessions
	Products      cartcontrollers.Products
	Checkout      CheckoutService
	Orders        orders.Service
	Notifications notifications.Service
	Fulfillment   FulfillmentAdmin

	StripeVerifier StripeVerifier
	StripeWebhook  webhookcontrollers.StripeWebhookService
	StripeGuard    StripeEventGuard
}

func NewRouter(deps Dependencies) http.Handler {
	cfg, logg := deps.Config, deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, deps.HTTPMetrics),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Pingers))
	})
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(deps.StripeWebhook, deps.StripeVerifier, deps.StripeGuard, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(
			middleware.Auth(cfg.JWT, logg),
			middleware.ActingHousehold(logg),
		)
		if deps.IdempotencyStore != nil {
			r.Use(middleware.Idempotency(deps.IdempotencyStore, logg))
		}

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartcontrollers.CartFetch(deps.CartSessions, logg))
			r.Delete("/", cartcontrollers.CartClear(deps.CartSessions, logg))
			r.Post("/items", cartcontrollers.CartAddItem(deps.CartSessions, deps.Products, logg))
			r.Patch("/items/{lineId}", cartcontrollers.CartUpdateItem(deps.CartSessions, logg))
			r.Delete("/items/{lineId}", cartcontrollers.CartRemoveItem(deps.CartSessions, logg))
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", controllers.CheckoutPlace(deps.Checkout, logg))
			r.Post("/sessions", controllers.CheckoutCreateSession(deps.Checkout, logg))
			r.Post("/sessions/{sessionId}/finalize", controllers.CheckoutFinalizeSession(deps.Checkout, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.List(deps.Orders, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(deps.Orders, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.NotificationsList(deps.Notifications, logg))
			r.Post("/read-all", controllers.NotificationsMarkAllRead(deps.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.NotificationMarkRead(deps.Notifications, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.RoleAdmin, enums.RoleStaff))
			r.Get("/orders/{orderId}/fulfillment", controllers.AdminFulfillmentHistory(deps.Fulfillment, logg))
			r.Post("/orders/{orderId}/fulfillment/{step}/retry", controllers.AdminFulfillmentRetry(deps.Fulfillment, logg))
		})
	})

	return otelhttp.NewHandler(r, "grocery-api")
}
