package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/grocery-backend/api/controllers"
	"github.com/angelmondragon/grocery-backend/api/routes"
	"github.com/angelmondragon/grocery-backend/internal/cart"
	"github.com/angelmondragon/grocery-backend/internal/cartsync"
	"github.com/angelmondragon/grocery-backend/internal/checkout"
	"github.com/angelmondragon/grocery-backend/internal/fulfillment"
	"github.com/angelmondragon/grocery-backend/internal/households"
	"github.com/angelmondragon/grocery-backend/internal/notifications"
	"github.com/angelmondragon/grocery-backend/internal/orders"
	"github.com/angelmondragon/grocery-backend/internal/products"
	"github.com/angelmondragon/grocery-backend/internal/vendors"
	stripewebhook "github.com/angelmondragon/grocery-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/grocery-backend/pkg/config"
	"github.com/angelmondragon/grocery-backend/pkg/currency"
	"github.com/angelmondragon/grocery-backend/pkg/db"
	"github.com/angelmondragon/grocery-backend/pkg/logger"
	"github.com/angelmondragon/grocery-backend/pkg/metrics"
	"github.com/angelmondragon/grocery-backend/pkg/migrate"
	"github.com/angelmondragon/grocery-backend/pkg/outbox"
	"github.com/angelmondragon/grocery-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/grocery-backend/pkg/redis"
	pkgstripe "github.com/angelmondragon/grocery-backend/pkg/stripe"
)

const (
	serviceKind     = "api"
	shutdownTimeout = 15 * time.Second
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: serviceKind})

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)
	cfg.Service.Kind = serviceKind

	logg = logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()
	requireResource(ctx, logg, "dev migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	conn := dbClient.DB()
	householdRepo := households.NewRepository(conn)
	productRepo := products.NewRepository(conn)

	cartRegistry, err := cartsync.NewRegistry(cartsync.Options{
		Remote:   cart.NewRepository(conn),
		Members:  householdRepo,
		Logger:   logg,
		Debounce: cfg.Cart.LoadDebounce,
	}, cfg.Cart.SessionIdleAfter)
	requireResource(ctx, logg, "cart registry", err)

	converter, err := currency.NewConverter(cfg.Currency.ILSPerUSD)
	requireResource(ctx, logg, "currency converter", err)

	defaultVendorID, err := parseOptionalUUID(cfg.Cart.DefaultVendorID)
	requireResource(ctx, logg, "default vendor id", err)

	var payments checkout.PaymentProvider
	var stripeVerifier routes.StripeVerifier
	if cfg.Stripe.Enabled() {
		stripeClient, err := pkgstripe.NewClient(ctx, cfg.Stripe, logg)
		requireResource(ctx, logg, "stripe", err)
		payments, stripeVerifier = stripeClient, stripeClient
		logg.Info(logg.WithField(ctx, "stripe_env", stripeClient.Environment()), "stripe client wired to API routes")
	} else {
		logg.Warn(ctx, "stripe not configured, online payment routes are disabled")
	}

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		TxRunner:        dbClient,
		Orders:          orders.NewRepository(conn),
		Products:        productRepo,
		Vendors:         vendors.NewRepository(conn),
		Households:      householdRepo,
		Carts:           cartRegistry,
		Outbox:          outbox.NewService(outbox.NewRepository(conn), logg),
		Payments:        payments,
		Locker:          redisClient,
		Converter:       converter,
		Logger:          logg,
		DefaultVendorID: defaultVendorID,
	})
	requireResource(ctx, logg, "checkout service", err)

	ordersService, err := orders.NewService(orders.NewRepository(conn), householdRepo)
	requireResource(ctx, logg, "orders service", err)

	notificationService, err := notifications.NewService(notifications.NewRepository(conn))
	requireResource(ctx, logg, "notifications service", err)

	// Admin retries run steps inline, so the API carries its own saga.
	saga, err := fulfillment.NewFromConfig(ctx, cfg, conn, notificationService, prometheus.DefaultRegisterer, logg)
	requireResource(ctx, logg, "fulfillment saga", err)

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{Checkout: checkoutService, Logger: logg})
	requireResource(ctx, logg, "stripe webhook service", err)
	eventManager, err := idempotency.NewManager(redisClient, cfg.Eventing.StripeEventTTL)
	requireResource(ctx, logg, "stripe event idempotency", err)
	webhookGuard, err := stripewebhook.NewEventGuard(eventManager)
	requireResource(ctx, logg, "stripe event guard", err)

	handler := routes.NewRouter(routes.Dependencies{
		Config:           cfg,
		Logger:           logg,
		Pingers:          map[string]controllers.Pinger{"database": dbClient, "redis": redisClient},
		IdempotencyStore: redisClient,
		HTTPMetrics:      metrics.NewHTTPMetrics(prometheus.DefaultRegisterer),
		MetricsHandler:   promhttp.Handler(),
		CartSessions:     cartRegistry,
		Products:         productRepo,
		Checkout:         checkoutService,
		Orders:           ordersService,
		Notifications:    notificationService,
		Fulfillment:      saga,
		StripeVerifier:   stripeVerifier,
		StripeWebhook:    webhookService,
		StripeGuard:      webhookGuard,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"addr":        addr,
		"serviceKind": cfg.Service.Kind,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logg.Info(runCtx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(runCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-runCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(runCtx, "api server shutdown failed", err)
		}
		logg.Info(runCtx, "api server shut down gracefully")
	}
}

func parseOptionalUUID(raw string) (*uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", raw, err)
	}
	return &id, nil
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
