package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/grocery-backend/internal/fulfillment"
	"github.com/angelmondragon/grocery-backend/internal/maintenance"
	"github.com/angelmondragon/grocery-backend/internal/notifications"
	"github.com/angelmondragon/grocery-backend/pkg/config"
	"github.com/angelmondragon/grocery-backend/pkg/db"
	"github.com/angelmondragon/grocery-backend/pkg/instance"
	"github.com/angelmondragon/grocery-backend/pkg/logger"
	"github.com/angelmondragon/grocery-backend/pkg/metrics"
	"github.com/angelmondragon/grocery-backend/pkg/migrate"
	"github.com/angelmondragon/grocery-backend/pkg/outbox"
	"github.com/angelmondragon/grocery-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/grocery-backend/pkg/pubsub"
	"github.com/angelmondragon/grocery-backend/pkg/redis"
)

const serviceKind = "worker"

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
			logg.Error(ctx, "failed to close database", err)
		}
	}()
	requireResource(ctx, logg, "dev migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "failed to close redis client", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(ctx, "failed to close pubsub client", err)
		}
	}()
	requireResource(ctx, logg, "fulfillment subscription", pubsubClient.EnsureFulfillmentSubscription(ctx))

	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	requireResource(ctx, logg, "idempotency manager", err)

	notificationRepo := notifications.NewRepository(dbClient.DB())
	notificationService, err := notifications.NewService(notificationRepo)
	requireResource(ctx, logg, "notifications service", err)

	saga, err := fulfillment.NewFromConfig(ctx, cfg, dbClient.DB(), notificationService, prometheus.DefaultRegisterer, logg)
	requireResource(ctx, logg, "fulfillment saga", err)

	fulfillmentConsumer, err := fulfillment.NewConsumer(saga, pubsubClient.FulfillmentSubscription(), manager, logg)
	requireResource(ctx, logg, "fulfillment consumer", err)

	outboxRetention, err := maintenance.NewOutboxRetentionJob(dbClient, outbox.NewRepository(dbClient.DB()), cfg.Maintenance.OutboxRetention)
	requireResource(ctx, logg, "outbox retention job", err)
	notificationCleanup, err := maintenance.NewNotificationCleanupJob(notificationRepo, cfg.Maintenance.NotificationRetention)
	requireResource(ctx, logg, "notification cleanup job", err)
	maintenanceService, err := maintenance.NewService(maintenance.ServiceParams{
		Logger:   logg,
		Locker:   redisClient,
		Metrics:  metrics.NewMaintenanceMetrics(prometheus.DefaultRegisterer),
		Jobs:     []maintenance.Job{outboxRetention, notificationCleanup},
		Interval: cfg.Maintenance.Interval,
		LockTTL:  cfg.Maintenance.LockTTL,
	})
	requireResource(ctx, logg, "maintenance service", err)

	service, err := NewService(ServiceParams{
		Logger: logg,
		Consumers: map[string]consumer{
			"fulfillment": fulfillmentConsumer,
			"maintenance": maintenanceService,
		},
		Pings: map[string]pinger{
			"database": dbClient.Ping,
			"redis":    redisClient.Ping,
			"pubsub":   pubsubClient.Ping,
		},
	})
	requireResource(ctx, logg, "worker service", err)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})
	logg.Info(runCtx, "starting worker")

	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(runCtx, "worker shutting down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
