package fulfillment

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"

	"github.com/angelmondragon/grocery-backend/internal/orders"
	"github.com/angelmondragon/grocery-backend/internal/vendors"
	"github.com/angelmondragon/grocery-backend/pkg/config"
	"github.com/angelmondragon/grocery-backend/pkg/documents"
	"github.com/angelmondragon/grocery-backend/pkg/logger"
	"github.com/angelmondragon/grocery-backend/pkg/mailer"
	"github.com/angelmondragon/grocery-backend/pkg/metrics"
	"github.com/angelmondragon/grocery-backend/pkg/sms"
)

// NewFromConfig wires a saga against the database and the configured
// senders. Mail and SMS fall back to log-only senders when unconfigured; the
// document step fails when rendering is disabled.
func NewFromConfig(ctx context.Context, cfg *config.Config, conn *gorm.DB, notify notifier, reg prometheus.Registerer, logg *logger.Logger) (*Saga, error) {
	var renderer documents.Renderer
	if cfg.Documents.Enabled {
		renderer = documents.NewChrome(cfg.Documents)
	}

	var email mailer.Sender
	if cfg.SMTP.Enabled() {
		smtp, err := mailer.NewSMTP(cfg.SMTP, logg)
		if err != nil {
			return nil, err
		}
		email = smtp
	} else {
		logg.Warn(ctx, "smtp not configured, emails will be logged only")
		email = mailer.NewLog(logg)
	}

	var texts sms.Sender
	if cfg.SMS.Enabled() {
		client, err := sms.NewClient(cfg.SMS, logg)
		if err != nil {
			return nil, err
		}
		texts = client
	} else {
		logg.Warn(ctx, "sms gateway not configured, texts will be logged only")
		texts = sms.NewLog(logg)
	}

	return NewSaga(Params{
		Orders:    orders.NewRepository(conn),
		Vendors:   vendors.NewRepository(conn),
		Documents: renderer,
		Email:     email,
		SMS:       texts,
		Notifier:  notify,
		StepLogs:  NewStepLogRepository(conn),
		Metrics:   metrics.NewFulfillmentMetrics(reg),
		Tracer:    otel.Tracer("fulfillment"),
		Logger:    logg,
		FromName:  cfg.SMTP.FromName,
	})
}
