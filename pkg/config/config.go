package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Stripe       StripeConfig
	SMTP         SMTPConfig
	SMS          SMSConfig
	Documents    DocumentsConfig
	Currency     CurrencyConfig
	Cart         CartConfig
	Maintenance  MaintenanceConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if cfg.Currency.ILSPerUSD <= 0 {
		return nil, fmt.Errorf("%s must be positive", EnvCurrencyILSPerUSD)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"GROCERY_APP_ENV" required:"true"`
	Port         string `envconfig:"GROCERY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"GROCERY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"GROCERY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"GROCERY_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN string `envconfig:"GROCERY_DB_DSN"`

	Host     string `envconfig:"GROCERY_DB_HOST"`
	Port     int    `envconfig:"GROCERY_DB_PORT" default:"5432"`
	User     string `envconfig:"GROCERY_DB_USER"`
	Password string `envconfig:"GROCERY_DB_PASSWORD"`
	Name     string `envconfig:"GROCERY_DB_NAME"`
	SSLMode  string `envconfig:"GROCERY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"GROCERY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"GROCERY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"GROCERY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GROCERY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"GROCERY_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"GROCERY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"GROCERY_REDIS_ADDR"`
	Password     string        `envconfig:"GROCERY_REDIS_PASSWORD"`
	DB           int           `envconfig:"GROCERY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GROCERY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GROCERY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GROCERY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GROCERY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GROCERY_REDIS_WRITE_TIMEOUT" default:"5s"`
	LockTTL      time.Duration `envconfig:"GROCERY_REDIS_LOCK_TTL" default:"30s"`
}

// JWTConfig holds verification settings only; tokens are issued elsewhere.
type JWTConfig struct {
	Secret string `envconfig:"GROCERY_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"GROCERY_JWT_ISSUER" required:"true"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"GROCERY_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"GROCERY_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"GROCERY_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	StripeEventTTL       time.Duration `envconfig:"GROCERY_EVENTING_STRIPE_EVENT_TTL" default:"168h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"GROCERY_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"GROCERY_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"GROCERY_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic             string `envconfig:"GROCERY_PUBSUB_ORDERS_TOPIC" required:"true"`
	FulfillmentSubscription string `envconfig:"GROCERY_PUBSUB_FULFILLMENT_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"GROCERY_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"GROCERY_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"GROCERY_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type StripeConfig struct {
	SecretKey     string `envconfig:"GROCERY_STRIPE_SECRET_KEY"`
	WebhookSecret string `envconfig:"GROCERY_STRIPE_WEBHOOK_SECRET"`
	Env           string `envconfig:"GROCERY_STRIPE_ENV" default:"test"`
	SuccessURL    string `envconfig:"GROCERY_STRIPE_SUCCESS_URL" default:"http://localhost:3000/checkout/success?session_id={CHECKOUT_SESSION_ID}"`
	CancelURL     string `envconfig:"GROCERY_STRIPE_CANCEL_URL" default:"http://localhost:3000/cart"`
}

// Enabled reports whether a secret key is configured.
func (s StripeConfig) Enabled() bool {
	return strings.TrimSpace(s.SecretKey) != ""
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type SMTPConfig struct {
	Host        string `envconfig:"GROCERY_SMTP_HOST"`
	Port        int    `envconfig:"GROCERY_SMTP_PORT" default:"587"`
	Username    string `envconfig:"GROCERY_SMTP_USERNAME"`
	Password    string `envconfig:"GROCERY_SMTP_PASSWORD"`
	FromAddress string `envconfig:"GROCERY_SMTP_FROM_ADDRESS" default:"orders@grocery.local"`
	FromName    string `envconfig:"GROCERY_SMTP_FROM_NAME" default:"Grocery Orders"`
	RequireTLS  bool   `envconfig:"GROCERY_SMTP_REQUIRE_TLS" default:"true"`
}

// Enabled reports whether an SMTP relay is configured.
func (s SMTPConfig) Enabled() bool {
	return strings.TrimSpace(s.Host) != ""
}

type SMSConfig struct {
	GatewayURL string        `envconfig:"GROCERY_SMS_GATEWAY_URL"`
	APIKey     string        `envconfig:"GROCERY_SMS_API_KEY"`
	Timeout    time.Duration `envconfig:"GROCERY_SMS_TIMEOUT" default:"10s"`
}

func (s SMSConfig) Enabled() bool {
	return strings.TrimSpace(s.GatewayURL) != ""
}

type DocumentsConfig struct {
	Enabled       bool          `envconfig:"GROCERY_DOCUMENTS_ENABLED" default:"true"`
	RenderTimeout time.Duration `envconfig:"GROCERY_DOCUMENTS_RENDER_TIMEOUT" default:"30s"`
	ChromePath    string        `envconfig:"GROCERY_DOCUMENTS_CHROME_PATH"`
}

type CurrencyConfig struct {
	ILSPerUSD float64 `envconfig:"GROCERY_CURRENCY_ILS_PER_USD" default:"3.24"`
}

type CartConfig struct {
	LoadDebounce     time.Duration `envconfig:"GROCERY_CART_LOAD_DEBOUNCE" default:"2s"`
	DefaultVendorID  string        `envconfig:"GROCERY_CART_DEFAULT_VENDOR_ID"`
	SessionIdleAfter time.Duration `envconfig:"GROCERY_CART_SESSION_IDLE_AFTER" default:"30m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range dbPartEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}

// MaintenanceConfig drives the worker's retention sweeps.
type MaintenanceConfig struct {
	Interval              time.Duration `envconfig:"GROCERY_MAINTENANCE_INTERVAL" default:"24h"`
	LockTTL               time.Duration `envconfig:"GROCERY_MAINTENANCE_LOCK_TTL" default:"10m"`
	OutboxRetention       time.Duration `envconfig:"GROCERY_MAINTENANCE_OUTBOX_RETENTION" default:"720h"`
	NotificationRetention time.Duration `envconfig:"GROCERY_MAINTENANCE_NOTIFICATION_RETENTION" default:"2160h"`
}
