package config

const (
	EnvPrefix = "GROCERY"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv             = "GROCERY_APP_ENV"
	EnvPort               = "GROCERY_APP_PORT"
	EnvDBDSN              = "GROCERY_DB_DSN"
	EnvDBHost             = "GROCERY_DB_HOST"
	EnvDBUser             = "GROCERY_DB_USER"
	EnvDBName             = "GROCERY_DB_NAME"
	EnvRedisURL           = "GROCERY_REDIS_URL"
	EnvJWTSecret          = "GROCERY_JWT_SECRET"
	EnvJWTIssuer          = "GROCERY_JWT_ISSUER"
	EnvGCPProjectID       = "GROCERY_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic  = "GROCERY_PUBSUB_ORDERS_TOPIC"
	EnvPubSubFulfillSub   = "GROCERY_PUBSUB_FULFILLMENT_SUBSCRIPTION"
	EnvCurrencyILSPerUSD  = "GROCERY_CURRENCY_ILS_PER_USD"
	EnvCartLoadDebounce   = "GROCERY_CART_LOAD_DEBOUNCE"
	EnvSMTPHost           = "GROCERY_SMTP_HOST"
	EnvSMSGatewayURL      = "GROCERY_SMS_GATEWAY_URL"
	EnvStripeSecretKey    = "GROCERY_STRIPE_SECRET_KEY"
	EnvStripeWebhookToken = "GROCERY_STRIPE_WEBHOOK_SECRET"
)

var dbPartEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
