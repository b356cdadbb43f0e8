package config

const (
	EnvPrefix = "CLASSBRIDGE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv       = "CLASSBRIDGE_APP_ENV"
	EnvPort         = "CLASSBRIDGE_APP_PORT"
	EnvLogLevel     = "CLASSBRIDGE_LOG_LEVEL"
	EnvLogWarnStack = "CLASSBRIDGE_LOG_WARN_STACK"

	EnvDBDSN      = "CLASSBRIDGE_DB_DSN"
	EnvDBHost     = "CLASSBRIDGE_DB_HOST"
	EnvDBPort     = "CLASSBRIDGE_DB_PORT"
	EnvDBUser     = "CLASSBRIDGE_DB_USER"
	EnvDBPassword = "CLASSBRIDGE_DB_PASSWORD"
	EnvDBName     = "CLASSBRIDGE_DB_NAME"
	EnvDBDriver   = "CLASSBRIDGE_DB_DRIVER"

	EnvDBAutoMigrate = "CLASSBRIDGE_DB_AUTO_MIGRATE"

	EnvRedisURL = "CLASSBRIDGE_REDIS_URL"

	EnvPaymentProvider = "CLASSBRIDGE_PAYMENT_PROVIDER"
	EnvStripeSecret    = "CLASSBRIDGE_STRIPE_SECRET"
	EnvStripeEnv       = "CLASSBRIDGE_STRIPE_ENV"
	EnvSquareToken     = "CLASSBRIDGE_SQUARE_ACCESS_TOKEN"
	EnvSquareLocation  = "CLASSBRIDGE_SQUARE_LOCATION_ID"
	EnvSquareEnv       = "CLASSBRIDGE_SQUARE_ENV"

	EnvRenewalGracePeriod    = "CLASSBRIDGE_RENEWAL_GRACE_PERIOD"
	EnvRenewalMaxAttempts    = "CLASSBRIDGE_RENEWAL_MAX_ATTEMPTS"
	EnvRenewalBatchSize      = "CLASSBRIDGE_RENEWAL_BATCH_SIZE"
	EnvRenewalDelay          = "CLASSBRIDGE_RENEWAL_DELAY"
	EnvRenewalLockTTL        = "CLASSBRIDGE_RENEWAL_LOCK_TTL"
	EnvRenewalSchedule       = "CLASSBRIDGE_RENEWAL_SCHEDULE"
	EnvRenewalPenalizeNoCard = "CLASSBRIDGE_RENEWAL_PENALIZE_MISSING_PAYMENT_METHOD"

	EnvNotifySMTPHost     = "CLASSBRIDGE_NOTIFY_SMTP_HOST"
	EnvNotifySMTPPort     = "CLASSBRIDGE_NOTIFY_SMTP_PORT"
	EnvNotifySMTPUser     = "CLASSBRIDGE_NOTIFY_SMTP_USER"
	EnvNotifySMTPPassword = "CLASSBRIDGE_NOTIFY_SMTP_PASSWORD"
	EnvNotifyFrom         = "CLASSBRIDGE_NOTIFY_FROM_EMAIL"
	EnvNotifyOperator     = "CLASSBRIDGE_NOTIFY_OPERATOR_EMAIL"
	EnvNotifyTopic        = "CLASSBRIDGE_NOTIFY_PUBSUB_TOPIC"

	EnvGCPProjectID       = "CLASSBRIDGE_GCP_PROJECT_ID"
	EnvGCPCredentialsJSON = "CLASSBRIDGE_GCP_CREDENTIALS_JSON"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
