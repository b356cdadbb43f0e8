package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"

	"github.com/classbridge/billing-renewals/pkg/enums"
	pkgerrors "github.com/classbridge/billing-renewals/pkg/errors"
)

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	Payments PaymentsConfig
	Stripe   StripeConfig
	Square   SquareConfig
	Renewal  RenewalConfig
	Notify   NotifyConfig
	GCP      GCPConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeConfig, err, "parsing config")
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeConfig, err, "resolving database dsn")
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CLASSBRIDGE_APP_ENV" default:"dev"`
	Port         string `envconfig:"CLASSBRIDGE_APP_PORT" default:"8090"`
	LogLevel     string `envconfig:"CLASSBRIDGE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CLASSBRIDGE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"CLASSBRIDGE_DB_DSN"`
	Driver string `envconfig:"CLASSBRIDGE_DB_DRIVER" default:"postgres"`
	// AutoMigrate runs goose up on start in dev.
	AutoMigrate bool `envconfig:"CLASSBRIDGE_DB_AUTO_MIGRATE" default:"false"`

	LegacyHost     string `envconfig:"CLASSBRIDGE_DB_HOST"`
	LegacyPort     int    `envconfig:"CLASSBRIDGE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CLASSBRIDGE_DB_USER"`
	LegacyPassword string `envconfig:"CLASSBRIDGE_DB_PASSWORD"`
	LegacyName     string `envconfig:"CLASSBRIDGE_DB_NAME"`
	LegacySSLMode  string `envconfig:"CLASSBRIDGE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CLASSBRIDGE_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"CLASSBRIDGE_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"CLASSBRIDGE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CLASSBRIDGE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// RedisConfig is optional for one-shot runs. An empty URL disables the run lock.
type RedisConfig struct {
	URL          string        `envconfig:"CLASSBRIDGE_REDIS_URL"`
	Password     string        `envconfig:"CLASSBRIDGE_REDIS_PASSWORD"`
	DB           int           `envconfig:"CLASSBRIDGE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CLASSBRIDGE_REDIS_POOL_SIZE" default:"5"`
	MinIdleConns int           `envconfig:"CLASSBRIDGE_REDIS_MIN_IDLE_CONNS" default:"1"`
	DialTimeout  time.Duration `envconfig:"CLASSBRIDGE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CLASSBRIDGE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CLASSBRIDGE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != ""
}

type PaymentsConfig struct {
	Provider string `envconfig:"CLASSBRIDGE_PAYMENT_PROVIDER" default:"stripe"`
}

// ProviderKind parses the configured provider, defaulting to stripe.
func (p PaymentsConfig) ProviderKind() (enums.PaymentProvider, error) {
	return enums.ParsePaymentProvider(p.Provider)
}

type StripeConfig struct {
	Secret string `envconfig:"CLASSBRIDGE_STRIPE_SECRET"`
	Env    string `envconfig:"CLASSBRIDGE_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type SquareConfig struct {
	AccessToken string `envconfig:"CLASSBRIDGE_SQUARE_ACCESS_TOKEN"`
	LocationID  string `envconfig:"CLASSBRIDGE_SQUARE_LOCATION_ID"`
	Env         string `envconfig:"CLASSBRIDGE_SQUARE_ENV" default:"sandbox"`
}

func (s SquareConfig) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(s.Env), "production")
}

type RenewalConfig struct {
	GracePeriod                  time.Duration `envconfig:"CLASSBRIDGE_RENEWAL_GRACE_PERIOD" default:"24h" validate:"gte=0"`
	MaxAttempts                  int           `envconfig:"CLASSBRIDGE_RENEWAL_MAX_ATTEMPTS" default:"3" validate:"gte=1,lte=10"`
	BatchSize                    int           `envconfig:"CLASSBRIDGE_RENEWAL_BATCH_SIZE" default:"50" validate:"gte=1,lte=500"`
	Delay                        time.Duration `envconfig:"CLASSBRIDGE_RENEWAL_DELAY" default:"1s" validate:"gte=0"`
	LockTTL                      time.Duration `envconfig:"CLASSBRIDGE_RENEWAL_LOCK_TTL" default:"30m" validate:"gt=0"`
	Schedule                     string        `envconfig:"CLASSBRIDGE_RENEWAL_SCHEDULE" default:"0 2 * * *" validate:"required"`
	PenalizeMissingPaymentMethod bool          `envconfig:"CLASSBRIDGE_RENEWAL_PENALIZE_MISSING_PAYMENT_METHOD" default:"true"`
}

type NotifyConfig struct {
	SMTPHost      string `envconfig:"CLASSBRIDGE_NOTIFY_SMTP_HOST"`
	SMTPPort      int    `envconfig:"CLASSBRIDGE_NOTIFY_SMTP_PORT" default:"587"`
	SMTPUser      string `envconfig:"CLASSBRIDGE_NOTIFY_SMTP_USER"`
	SMTPPassword  string `envconfig:"CLASSBRIDGE_NOTIFY_SMTP_PASSWORD"`
	FromEmail     string `envconfig:"CLASSBRIDGE_NOTIFY_FROM_EMAIL" default:"billing@classbridge.app"`
	OperatorEmail string `envconfig:"CLASSBRIDGE_NOTIFY_OPERATOR_EMAIL"`
	PubSubTopic   string `envconfig:"CLASSBRIDGE_NOTIFY_PUBSUB_TOPIC"`
}

func (n NotifyConfig) EmailEnabled() bool {
	return strings.TrimSpace(n.SMTPHost) != "" && strings.TrimSpace(n.OperatorEmail) != ""
}

func (n NotifyConfig) PubSubEnabled() bool {
	return strings.TrimSpace(n.PubSubTopic) != ""
}

type GCPConfig struct {
	ProjectID       string `envconfig:"CLASSBRIDGE_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"CLASSBRIDGE_GCP_CREDENTIALS_JSON"`
}

var validate = validator.New()

// ValidateRenewal checks everything a renewal run needs before it touches
// the store or the gateway.
func (c *Config) ValidateRenewal() error {
	missing := []string{}
	if strings.TrimSpace(c.DB.DSN) == "" {
		missing = append(missing, EnvDBDSN)
	}

	provider, err := c.Payments.ProviderKind()
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeConfig, err, "invalid "+EnvPaymentProvider)
	}
	switch provider {
	case enums.PaymentProviderStripe:
		if strings.TrimSpace(c.Stripe.Secret) == "" {
			missing = append(missing, EnvStripeSecret)
		}
	case enums.PaymentProviderSquare:
		if strings.TrimSpace(c.Square.AccessToken) == "" {
			missing = append(missing, EnvSquareToken)
		}
		if strings.TrimSpace(c.Square.LocationID) == "" {
			missing = append(missing, EnvSquareLocation)
		}
	}
	if c.Notify.PubSubEnabled() && strings.TrimSpace(c.GCP.ProjectID) == "" {
		missing = append(missing, EnvGCPProjectID)
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeConfig, "missing required configuration").
			WithDetails(map[string]any{"missing": missing})
	}

	// Prod runs charge through live gateways only.
	if c.App.IsProd() {
		switch {
		case provider == enums.PaymentProviderStripe && c.Stripe.Environment() != "live":
			return pkgerrors.New(pkgerrors.CodeConfig, EnvStripeEnv+" must be live in prod")
		case provider == enums.PaymentProviderSquare && !c.Square.IsProduction():
			return pkgerrors.New(pkgerrors.CodeConfig, EnvSquareEnv+" must be production in prod")
		}
	}

	if err := validate.Struct(c.Renewal); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeConfig, err, "invalid renewal settings")
	}
	return nil
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	// Nothing configured at all is left to ValidateRenewal.
	if db.LegacyHost == "" && db.LegacyUser == "" && db.LegacyName == "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
