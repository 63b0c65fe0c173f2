package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = "CODM"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv    = "CODM_APP_ENV"
	EnvPort      = "CODM_APP_PORT"
	EnvDBDSN     = "CODM_DB_DSN"
	EnvDBHost    = "CODM_DB_HOST"
	EnvDBUser    = "CODM_DB_USER"
	EnvDBName    = "CODM_DB_NAME"
	EnvRedisURL  = "CODM_REDIS_URL"
	EnvJWTSecret = "CODM_JWT_SECRET"
	EnvJWTIssuer = "CODM_JWT_ISSUER"

	EnvPaystackMode       = "CODM_PAYSTACK_MODE"
	EnvPaystackTestSecret = "PAYSTACK_TEST_SECRET_KEY"
	EnvPaystackLiveSecret = "PAYSTACK_LIVE_SECRET_KEY"
	EnvShopCallbackURL    = "CODM_SHOP_CALLBACK_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Paystack     PaystackConfig
	Shop         ShopConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if !cfg.Paystack.ModeValid() {
		return nil, fmt.Errorf("%s must be test or live, got %q", EnvPaystackMode, cfg.Paystack.Mode)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CODM_APP_ENV" required:"true"`
	Port         string `envconfig:"CODM_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CODM_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CODM_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"CODM_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"CODM_DB_DSN"`
	Driver string `envconfig:"CODM_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"CODM_DB_HOST"`
	Port     int    `envconfig:"CODM_DB_PORT" default:"5432"`
	User     string `envconfig:"CODM_DB_USER"`
	Password string `envconfig:"CODM_DB_PASSWORD"`
	Name     string `envconfig:"CODM_DB_NAME"`
	SSLMode  string `envconfig:"CODM_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CODM_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CODM_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CODM_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CODM_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// RedisConfig is optional: with neither URL nor address set, features fall
// back to database-backed behavior.
type RedisConfig struct {
	URL          string        `envconfig:"CODM_REDIS_URL"`
	Address      string        `envconfig:"CODM_REDIS_ADDR"`
	Password     string        `envconfig:"CODM_REDIS_PASSWORD"`
	DB           int           `envconfig:"CODM_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CODM_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CODM_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CODM_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CODM_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CODM_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether any Redis endpoint is configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type JWTConfig struct {
	Secret string `envconfig:"CODM_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"CODM_JWT_ISSUER" required:"true"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CODM_AUTO_MIGRATE" default:"false"`
}

// PaystackConfig selects the gateway secret for the active mode.
type PaystackConfig struct {
	Mode          string        `envconfig:"CODM_PAYSTACK_MODE" default:"test"`
	TestSecretKey string        `envconfig:"PAYSTACK_TEST_SECRET_KEY"`
	LiveSecretKey string        `envconfig:"PAYSTACK_LIVE_SECRET_KEY"`
	BaseURL       string        `envconfig:"CODM_PAYSTACK_BASE_URL" default:"https://api.paystack.co"`
	Timeout       time.Duration `envconfig:"CODM_PAYSTACK_TIMEOUT" default:"15s"`
	WebhookTTL    time.Duration `envconfig:"CODM_PAYSTACK_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
}

// Environment returns the normalized gateway mode (test/live).
func (p PaystackConfig) Environment() string {
	mode := strings.TrimSpace(strings.ToLower(p.Mode))
	if mode == "" {
		return "test"
	}
	return mode
}

func (p PaystackConfig) ModeValid() bool {
	switch p.Environment() {
	case "test", "live":
		return true
	}
	return false
}

// SecretKey returns the key for the active mode, empty when unset.
func (p PaystackConfig) SecretKey() string {
	if p.Environment() == "live" {
		return strings.TrimSpace(p.LiveSecretKey)
	}
	return strings.TrimSpace(p.TestSecretKey)
}

// SecretKeyEnv names the variable the active mode reads its key from.
func (p PaystackConfig) SecretKeyEnv() string {
	if p.Environment() == "live" {
		return EnvPaystackLiveSecret
	}
	return EnvPaystackTestSecret
}

type ShopConfig struct {
	Currency     string `envconfig:"CODM_SHOP_CURRENCY" default:"XOF"`
	DeliveryFee  string `envconfig:"CODM_SHOP_DELIVERY_FEE" default:"1000"`
	CallbackURL  string `envconfig:"CODM_SHOP_CALLBACK_URL" default:"http://localhost:8080/api/v1/payments/callback"`
	RecentOrders int    `envconfig:"CODM_SHOP_RECENT_ORDERS" default:"5"`
}

type CronConfig struct {
	Interval          time.Duration `envconfig:"CODM_CRON_INTERVAL" default:"1h"`
	PendingPaymentTTL time.Duration `envconfig:"CODM_CRON_PENDING_PAYMENT_TTL" default:"48h"`
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
	for _, env := range legacyDBEnvVars {
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
