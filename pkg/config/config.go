package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix scopes every environment variable consumed by the service.
const EnvPrefix = "ENGAGE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "ENGAGE_DB_DSN"
	EnvDBHost = "ENGAGE_DB_HOST"
	EnvDBUser = "ENGAGE_DB_USER"
	EnvDBName = "ENGAGE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	API          APIConfig
	RateLimit    RateLimitConfig
	Outbox       OutboxConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ENGAGE_APP_ENV" required:"true"`
	Port         string `envconfig:"ENGAGE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ENGAGE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ENGAGE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ENGAGE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"ENGAGE_DB_DSN"`
	Driver string `envconfig:"ENGAGE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ENGAGE_DB_HOST"`
	LegacyPort     int    `envconfig:"ENGAGE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ENGAGE_DB_USER"`
	LegacyPassword string `envconfig:"ENGAGE_DB_PASSWORD"`
	LegacyName     string `envconfig:"ENGAGE_DB_NAME"`
	LegacySSLMode  string `envconfig:"ENGAGE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ENGAGE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ENGAGE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ENGAGE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ENGAGE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ENGAGE_REDIS_URL"`
	Address      string        `envconfig:"ENGAGE_REDIS_ADDR"`
	Password     string        `envconfig:"ENGAGE_REDIS_PASSWORD"`
	DB           int           `envconfig:"ENGAGE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ENGAGE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ENGAGE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ENGAGE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ENGAGE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ENGAGE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// APIConfig carries the public HTTP surface settings. RootKey is the
// operator-held dashboard credential; stored access keys are validated in
// addition to it.
type APIConfig struct {
	RootKey        string   `envconfig:"ENGAGE_API_ROOT_KEY" required:"true"`
	AllowedOrigins []string `envconfig:"ENGAGE_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

type RateLimitConfig struct {
	SubmitWindow  time.Duration `envconfig:"ENGAGE_RATE_LIMIT_SUBMIT_WINDOW" default:"1m"`
	SubmitIPLimit int           `envconfig:"ENGAGE_RATE_LIMIT_SUBMIT_IP_LIMIT" default:"30"`
}

type OutboxConfig struct {
	BatchSize      int    `envconfig:"ENGAGE_OUTBOX_BATCH_SIZE" default:"20"`
	PollIntervalMS int    `envconfig:"ENGAGE_OUTBOX_POLL_MS" default:"500"`
	WebhookURL     string `envconfig:"ENGAGE_OUTBOX_WEBHOOK_URL"`
	MetricsPort    string `envconfig:"ENGAGE_OUTBOX_METRICS_PORT" default:"9090"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"ENGAGE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"ENGAGE_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
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
