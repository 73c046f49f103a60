package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	Backend  BackendConfig
	Checkout CheckoutConfig
	Session  SessionConfig
	Redis    RedisConfig
	Sandbox  SandboxConfig
	DB       DBConfig
	JWT      JWTConfig
	Password PasswordConfig
	Metrics  MetricsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Backend.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Session.validate(cfg.Redis); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"RETAILDESK_APP_ENV" default:"dev"`
	LogLevel     string `envconfig:"RETAILDESK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"RETAILDESK_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// BackendConfig points the client at the REST collaborator.
type BackendConfig struct {
	BaseURL        string        `envconfig:"RETAILDESK_BACKEND_URL" default:"http://localhost:8080/api"`
	Timeout        time.Duration `envconfig:"RETAILDESK_BACKEND_TIMEOUT" default:"15s"`
	RateLimitRPS   float64       `envconfig:"RETAILDESK_BACKEND_RATE_LIMIT_RPS" default:"10"`
	RateLimitBurst int           `envconfig:"RETAILDESK_BACKEND_RATE_LIMIT_BURST" default:"5"`
}

func (b BackendConfig) validate() error {
	u, err := url.Parse(b.BaseURL)
	if err != nil {
		return fmt.Errorf("%s: %w", EnvBackendURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) url, got %q", EnvBackendURL, b.BaseURL)
	}
	if b.Timeout < 0 {
		return fmt.Errorf("%s must not be negative", EnvBackendTimeout)
	}
	return nil
}

type CheckoutConfig struct {
	// QRTTL bounds how long a pending QR payment may wait for verification.
	// Zero disables expiry.
	QRTTL         time.Duration `envconfig:"RETAILDESK_CHECKOUT_QR_TTL" default:"0"`
	DefaultMethod string        `envconfig:"RETAILDESK_CHECKOUT_DEFAULT_METHOD" default:"Cash"`
}

type SessionConfig struct {
	Store string        `envconfig:"RETAILDESK_SESSION_STORE" default:"memory"`
	TTL   time.Duration `envconfig:"RETAILDESK_SESSION_TTL" default:"12h"`
	Key   string        `envconfig:"RETAILDESK_SESSION_KEY" default:"default"`
}

func (s SessionConfig) validate(redis RedisConfig) error {
	switch strings.ToLower(s.Store) {
	case SessionStoreMemory:
		return nil
	case SessionStoreRedis:
		if !redis.Configured() {
			return fmt.Errorf("%s=redis requires %s or %s", EnvSessionStore, EnvRedisURL, EnvRedisAddr)
		}
		return nil
	}
	return fmt.Errorf("%s must be %q or %q, got %q", EnvSessionStore, SessionStoreMemory, SessionStoreRedis, s.Store)
}

// UsesRedis reports whether logins persist in redis.
func (s SessionConfig) UsesRedis() bool {
	return strings.EqualFold(s.Store, SessionStoreRedis)
}

type RedisConfig struct {
	URL          string        `envconfig:"RETAILDESK_REDIS_URL"`
	Address      string        `envconfig:"RETAILDESK_REDIS_ADDR"`
	Password     string        `envconfig:"RETAILDESK_REDIS_PASSWORD"`
	DB           int           `envconfig:"RETAILDESK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"RETAILDESK_REDIS_POOL_SIZE" default:"4"`
	MinIdleConns int           `envconfig:"RETAILDESK_REDIS_MIN_IDLE_CONNS" default:"1"`
	DialTimeout  time.Duration `envconfig:"RETAILDESK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"RETAILDESK_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"RETAILDESK_REDIS_WRITE_TIMEOUT" default:"3s"`
}

// Configured reports whether a redis endpoint was supplied.
func (r RedisConfig) Configured() bool {
	return r.URL != "" || r.Address != ""
}

// SandboxConfig configures the development backend.
type SandboxConfig struct {
	Port         string   `envconfig:"RETAILDESK_SANDBOX_PORT" default:"8080"`
	AutoMigrate  bool     `envconfig:"RETAILDESK_SANDBOX_AUTO_MIGRATE" default:"true"`
	Seed         bool     `envconfig:"RETAILDESK_SANDBOX_SEED" default:"true"`
	SeedPassword string   `envconfig:"RETAILDESK_SANDBOX_SEED_PASSWORD" default:"changeme"`
	CORSOrigins  []string `envconfig:"RETAILDESK_SANDBOX_CORS_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
	QRMerchant   string   `envconfig:"RETAILDESK_SANDBOX_QR_MERCHANT" default:"retaildesk"`

	// Pending QR sales older than PendingSaleTTL are cancelled by the sweeper.
	// Zero disables the sweeper.
	PendingSaleTTL time.Duration `envconfig:"RETAILDESK_SANDBOX_PENDING_SALE_TTL" default:"30m"`
	SweepInterval  time.Duration `envconfig:"RETAILDESK_SANDBOX_SWEEP_INTERVAL" default:"1m"`

	// Login throttling needs redis; without it the limits are ignored.
	LoginWindow    time.Duration `envconfig:"RETAILDESK_SANDBOX_LOGIN_WINDOW" default:"1m"`
	LoginIPLimit   int           `envconfig:"RETAILDESK_SANDBOX_LOGIN_IP_LIMIT" default:"20"`
	LoginUserLimit int           `envconfig:"RETAILDESK_SANDBOX_LOGIN_USER_LIMIT" default:"5"`
}

type DBConfig struct {
	Driver string `envconfig:"RETAILDESK_DB_DRIVER" default:"sqlite"`
	DSN    string `envconfig:"RETAILDESK_DB_DSN" default:"file:retaildesk.db?_foreign_keys=on"`

	MaxOpenConns    int           `envconfig:"RETAILDESK_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"RETAILDESK_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"RETAILDESK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"RETAILDESK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the sandbox runs on the embedded driver.
func (d DBConfig) IsSQLite() bool {
	return strings.EqualFold(d.Driver, DBDriverSQLite)
}

type JWTConfig struct {
	Secret            string `envconfig:"RETAILDESK_JWT_SECRET"`
	Issuer            string `envconfig:"RETAILDESK_JWT_ISSUER" default:"retaildesk"`
	ExpirationMinutes int    `envconfig:"RETAILDESK_JWT_EXPIRATION_MINUTES" default:"720"`
}

// TTL returns the access token lifetime.
func (j JWTConfig) TTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"RETAILDESK_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"RETAILDESK_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"RETAILDESK_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"RETAILDESK_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"RETAILDESK_ARGON_KEY_LEN" default:"32"`
}

type MetricsConfig struct {
	Addr string `envconfig:"RETAILDESK_METRICS_ADDR"`
}

// ValidateSandbox checks the settings only the sandbox backend needs.
func (c *Config) ValidateSandbox() error {
	var missing []string
	if c.JWT.Secret == "" {
		missing = append(missing, EnvJWTSecret)
	}
	if c.DB.DSN == "" {
		missing = append(missing, EnvDBDSN)
	}
	if len(missing) > 0 {
		return fmt.Errorf("sandbox requires %s", strings.Join(missing, ", "))
	}
	switch strings.ToLower(c.DB.Driver) {
	case DBDriverSQLite, DBDriverPostgres:
	default:
		return fmt.Errorf("%s must be %q or %q, got %q", EnvDBDriver, DBDriverSQLite, DBDriverPostgres, c.DB.Driver)
	}
	if c.JWT.TTL() <= 0 {
		return fmt.Errorf("%s must be positive", EnvJWTExpMins)
	}
	return nil
}
