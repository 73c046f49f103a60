package config

const EnvPrefix = "RETAILDESK"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"

	DBDriverSQLite   = "sqlite"
	DBDriverPostgres = "postgres"
)

const (
	EnvAppEnv         = "RETAILDESK_APP_ENV"
	EnvBackendURL     = "RETAILDESK_BACKEND_URL"
	EnvBackendTimeout = "RETAILDESK_BACKEND_TIMEOUT"
	EnvCheckoutQRTTL  = "RETAILDESK_CHECKOUT_QR_TTL"
	EnvSessionStore   = "RETAILDESK_SESSION_STORE"
	EnvRedisURL       = "RETAILDESK_REDIS_URL"
	EnvRedisAddr      = "RETAILDESK_REDIS_ADDR"
	EnvDBDriver       = "RETAILDESK_DB_DRIVER"
	EnvDBDSN          = "RETAILDESK_DB_DSN"
	EnvJWTSecret      = "RETAILDESK_JWT_SECRET"
	EnvJWTExpMins     = "RETAILDESK_JWT_EXPIRATION_MINUTES"
)
