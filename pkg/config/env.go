package config

// EnvPrefix is handed to envconfig; every field carries an explicit key so the
// prefix only matters for fields without one.
const EnvPrefix = "SHOPFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	StorageBackendRedis  = "redis"
	StorageBackendSQL    = "sql"
	StorageBackendMemory = "memory"
)

const (
	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

const (
	EnvAppEnv              = "SHOPFRONT_APP_ENV"
	EnvPort                = "SHOPFRONT_APP_PORT"
	EnvCatalogBaseURL      = "SHOPFRONT_CATALOG_BASE_URL"
	EnvCatalogTimeout      = "SHOPFRONT_CATALOG_TIMEOUT"
	EnvCatalogDefaultLimit = "SHOPFRONT_CATALOG_DEFAULT_LIMIT"
	EnvStorageBackend      = "SHOPFRONT_STORAGE_BACKEND"
	EnvStorageCartKey      = "SHOPFRONT_STORAGE_CART_KEY"
	EnvRedisURL            = "SHOPFRONT_REDIS_URL"
	EnvDBDSN               = "SHOPFRONT_DB_DSN"
	EnvDBDriver            = "SHOPFRONT_DB_DRIVER"
	EnvDBHost              = "SHOPFRONT_DB_HOST"
	EnvDBUser              = "SHOPFRONT_DB_USER"
	EnvDBName              = "SHOPFRONT_DB_NAME"
	EnvDBPassword          = "SHOPFRONT_DB_PASSWORD"
	EnvGCPProjectID        = "SHOPFRONT_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic   = "SHOPFRONT_PUBSUB_ORDERS_TOPIC"
)

var hostDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
