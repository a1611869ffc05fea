package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App     AppConfig
	Catalog CatalogConfig
	Storage StorageConfig
	Redis   RedisConfig
	DB      DBConfig
	GCP     GCPConfig
	PubSub  PubSubConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Catalog.validate(); err != nil {
		return nil, err
	}
	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	if err := cfg.Storage.validate(); err != nil {
		return nil, err
	}
	if cfg.Storage.Backend == StorageBackendSQL {
		if err := cfg.DB.EnsureDSN(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

type AppConfig struct {
	Env             string        `envconfig:"SHOPFRONT_APP_ENV" required:"true"`
	Port            string        `envconfig:"SHOPFRONT_APP_PORT" default:"8080"`
	LogLevel        string        `envconfig:"SHOPFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack    bool          `envconfig:"SHOPFRONT_LOG_WARN_STACK" default:"false"`
	ShutdownTimeout time.Duration `envconfig:"SHOPFRONT_SHUTDOWN_TIMEOUT" default:"10s"`
	CORSOrigins     []string      `envconfig:"SHOPFRONT_CORS_ORIGINS" default:"*"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// CatalogConfig points the gateway at the remote product service.
type CatalogConfig struct {
	BaseURL      string        `envconfig:"SHOPFRONT_CATALOG_BASE_URL" default:"https://dummyjson.com"`
	Timeout      time.Duration `envconfig:"SHOPFRONT_CATALOG_TIMEOUT" default:"10s"`
	DefaultLimit int           `envconfig:"SHOPFRONT_CATALOG_DEFAULT_LIMIT" default:"100"`
}

func (c CatalogConfig) validate() error {
	parsed, err := url.Parse(strings.TrimSpace(c.BaseURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("%s must be an absolute url", EnvCatalogBaseURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%s must be positive", EnvCatalogTimeout)
	}
	if c.DefaultLimit <= 0 {
		return fmt.Errorf("%s must be positive", EnvCatalogDefaultLimit)
	}
	return nil
}

// StorageConfig selects the durable backend for the cart snapshot.
type StorageConfig struct {
	Backend     string `envconfig:"SHOPFRONT_STORAGE_BACKEND" default:"redis"`
	CartKey     string `envconfig:"SHOPFRONT_STORAGE_CART_KEY" default:"cart"`
	AutoMigrate bool   `envconfig:"SHOPFRONT_AUTO_MIGRATE" default:"false"`
}

func (s StorageConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(s.Backend)) {
	case StorageBackendRedis, StorageBackendSQL, StorageBackendMemory:
	default:
		return fmt.Errorf("%s must be one of %s, %s, %s", EnvStorageBackend, StorageBackendRedis, StorageBackendSQL, StorageBackendMemory)
	}
	if strings.TrimSpace(s.CartKey) == "" {
		return fmt.Errorf("%s is required", EnvStorageCartKey)
	}
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"SHOPFRONT_REDIS_URL"`
	Address      string        `envconfig:"SHOPFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"SHOPFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"SHOPFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SHOPFRONT_REDIS_POOL_SIZE" default:"4"`
	MinIdleConns int           `envconfig:"SHOPFRONT_REDIS_MIN_IDLE_CONNS" default:"1"`
	DialTimeout  time.Duration `envconfig:"SHOPFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SHOPFRONT_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"SHOPFRONT_REDIS_WRITE_TIMEOUT" default:"3s"`
}

type DBConfig struct {
	DSN    string `envconfig:"SHOPFRONT_DB_DSN"`
	Driver string `envconfig:"SHOPFRONT_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"SHOPFRONT_DB_HOST"`
	Port     int    `envconfig:"SHOPFRONT_DB_PORT" default:"5432"`
	User     string `envconfig:"SHOPFRONT_DB_USER"`
	Password string `envconfig:"SHOPFRONT_DB_PASSWORD"`
	Name     string `envconfig:"SHOPFRONT_DB_NAME"`
	SSLMode  string `envconfig:"SHOPFRONT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SHOPFRONT_DB_MAX_OPEN_CONNS" default:"4"`
	MaxIdleConns    int           `envconfig:"SHOPFRONT_DB_MAX_IDLE_CONNS" default:"2"`
	ConnMaxLifetime time.Duration `envconfig:"SHOPFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
}

// IsSQLite reports whether the snapshot table lives in a local SQLite file.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, DBDriverSQLite)
}

type GCPConfig struct {
	ProjectID string `envconfig:"SHOPFRONT_GCP_PROJECT_ID"`
}

// PubSubConfig is optional; an empty topic disables order event publishing.
type PubSubConfig struct {
	OrdersTopic string `envconfig:"SHOPFRONT_PUBSUB_ORDERS_TOPIC"`
}

// Enabled reports whether checkout confirmations should be published.
func (p PubSubConfig) Enabled() bool {
	return strings.TrimSpace(p.OrdersTopic) != ""
}

// EnsureDSN assembles a postgres DSN from the host variables when no DSN is set.
func (db *DBConfig) EnsureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required for the sqlite driver", EnvDBDSN)
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range hostDBEnvVars {
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
