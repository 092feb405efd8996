// Package config loads and validates client config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Storage drivers accepted by STORAGE_DRIVER.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

// Config holds client configuration loaded from the environment.
type Config struct {
	// APIBaseURL is the API gateway base URL serving /auth/*, /events and /analytics/*.
	APIBaseURL string `mapstructure:"API_BASE_URL"`
	// HTTPTimeout is the per-request timeout for identity and analytics calls (e.g. "15s").
	HTTPTimeout string `mapstructure:"HTTP_TIMEOUT"`

	// StorageDriver selects the persisted key-value backend: sqlite, memory, redis or postgres.
	StorageDriver string `mapstructure:"STORAGE_DRIVER"`
	// StoragePath is the SQLite file used when StorageDriver is sqlite.
	StoragePath string `mapstructure:"STORAGE_PATH"`
	// RedisAddr is host:port of the Redis server when StorageDriver is redis.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	// RedisPrefix namespaces every stored key (default "analytics:").
	RedisPrefix string `mapstructure:"REDIS_PREFIX"`
	// DatabaseURL is the Postgres DSN when StorageDriver is postgres; also used by cmd/migrate.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// LogFormat is text or json.
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// OTLPEndpoint enables OTLP export of client traces, metrics and logs when set (e.g. localhost:4317).
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext gRPC to the collector even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// ServiceName is the OTel service.name resource attribute.
	ServiceName string `mapstructure:"OTEL_SERVICE_NAME"`
	// MirrorEventsToOTel also emits every telemetry envelope as an OTel log record.
	MirrorEventsToOTel bool `mapstructure:"TELEMETRY_MIRROR_OTEL"`
	// LokiURL also pushes every telemetry envelope to Grafana Loki when set (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// DrainTimeout bounds how long the CLI waits for in-flight events before exit (e.g. "5s").
	DrainTimeout string `mapstructure:"TELEMETRY_DRAIN_TIMEOUT"`

	// ScreenResolution overrides the detected terminal size reported as screen_resolution.
	ScreenResolution string `mapstructure:"SCREEN_RESOLUTION"`
	// UserAgent overrides the default user_agent reported with each event.
	UserAgent string `mapstructure:"USER_AGENT"`
}

// flagKeys maps the command-line flags registered by AddFlags to their config keys.
var flagKeys = map[string]string{
	"api-url":   "API_BASE_URL",
	"log-level": "LOG_LEVEL",
	"storage":   "STORAGE_DRIVER",
}

// AddFlags registers the flags that LoadWithFlags binds over the environment.
func AddFlags(fs *pflag.FlagSet) {
	fs.String("api-url", "", "API gateway base URL (overrides API_BASE_URL)")
	fs.String("log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
	fs.String("storage", "", "memory, sqlite, redis or postgres (overrides STORAGE_DRIVER)")
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored. Env vars override .env; an env var set to "" counts as set.
// Returns an error if required fields are invalid.
func Load() (*Config, error) {
	return LoadWithFlags(nil)
}

// LoadWithFlags is Load with the AddFlags flags of fs bound on top: a flag given on the command
// line wins over env and .env. fs may be nil.
func LoadWithFlags(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			f := fs.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("config: bind flag --%s: %w", name, err)
			}
		}
	}

	v.SetDefault("API_BASE_URL", "http://localhost:8000")
	v.SetDefault("HTTP_TIMEOUT", "15s")
	v.SetDefault("STORAGE_DRIVER", StorageSQLite)
	v.SetDefault("STORAGE_PATH", "analytics-client.db")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_PREFIX", "analytics:")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "analytics-client")
	v.SetDefault("TELEMETRY_MIRROR_OTEL", false)
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("TELEMETRY_DRAIN_TIMEOUT", "5s")
	v.SetDefault("SCREEN_RESOLUTION", "")
	v.SetDefault("USER_AGENT", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.APIBaseURL = strings.TrimSuffix(strings.TrimSpace(cfg.APIBaseURL), "/")
	if cfg.APIBaseURL == "" {
		return nil, errors.New("config: API_BASE_URL must be set")
	}
	if u, err := url.Parse(cfg.APIBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.New("config: API_BASE_URL must be an absolute http(s) URL")
	}

	if strings.TrimSpace(cfg.ServiceName) == "" {
		cfg.ServiceName = "analytics-client"
	}

	cfg.StorageDriver = strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	if cfg.StorageDriver == "" {
		cfg.StorageDriver = StorageSQLite
	}
	switch cfg.StorageDriver {
	case StorageMemory:
	case StorageSQLite:
		if cfg.StoragePath == "" {
			return nil, errors.New("config: STORAGE_PATH must be set when STORAGE_DRIVER=sqlite")
		}
	case StorageRedis:
		if cfg.RedisAddr == "" {
			return nil, errors.New("config: REDIS_ADDR must be set when STORAGE_DRIVER=redis")
		}
	case StoragePostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("config: DATABASE_URL must be set when STORAGE_DRIVER=postgres")
		}
	default:
		return nil, errors.New("config: STORAGE_DRIVER must be one of memory, sqlite, redis, postgres")
	}

	return &cfg, nil
}

// RequestTimeout parses HTTPTimeout as a time.Duration. Returns 15s if unset or invalid.
func (c *Config) RequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.HTTPTimeout)
	if err != nil || d <= 0 {
		return 15 * time.Second
	}
	return d
}

// DrainDuration parses DrainTimeout as a time.Duration. Returns 5s if unset or invalid.
func (c *Config) DrainDuration() time.Duration {
	d, err := time.ParseDuration(c.DrainTimeout)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

// TelemetryExportEnabled reports whether an OTLP collector endpoint is configured.
func (c *Config) TelemetryExportEnabled() bool {
	return c != nil && strings.TrimSpace(c.OTLPEndpoint) != ""
}
