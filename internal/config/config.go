// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Backend names accepted by BACKEND.
const (
	BackendPostgres = "postgres"
	BackendPlatform = "platform"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Backend  BackendConfig
	Database DatabaseConfig
	Platform PlatformConfig
	Table    TableConfig
	MQTT     MQTTConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing a response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// BackendConfig selects the sensor data service.
type BackendConfig struct {
	// Kind is postgres or platform (default: postgres)
	Kind string `env:"BACKEND" default:"postgres"`

	// MaxConcurrent caps backend calls in flight across all sessions (default: 8)
	MaxConcurrent int `env:"BACKEND_MAX_CONCURRENT" default:"8"`

	// MaxWait is how long a call waits for a free slot (default: 10s)
	MaxWait time.Duration `env:"BACKEND_MAX_WAIT" default:"10s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string, required for the postgres backend.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// EnsureSchema creates the sensor tables on startup (default: true)
	EnsureSchema bool `env:"DB_ENSURE_SCHEMA" default:"true"`
}

// PlatformConfig holds the REST platform client settings.
type PlatformConfig struct {
	// BaseURL is the platform API root, required for the platform backend
	BaseURL string `env:"PLATFORM_BASE_URL"`

	// Token is sent as a bearer token when set
	Token string `env:"PLATFORM_TOKEN"`

	// Timeout bounds each platform request (default: 15s)
	Timeout time.Duration `env:"PLATFORM_TIMEOUT" default:"15s"`

	// RetryCount is how often a 5xx answer is retried (default: 0, single attempt)
	RetryCount int `env:"PLATFORM_RETRY_COUNT" default:"0"`
}

// TableConfig holds record table behaviour.
type TableConfig struct {
	// DefaultPageSize is the page size the postgres backend suggests (default: 10)
	DefaultPageSize int `env:"TABLE_DEFAULT_PAGE_SIZE" default:"10"`

	// SearchQuietPeriod is the debounce delay for search input (default: 500ms)
	SearchQuietPeriod time.Duration `env:"TABLE_SEARCH_QUIET_PERIOD" default:"500ms"`

	// LoadTimeout bounds a single backend fetch (default: 30s)
	LoadTimeout time.Duration `env:"TABLE_LOAD_TIMEOUT" default:"30s"`

	// ExportFileName is the download name of the CSV export (default: Account Data.csv)
	ExportFileName string `env:"TABLE_EXPORT_FILE_NAME" default:"Account Data.csv"`

	// SessionTTL is how long an idle table session is kept (default: 30m)
	SessionTTL time.Duration `env:"TABLE_SESSION_TTL" default:"30m"`

	// SweepInterval is how often idle sessions are removed (default: 1m)
	SweepInterval time.Duration `env:"TABLE_SWEEP_INTERVAL" default:"1m"`
}

// MQTTConfig holds the sensor status ingest settings.
// Ingest is disabled when Broker is empty.
type MQTTConfig struct {
	// Broker is the broker URL, e.g. tcp://localhost:1883
	Broker string `env:"MQTT_BROKER"`

	// ClientID identifies this subscriber (default: parking-table)
	ClientID string `env:"MQTT_CLIENT_ID" default:"parking-table"`

	Username string `env:"MQTT_USERNAME"`
	Password string `env:"MQTT_PASSWORD"`

	// StatusTopic is the subscription filter; the sensor id is the third level
	StatusTopic string `env:"MQTT_STATUS_TOPIC" default:"parking/sensors/+/status"`

	// QoS is the subscription quality of service, 0-2 (default: 1)
	QoS int `env:"MQTT_QOS" default:"1"`

	// ConnectTimeout bounds the initial broker connection (default: 10s)
	ConnectTimeout time.Duration `env:"MQTT_CONNECT_TIMEOUT" default:"10s"`
}

// Enabled reports whether a broker is configured.
func (c *MQTTConfig) Enabled() bool {
	return c.Broker != ""
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 300)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"300"`

	// MutationLimit is requests per minute for deletes and exports (default: 30)
	MutationLimit int `env:"RATE_LIMIT_MUTATIONS" default:"30"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of proxy CIDRs whose
	// X-Real-IP / X-Forwarded-For headers are believed
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// AllowedOrigins is a comma-separated CORS allow list; empty disables CORS
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS"`

	// SecureCookies sets the Secure flag on the session cookie (default: false)
	SecureCookies bool `env:"SECURITY_SECURE_COOKIES" default:"false"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
