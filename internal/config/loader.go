package config

import (
	"fmt"
	"net/url"
	"os"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"
)

// LookupFunc returns the value of a configuration key and whether it is set.
// os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Returns an error if required values are missing or validation fails.
func Load() (*Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom is Load with an explicit source of values.
func LoadFrom(lookup LookupFunc) (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem(), lookup); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// loadStruct recursively populates struct fields from lookup.
func loadStruct(v reflect.Value, lookup LookupFunc) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		// Skip unexported fields
		if !fieldVal.CanSet() {
			continue
		}

		// Recurse into nested structs
		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal, lookup); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		if envName == "" {
			continue
		}
		envAlt := field.Tag.Get("envAlt")
		defaultVal := field.Tag.Get("default")
		required := field.Tag.Get("required") == "true"

		// Try primary key, then alternate
		value, _ := lookup(envName)
		if value == "" && envAlt != "" {
			value, _ = lookup(envAlt)
		}
		value = strings.TrimSpace(value)

		if value == "" {
			if required {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = defaultVal
		}

		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		// Handle time.Duration specially
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		// Split comma-separated values, trim whitespace
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				result = append(result, p)
			}
		}
		field.Set(reflect.ValueOf(result))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Backend selection
	c.Backend.Kind = strings.ToLower(c.Backend.Kind)
	switch c.Backend.Kind {
	case BackendPostgres:
		if c.Database.URL == "" {
			errs = append(errs, "DATABASE_URL is required for the postgres backend")
		}
		if c.Database.MaxConns < c.Database.MinConns {
			errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
				c.Database.MaxConns, c.Database.MinConns))
		}
		if c.Database.MaxConns <= 0 {
			errs = append(errs, "DB_MAX_CONNS must be positive")
		}
		if c.Database.MinConns < 0 {
			errs = append(errs, "DB_MIN_CONNS must be non-negative")
		}
	case BackendPlatform:
		if c.Platform.BaseURL == "" {
			errs = append(errs, "PLATFORM_BASE_URL is required for the platform backend")
		} else if u, err := url.Parse(c.Platform.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Sprintf("PLATFORM_BASE_URL (%q) must be an absolute URL", c.Platform.BaseURL))
		}
		if c.Platform.Timeout <= 0 {
			errs = append(errs, "PLATFORM_TIMEOUT must be positive")
		}
		if c.Platform.RetryCount < 0 {
			errs = append(errs, "PLATFORM_RETRY_COUNT must be non-negative")
		}
		if c.MQTT.Enabled() {
			errs = append(errs, "MQTT_BROKER requires the postgres backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("BACKEND (%q) must be one of: postgres, platform", c.Backend.Kind))
	}

	if c.Backend.MaxConcurrent <= 0 {
		errs = append(errs, "BACKEND_MAX_CONCURRENT must be positive")
	}
	if c.Backend.MaxWait <= 0 {
		errs = append(errs, "BACKEND_MAX_WAIT must be positive")
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	// Table validation
	if c.Table.DefaultPageSize <= 0 {
		errs = append(errs, "TABLE_DEFAULT_PAGE_SIZE must be positive")
	}
	if c.Table.SearchQuietPeriod <= 0 {
		errs = append(errs, "TABLE_SEARCH_QUIET_PERIOD must be positive")
	}
	if c.Table.LoadTimeout <= 0 {
		errs = append(errs, "TABLE_LOAD_TIMEOUT must be positive")
	}
	if c.Table.ExportFileName == "" {
		errs = append(errs, "TABLE_EXPORT_FILE_NAME must not be empty")
	}
	if c.Table.SessionTTL <= 0 {
		errs = append(errs, "TABLE_SESSION_TTL must be positive")
	}
	if c.Table.SweepInterval <= 0 {
		errs = append(errs, "TABLE_SWEEP_INTERVAL must be positive")
	}

	// MQTT validation
	if c.MQTT.Enabled() {
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, fmt.Sprintf("MQTT_QOS (%d) must be 0, 1 or 2", c.MQTT.QoS))
		}
		if strings.Count(c.MQTT.StatusTopic, "/") < 3 {
			errs = append(errs, fmt.Sprintf("MQTT_STATUS_TOPIC (%q) must have the sensor id as its third level", c.MQTT.StatusTopic))
		}
	}

	// Rate limit validation
	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}
	if c.Rate.Enabled && c.Rate.MutationLimit <= 0 {
		errs = append(errs, "RATE_LIMIT_MUTATIONS must be positive when rate limiting is enabled")
	}

	// Security validation
	if slices.Contains(c.Security.AllowedOrigins, "*") && len(c.Security.AllowedOrigins) > 1 {
		errs = append(errs, "CORS_ALLOWED_ORIGINS must be either * or a list of origins")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// Credentials are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port)
	fmt.Fprintf(&b, "Backend: %q, ", c.Backend.Kind)
	fmt.Fprintf(&b, "Database: {URL: %s, MaxConns: %d, MinConns: %d}, ",
		mask(c.Database.URL), c.Database.MaxConns, c.Database.MinConns)
	fmt.Fprintf(&b, "Platform: {BaseURL: %q, Token: %s}, ", c.Platform.BaseURL, mask(c.Platform.Token))
	fmt.Fprintf(&b, "Table: {DefaultPageSize: %d, SearchQuietPeriod: %s}, ",
		c.Table.DefaultPageSize, c.Table.SearchQuietPeriod)
	fmt.Fprintf(&b, "MQTT: {Broker: %q, Password: %s}, ", c.MQTT.Broker, mask(c.MQTT.Password))
	fmt.Fprintf(&b, "Rate: {Enabled: %v, RequestsPerMinute: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute)
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}

func mask(s string) string {
	if s == "" {
		return "[UNSET]"
	}
	return "[MASKED]"
}
