// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Validation ValidationConfig
	Rate       RateLimitConfig
	Security   SecurityConfig
	Logging    LoggingConfig
	History    HistoryConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing the response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection settings for run history.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string. Empty disables run history.
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
}

// Enabled reports whether a database is configured.
func (c DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// ValidationConfig holds validation run settings.
type ValidationConfig struct {
	// MaxBodySize is the maximum request body in bytes (default: 50MB)
	MaxBodySize int64 `env:"VALIDATION_MAX_BODY_SIZE" default:"52428800"`

	// MaxConcurrent is the maximum number of parallel runs (default: 5)
	MaxConcurrent int `env:"VALIDATION_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long a run waits for a slot (default: 30s)
	MaxWaitTime time.Duration `env:"VALIDATION_MAX_WAIT_TIME" default:"30s"`

	// MatchThreshold is the minimum header similarity score, 0-1 (default: 0.5)
	MatchThreshold float64 `env:"VALIDATION_MATCH_THRESHOLD" default:"0.5"`

	// ProfilesFile is an optional YAML file with extra profiles
	ProfilesFile string `env:"VALIDATION_PROFILES_FILE"`

	// PartitionPattern is the regexp extracting the bundle key from the source identifier
	PartitionPattern string `env:"VALIDATION_PARTITION_PATTERN" default:"[(\\[]([A-Za-z][0-9]+)[)\\]]"`

	// DefaultPartition is the bundle for rows without a key (default: W1)
	DefaultPartition string `env:"VALIDATION_DEFAULT_PARTITION" default:"W1"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// ValidateLimit is requests per minute for validation endpoints (default: 20)
	ValidateLimit int `env:"RATE_LIMIT_VALIDATE" default:"20"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey enables X-API-Key authentication on /api routes (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// HistoryConfig holds run history retention settings.
type HistoryConfig struct {
	// RetentionDays is how long runs are kept (default: 30)
	RetentionDays int `env:"HISTORY_RETENTION_DAYS" default:"30"`

	// PruneInterval is how often old runs are pruned (default: 24h)
	PruneInterval time.Duration `env:"HISTORY_PRUNE_INTERVAL" default:"24h"`
}

// ProxyPrefixes parses TrustedProxies. Bare addresses are treated as
// single-host prefixes. Valid entries are returned even when some fail;
// the error names every entry that could not be parsed.
func (c SecurityConfig) ProxyPrefixes() ([]netip.Prefix, error) {
	var (
		prefixes []netip.Prefix
		bad      []string
	)
	for _, entry := range c.TrustedProxies {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if p, err := netip.ParsePrefix(entry); err == nil {
			prefixes = append(prefixes, p.Masked())
			continue
		}
		if addr, err := netip.ParseAddr(entry); err == nil {
			addr = addr.Unmap()
			prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		bad = append(bad, strconv.Quote(entry))
	}
	if len(bad) > 0 {
		return prefixes, fmt.Errorf("invalid trusted proxy entries: %s", strings.Join(bad, ", "))
	}
	return prefixes, nil
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
