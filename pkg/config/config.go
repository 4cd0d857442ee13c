// Package config provides unified configuration for the gatekeeper
// pipeline server.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (GATEKEEPER_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the gatekeeper server.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Auth          AuthConfig          `yaml:"auth"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Audit         AuditConfig         `yaml:"audit"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`          // default: 8080
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"` // default: 30s
}

// AuthConfig holds identity resolution settings.
type AuthConfig struct {
	// JWTSecret is the HMAC signing secret for bearer tokens (required
	// unless only API keys are configured).
	JWTSecret     string `yaml:"jwt_secret"`
	JWTSecretFile string `yaml:"jwt_secret_file"` // _file variant for jwt_secret

	// Issuer and Audience are validated when non-empty.
	Issuer   string `yaml:"issuer"`
	Audience string `yaml:"audience"`

	// APIKeys lists static service-account credentials.
	APIKeys []APIKeyConfig `yaml:"api_keys"`
}

// APIKeyConfig describes a single service-account key entry.
type APIKeyConfig struct {
	Key      string `yaml:"key"`
	KeyFile  string `yaml:"key_file"` // _file variant for key
	UserID   string `yaml:"user_id"`
	TenantID string `yaml:"tenant_id"`
	Role     string `yaml:"role"`
}

// RateLimitConfig holds the client-address rate limiter settings.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`             // default: true
	RequestsPerMinute int  `yaml:"requests_per_minute"` // default: 600
}

// AuditConfig holds audit store settings.
type AuditConfig struct {
	// Store is "memory" or "postgres" (default: "memory").
	Store string `yaml:"store"`

	// MaxSize bounds the memory store (default: 100000 entries).
	MaxSize int `yaml:"max_size"`

	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`  // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"` // default: 25
	MigrateOnStart bool   `yaml:"migrate_on_start"`
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 600,
		},
		Audit: AuditConfig{
			Store:   "memory",
			MaxSize: 100000,
			Postgres: PostgresConfig{
				MaxConns: 25,
			},
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}
