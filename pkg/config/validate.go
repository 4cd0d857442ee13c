package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	// server.port must be positive.
	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}

	// At least one credential mechanism must be configured.
	if c.Auth.JWTSecret == "" && len(c.Auth.APIKeys) == 0 {
		errs = append(errs, fmt.Errorf("auth.jwt_secret (or auth.jwt_secret_file) or auth.api_keys is required"))
	}

	for i, k := range c.Auth.APIKeys {
		if k.Key == "" {
			errs = append(errs, fmt.Errorf("auth.api_keys[%d].key (or key_file) is required", i))
		}
		if k.UserID == "" {
			errs = append(errs, fmt.Errorf("auth.api_keys[%d].user_id is required", i))
		}
		if k.TenantID == "" {
			errs = append(errs, fmt.Errorf("auth.api_keys[%d].tenant_id is required", i))
		}
	}

	// audit.store must be a known value.
	switch c.Audit.Store {
	case "memory", "postgres":
		// valid
	default:
		errs = append(errs, fmt.Errorf("audit.store must be \"memory\" or \"postgres\", got %q", c.Audit.Store))
	}

	// If audit.store is "postgres", DSN or DSNFile must be set.
	if c.Audit.Store == "postgres" {
		if c.Audit.Postgres.DSN == "" && c.Audit.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("audit.postgres.dsn or audit.postgres.dsn_file is required when audit.store is \"postgres\""))
		}
	}

	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, fmt.Errorf("rate_limit.requests_per_minute must be > 0 when rate limiting is enabled, got %d", c.RateLimit.RequestsPerMinute))
	}

	return errors.Join(errs...)
}
