package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, GATEKEEPER_CONFIG env,
//     ./config.yaml, /etc/gatekeeper/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. GATEKEEPER_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/gatekeeper/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("GATEKEEPER_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/gatekeeper/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps environment variables to config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GATEKEEPER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("GATEKEEPER_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("GATEKEEPER_AUDIT_STORE"); v != "" {
		cfg.Audit.Store = v
	}
	if v := os.Getenv("GATEKEEPER_AUDIT_DSN"); v != "" {
		cfg.Audit.Postgres.DSN = v
	}
	if v := os.Getenv("GATEKEEPER_RATELIMIT_RPM"); v != "" {
		if rpm, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.RequestsPerMinute = rpm
		}
	}
	if v := os.Getenv("GATEKEEPER_RATELIMIT_ENABLED"); v != "" {
		cfg.RateLimit.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
}

// resolveFileReferences loads the _file variants of secret-bearing
// fields. A set plain value always wins over its _file variant.
func resolveFileReferences(cfg *Config) error {
	var err error

	if cfg.Auth.JWTSecret, err = resolveFileRef(cfg.Auth.JWTSecret, cfg.Auth.JWTSecretFile); err != nil {
		return fmt.Errorf("auth.jwt_secret_file: %w", err)
	}

	if cfg.Audit.Postgres.DSN, err = resolveFileRef(cfg.Audit.Postgres.DSN, cfg.Audit.Postgres.DSNFile); err != nil {
		return fmt.Errorf("audit.postgres.dsn_file: %w", err)
	}

	for i := range cfg.Auth.APIKeys {
		k := &cfg.Auth.APIKeys[i]
		if k.Key, err = resolveFileRef(k.Key, k.KeyFile); err != nil {
			return fmt.Errorf("auth.api_keys[%d].key_file: %w", i, err)
		}
	}

	return nil
}

// resolveFileRef returns value if set, otherwise the trimmed contents of
// the referenced file.
func resolveFileRef(value, file string) (string, error) {
	if value != "" || file == "" {
		return value, nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
