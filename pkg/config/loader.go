package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, EINLASS_CONFIG env, ./config.yaml, /etc/einlass/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	// Start with defaults.
	cfg := Defaults()

	// Discover and load YAML config file.
	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	// Apply environment variable overrides.
	applyEnvOverrides(&cfg)

	// Resolve _file references.
	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	// Validate.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. EINLASS_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/einlass/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	// Explicit path takes priority.
	if configPath != "" {
		return configPath
	}

	// Check EINLASS_CONFIG env var.
	if envPath := os.Getenv("EINLASS_CONFIG"); envPath != "" {
		return envPath
	}

	// Check common locations.
	candidates := []string{
		"config.yaml",
		"/etc/einlass/config.yaml",
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
	if v := os.Getenv("EINLASS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("EINLASS_SESSION_KEY"); v != "" {
		cfg.Session.SigningKey = v
	}
	if v := os.Getenv("EINLASS_SESSION_TTL"); v != "" {
		if ttl, err := time.ParseDuration(v); err == nil {
			cfg.Session.TTL = ttl
		}
	}
	if v := os.Getenv("EINLASS_VALIDATOR"); v != "" {
		cfg.Validator.Type = v
	}
	if v := os.Getenv("EINLASS_PG_DSN"); v != "" {
		cfg.Validator.Postgres.DSN = v
	}
	if v := os.Getenv("EINLASS_PROTECTED_PATHS"); v != "" {
		var paths []string
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				paths = append(paths, p)
			}
		}
		if len(paths) > 0 {
			cfg.Auth.ProtectedPaths = paths
		}
	}
}

// resolveFileReferences reads _file fields and populates the corresponding
// value fields. For each field ending in _file, if the value field is empty
// and the file field is set, the file is read, whitespace is trimmed, and
// the value field is populated.
func resolveFileReferences(cfg *Config) error {
	// session.signing_key_file -> session.signing_key
	if cfg.Session.SigningKeyFile != "" && cfg.Session.SigningKey == "" {
		val, err := readSecretFile(cfg.Session.SigningKeyFile)
		if err != nil {
			return fmt.Errorf("session.signing_key_file: %w", err)
		}
		cfg.Session.SigningKey = val
	}

	// validator.postgres.dsn_file -> validator.postgres.dsn
	if cfg.Validator.Postgres.DSNFile != "" && cfg.Validator.Postgres.DSN == "" {
		val, err := readSecretFile(cfg.Validator.Postgres.DSNFile)
		if err != nil {
			return fmt.Errorf("validator.postgres.dsn_file: %w", err)
		}
		cfg.Validator.Postgres.DSN = val
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
