// Package config provides unified configuration for the einlass gateway.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (EINLASS_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the einlass gateway.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Auth          AuthConfig          `yaml:"auth"`
	Session       SessionConfig       `yaml:"session"`
	Validator     ValidatorConfig     `yaml:"validator"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`          // default: 8080
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"` // default: 30s
}

// AuthConfig holds the authentication layer entries seeding the provider
// registry. Each refresh re-parses this section and diffs the layer set.
type AuthConfig struct {
	Layers []AuthLayer `yaml:"layers"`

	// ProtectedPaths lists path prefixes for which authentication is
	// mandatory. Requests outside these prefixes run under an optional
	// policy (anonymous pass-through when unauthenticated).
	ProtectedPaths []string `yaml:"protected_paths"`
}

// AuthLayer configures the auth module for one (layer, app context) pair.
type AuthLayer struct {
	Layer      string            `yaml:"layer"`       // e.g. "http"
	AppContext string            `yaml:"app_context"` // empty = layer default
	Module     string            `yaml:"module"`      // module name in the factory table; empty = no module engaged
	Options    map[string]string `yaml:"options"`     // module-specific options
}

// SessionConfig holds session store settings.
type SessionConfig struct {
	Type           string        `yaml:"type"`             // "memory", default: "memory"
	CookieName     string        `yaml:"cookie_name"`      // default: "einlass_session"
	TTL            time.Duration `yaml:"ttl"`              // idle expiry, default: 30m
	MaxSessions    int           `yaml:"max_sessions"`     // default: 10000, 0 = unlimited
	SigningKey     string        `yaml:"signing_key"`      // cookie token HMAC key
	SigningKeyFile string        `yaml:"signing_key_file"` // _file variant for signing_key
	Secure         bool          `yaml:"secure"`           // mark cookie HTTPS-only
}

// ValidatorConfig holds credential validator settings.
type ValidatorConfig struct {
	Type     string                `yaml:"type"` // "static" or "postgres", default: "static"
	Static   StaticValidatorConfig `yaml:"static"`
	Postgres PostgresConfig        `yaml:"postgres"`
}

// StaticValidatorConfig lists the accounts of the in-memory validator.
type StaticValidatorConfig struct {
	Users []StaticUser `yaml:"users"`
}

// StaticUser describes a single static account entry.
type StaticUser struct {
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	Groups   []string `yaml:"groups"`
}

// PostgresConfig holds PostgreSQL-specific validator settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 25
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: false
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
		Session: SessionConfig{
			Type:        "memory",
			CookieName:  "einlass_session",
			TTL:         30 * time.Minute,
			MaxSessions: 10000,
		},
		Validator: ValidatorConfig{
			Type: "static",
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
