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

	// session.type must be a known value.
	if c.Session.Type != "memory" {
		errs = append(errs, fmt.Errorf("session.type must be \"memory\", got %q", c.Session.Type))
	}

	// session.signing_key is required so cookies survive restarts and
	// cannot be forged.
	if c.Session.SigningKey == "" {
		errs = append(errs, errors.New("session.signing_key (or signing_key_file) is required"))
	}

	if c.Session.TTL <= 0 {
		errs = append(errs, fmt.Errorf("session.ttl must be > 0, got %v", c.Session.TTL))
	}

	// validator.type must be a known value.
	switch c.Validator.Type {
	case "static":
		// valid; an empty user list is allowed (all logins fail)
	case "postgres":
		if c.Validator.Postgres.DSN == "" {
			errs = append(errs, errors.New("validator.postgres.dsn (or dsn_file) is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("validator.type must be \"static\" or \"postgres\", got %q", c.Validator.Type))
	}

	// auth.layers must not contain duplicate (layer, app_context) keys;
	// the registry would reject the second registration at refresh time,
	// so catch it here with a better message.
	seen := make(map[string]bool)
	for i, l := range c.Auth.Layers {
		if l.Layer == "" {
			errs = append(errs, fmt.Errorf("auth.layers[%d].layer is required", i))
			continue
		}
		key := l.Layer + "\x00" + l.AppContext
		if seen[key] {
			errs = append(errs, fmt.Errorf("auth.layers[%d]: duplicate entry for layer %q app_context %q", i, l.Layer, l.AppContext))
		}
		seen[key] = true
	}

	return errors.Join(errs...)
}
