// Package postgres provides a PostgreSQL-backed credential validator
// using pgx/v5 connection pooling. It only reads the account tables;
// account management belongs to whatever system writes them.
package postgres

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/einlass-dev/einlass/pkg/authn"
)

// Validator checks credentials against the accounts and account_groups
// tables.
type Validator struct {
	pool *pgxpool.Pool
}

// Ensure Validator implements the contract at compile time.
var _ authn.CredentialValidator = (*Validator)(nil)

// New creates a PostgreSQL validator with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Validator, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	v := &Validator{pool: pool}

	if cfg.MigrateOnStart {
		if err := v.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return v, nil
}

// Close releases the connection pool.
func (v *Validator) Close() {
	v.pool.Close()
}

// Validate checks the pair against the accounts table and returns the
// account's group names in their configured order. Unknown users, wrong
// passwords, and locked accounts are all reported as
// authn.ErrInvalidCredentials; the distinction stays server-side.
func (v *Validator) Validate(ctx context.Context, username, password string) ([]string, error) {
	var storedHash string
	var locked bool
	err := v.pool.QueryRow(ctx,
		"SELECT password_hash, locked FROM accounts WHERE username = $1",
		username,
	).Scan(&storedHash, &locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, authn.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("querying account: %w", err)
	}

	submitted := sha256.Sum256([]byte(password))
	if subtle.ConstantTimeCompare([]byte(hex.EncodeToString(submitted[:])), []byte(storedHash)) != 1 {
		return nil, authn.ErrInvalidCredentials
	}
	if locked {
		return nil, authn.ErrInvalidCredentials
	}

	rows, err := v.pool.Query(ctx,
		"SELECT group_name FROM account_groups WHERE username = $1 ORDER BY position, group_name",
		username,
	)
	if err != nil {
		return nil, fmt.Errorf("querying groups: %w", err)
	}
	defer rows.Close()

	var groups []string
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, fmt.Errorf("scanning group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading groups: %w", err)
	}

	return groups, nil
}

// HashPassword returns the hex form of the SHA-256 digest stored in the
// password_hash column. Exposed for provisioning tooling and tests.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}
