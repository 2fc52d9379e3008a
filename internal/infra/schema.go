package infra

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaStatements creates the identity tables (one per category) and the
// OTP table. Primary keys on phone make duplicate registration and OTP
// upserts atomic at the database level.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS identities (
        phone         TEXT PRIMARY KEY,
        id_type       TEXT NOT NULL,
        first_name    TEXT NOT NULL,
        last_name     TEXT NOT NULL,
        date_of_birth DATE NOT NULL,
        created_at    TIMESTAMPTZ NOT NULL,
        updated_at    TIMESTAMPTZ NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS ssa_identities (
        phone         TEXT PRIMARY KEY,
        id_type       TEXT NOT NULL,
        first_name    TEXT NOT NULL,
        last_name     TEXT NOT NULL,
        date_of_birth DATE NOT NULL,
        created_at    TIMESTAMPTZ NOT NULL,
        updated_at    TIMESTAMPTZ NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS otps (
        phone          TEXT PRIMARY KEY,
        code_hash      TEXT NOT NULL,
        target_address TEXT NOT NULL,
        created_at     TIMESTAMPTZ NOT NULL,
        expires_at     TIMESTAMPTZ NOT NULL,
        consumed_at    TIMESTAMPTZ
    )`,
}

// EnsureSchema creates missing tables. It is safe to run on every start.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
