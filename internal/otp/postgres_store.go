package otp

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore builds a Postgres-backed OTP store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// FindByPhone fetches the OTP record for phone.
func (s *PostgresStore) FindByPhone(ctx context.Context, phone string) (Record, error) {
	const query = `SELECT phone, code_hash, target_address, created_at, expires_at, consumed_at
        FROM otps WHERE phone = $1`
	var rec Record
	err := s.db.QueryRow(ctx, query, phone).Scan(
		&rec.Phone, &rec.CodeHash, &rec.TargetAddress, &rec.CreatedAt, &rec.ExpiresAt, &rec.ConsumedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, notFound()
		}
		return Record{}, err
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.ExpiresAt = rec.ExpiresAt.UTC()
	return rec, nil
}

// Upsert writes the record with a single conditional insert.
func (s *PostgresStore) Upsert(ctx context.Context, record Record) error {
	_, err := s.db.Exec(ctx, `INSERT INTO otps (phone, code_hash, target_address, created_at, expires_at, consumed_at)
        VALUES ($1, $2, $3, $4, $5, NULL)
        ON CONFLICT (phone) DO UPDATE SET
            code_hash = EXCLUDED.code_hash,
            target_address = EXCLUDED.target_address,
            created_at = EXCLUDED.created_at,
            expires_at = EXCLUDED.expires_at,
            consumed_at = NULL`,
		record.Phone, record.CodeHash, record.TargetAddress, record.CreatedAt.UTC(), record.ExpiresAt.UTC())
	return err
}

// Consume marks the record used when it still holds codeHash.
func (s *PostgresStore) Consume(ctx context.Context, phone, codeHash string, at time.Time) error {
	cmd, err := s.db.Exec(ctx, `UPDATE otps SET consumed_at = $3
        WHERE phone = $1 AND code_hash = $2 AND consumed_at IS NULL`, phone, codeHash, at.UTC())
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return alreadyUsed()
	}
	return nil
}
