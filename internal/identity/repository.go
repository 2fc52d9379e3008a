package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/idmint/idmint/internal/apperr"
)

const uniqueViolation = "23505"

// Repository persists identities keyed by (category, phone).
type Repository interface {
	Create(ctx context.Context, identity Identity) error
	FindByPhone(ctx context.Context, category Category, phone string) (Identity, error)
}

var tableByCategory = map[Category]string{
	CategoryStandard: "identities",
	CategorySSA:      "ssa_identities",
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func tableFor(category Category) (string, error) {
	table, ok := tableByCategory[category]
	if !ok {
		return "", apperr.New(apperr.ErrInvalidInput, "unknown id_type "+string(category))
	}
	return table, nil
}

// Create inserts a new identity. The phone primary key turns a concurrent
// duplicate into a Conflict instead of a second row.
func (r *PostgresRepository) Create(ctx context.Context, identity Identity) error {
	table, err := tableFor(identity.Category)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`INSERT INTO %s (phone, id_type, first_name, last_name, date_of_birth, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`, table)
	_, err = r.db.Exec(ctx, query,
		identity.Phone, identity.IDType, identity.FirstName, identity.LastName,
		identity.DateOfBirth, identity.CreatedAt.UTC(), identity.UpdatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return apperr.New(apperr.ErrConflict, "User already exists")
		}
		return err
	}
	return nil
}

// FindByPhone fetches an identity by category and phone number.
func (r *PostgresRepository) FindByPhone(ctx context.Context, category Category, phone string) (Identity, error) {
	table, err := tableFor(category)
	if err != nil {
		return Identity{}, err
	}
	query := fmt.Sprintf(`SELECT phone, id_type, first_name, last_name, date_of_birth, created_at, updated_at
        FROM %s WHERE phone = $1`, table)

	var (
		identity             Identity
		createdAt, updatedAt time.Time
	)
	identity.Category = category
	err = r.db.QueryRow(ctx, query, phone).Scan(
		&identity.Phone, &identity.IDType, &identity.FirstName, &identity.LastName,
		&identity.DateOfBirth, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Identity{}, apperr.New(apperr.ErrNotFound, "User not found")
		}
		return Identity{}, err
	}
	identity.CreatedAt = createdAt.UTC()
	identity.UpdatedAt = updatedAt.UTC()
	return identity, nil
}
