package authpg

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/skillbridgeai/skillbridge/internal/authapi"
)

// PostgresUserStore persists application users in PostgreSQL without going
// through an ORM.
type PostgresUserStore struct {
	pool *pgxpool.Pool
}

// NewPostgresUserStore constructs a Postgres store.
func NewPostgresUserStore(pool *pgxpool.Pool) *PostgresUserStore {
	return &PostgresUserStore{pool: pool}
}

// UpsertUser inserts a user keyed by email or refreshes the mutable
// identity fields of an existing one. Role and status are fixed at first
// insert.
func (store *PostgresUserStore) UpsertUser(ctx context.Context, record authapi.UserRecord) (authapi.UserRecord, error) {
	emailKey := strings.ToLower(record.Email)
	newID := uuid.NewString()

	row := store.pool.QueryRow(ctx, `
INSERT INTO users (id, email, name, picture, google_id, role, status)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (email) DO UPDATE
SET name = EXCLUDED.name, picture = EXCLUDED.picture, google_id = EXCLUDED.google_id
RETURNING id, email, name, picture, google_id, role, status
`, newID, emailKey, record.Name, record.Picture, record.GoogleID, record.Role, record.Status)

	var stored authapi.UserRecord
	if scanErr := row.Scan(&stored.ID, &stored.Email, &stored.Name, &stored.Picture, &stored.GoogleID, &stored.Role, &stored.Status); scanErr != nil {
		return authapi.UserRecord{}, fmt.Errorf("user_store.upsert.postgres: %w", scanErr)
	}
	return stored, nil
}

// GetUserByEmail returns a user by email.
func (store *PostgresUserStore) GetUserByEmail(ctx context.Context, email string) (authapi.UserRecord, error) {
	row := store.pool.QueryRow(ctx, `
SELECT id, email, name, picture, google_id, role, status
FROM users
WHERE email = $1
`, strings.ToLower(email))

	var stored authapi.UserRecord
	if scanErr := row.Scan(&stored.ID, &stored.Email, &stored.Name, &stored.Picture, &stored.GoogleID, &stored.Role, &stored.Status); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return authapi.UserRecord{}, authapi.ErrUserNotFound
		}
		return authapi.UserRecord{}, fmt.Errorf("user_store.get.postgres: %w", scanErr)
	}
	return stored, nil
}
