// Package sessions provides a PostgreSQL-backed session store for
// deployments that prefer not to run Redis.
package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/dbx"
	"github.com/dmitrijs2005/gatekeeper/internal/timex"
)

// PostgresRepository implements sessionstore.Store over dbx.DBTX.
type PostgresRepository struct {
	db  dbx.DBTX
	now timex.Clock
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db, now: time.Now}
}

// Put inserts or replaces the session row with an expiry of now+ttl.
func (r *PostgresRepository) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	query := `
		INSERT INTO sessions (token, payload, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token) DO UPDATE SET payload = EXCLUDED.payload, expires_at = EXCLUDED.expires_at
	`
	if _, err := r.db.ExecContext(ctx, query, key, value, r.now().Add(ttl)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Get returns the payload of a live session, or common.ErrorNotFound.
func (r *PostgresRepository) Get(ctx context.Context, key string) ([]byte, error) {
	query := `
		SELECT payload
		FROM sessions
		WHERE token = $1 AND expires_at > $2
	`
	var payload []byte
	if err := r.db.QueryRowContext(ctx, query, key, r.now()).Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return payload, nil
}

// Delete removes a session by token. Missing rows are not an error.
func (r *PostgresRepository) Delete(ctx context.Context, key string) error {
	query := `
		DELETE FROM sessions
		WHERE token = $1
	`
	if _, err := r.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// DeleteExpired purges rows past their expiry and reports how many went.
// Expired rows are already invisible to Get; this only reclaims space.
func (r *PostgresRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM sessions
		WHERE expires_at <= $1
	`
	res, err := r.db.ExecContext(ctx, query, r.now())
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
