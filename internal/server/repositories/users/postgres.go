package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/dbx"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const userColumns = `id, username, password_hash, email, display_name, avatar_ref, bio,
		role, status, last_login_at, last_login_ip, last_login_location, created_at, updated_at`

// PostgresRepository implements Repository over dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return r.findOne(ctx, query, username)
}

func (r *PostgresRepository) FindByUsernameAndPasswordHash(ctx context.Context, username, passwordHash string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1 AND password_hash = $2`
	return r.findOne(ctx, query, username, passwordHash)
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.findOne(ctx, query, id)
}

func (r *PostgresRepository) CountByUsername(ctx context.Context, username string) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM users WHERE username = $1`, username)
}

func (r *PostgresRepository) CountByEmail(ctx context.Context, email string) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM users WHERE email = $1`, email)
}

func (r *PostgresRepository) CountByEmailExcludingID(ctx context.Context, email, id string) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM users WHERE email = $1 AND id <> $2`, email, id)
}

// Save inserts a new user. The caller assigns ID and timestamps.
func (r *PostgresRepository) Save(ctx context.Context, u *models.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := r.db.ExecContext(ctx, query,
		u.ID, u.Username, u.PasswordHash, u.Email, u.DisplayName, u.AvatarRef, u.Bio,
		int(u.Role), int(u.Status), u.LastLoginAt, u.LastLoginIP, u.LastLoginLocation, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return common.ErrorConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// UpdateByID writes the profile fields of the row with u.ID.
func (r *PostgresRepository) UpdateByID(ctx context.Context, u *models.User) (bool, error) {
	query := `
		UPDATE users
		SET email = $2, display_name = $3, avatar_ref = $4, bio = $5, updated_at = $6
		WHERE id = $1
	`
	return r.update(ctx, query, u.ID, u.Email, u.DisplayName, u.AvatarRef, u.Bio, u.UpdatedAt)
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) (bool, error) {
	query := `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`
	return r.update(ctx, query, id, passwordHash, at)
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status models.Status, at time.Time) (bool, error) {
	query := `UPDATE users SET status = $2, updated_at = $3 WHERE id = $1`
	return r.update(ctx, query, id, int(status), at)
}

func (r *PostgresRepository) RecordLogin(ctx context.Context, id string, at time.Time, ip, location string) (bool, error) {
	query := `
		UPDATE users
		SET last_login_at = $2, last_login_ip = $3, last_login_location = $4, updated_at = $2
		WHERE id = $1
	`
	return r.update(ctx, query, id, at, ip, location)
}

func (r *PostgresRepository) update(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return false, common.ErrorConflict
		}
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}

func (r *PostgresRepository) findOne(ctx context.Context, query string, args ...any) (*models.User, error) {
	u := &models.User{}
	var (
		role, status int
		lastLoginAt  sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&u.ID, &u.Username, &u.PasswordHash, &u.Email, &u.DisplayName, &u.AvatarRef, &u.Bio,
		&role, &status, &lastLoginAt, &u.LastLoginIP, &u.LastLoginLocation, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	// Codes are kept raw; the guard validates them before any role decision.
	u.Role = models.Role(role)
	u.Status = models.Status(status)
	if lastLoginAt.Valid {
		t := lastLoginAt.Time
		u.LastLoginAt = &t
	}
	return u, nil
}

func (r *PostgresRepository) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
