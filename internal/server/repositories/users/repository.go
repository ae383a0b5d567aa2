// Package users provides the user directory: lookups, uniqueness counts and
// persistence of account records.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
)

// Repository is the user directory. Finders return common.ErrorNotFound for
// a missing record; Save returns common.ErrorConflict when the username or
// email is already taken.
//
// Each update writes only its own columns, so concurrent writers that read
// the record earlier cannot revert each other. UpdateByID covers the
// self-service profile (email, display name, avatar, bio). The update
// methods report false when no row matched.
type Repository interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByUsernameAndPasswordHash(ctx context.Context, username, passwordHash string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	CountByUsername(ctx context.Context, username string) (int, error)
	CountByEmail(ctx context.Context, email string) (int, error)
	CountByEmailExcludingID(ctx context.Context, email, id string) (int, error)
	Save(ctx context.Context, user *models.User) error
	UpdateByID(ctx context.Context, user *models.User) (bool, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) (bool, error)
	UpdateStatus(ctx context.Context, id string, status models.Status, at time.Time) (bool, error)
	RecordLogin(ctx context.Context, id string, at time.Time, ip, location string) (bool, error)
}
