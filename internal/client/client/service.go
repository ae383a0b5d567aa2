package client

import (
	"context"

	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
)

type Client interface {
	Close() error
	Session() string
	SetSession(handle string)
	Register(ctx context.Context, username, password, confirm, email string) (*models.UserView, error)
	Login(ctx context.Context, username, password string) (*models.UserView, error)
	Logout(ctx context.Context) error
	CurrentUser(ctx context.Context) (*models.UserView, error)
	ChangePassword(ctx context.Context, oldPassword, newPassword, confirm string) error
	UpdateProfile(ctx context.Context, patch Profile) (*models.UserView, error)
	SetUserStatus(ctx context.Context, userID, status string) (*models.UserView, error)
}

// Profile holds optional profile changes; empty fields are not sent.
type Profile struct {
	DisplayName string
	AvatarRef   string
	Bio         string
	Email       string
}
