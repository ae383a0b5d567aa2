// Package models holds the server-side domain types.
package models

import "time"

// User is the authoritative account record.
type User struct {
	ID                string
	Username          string
	PasswordHash      string
	Email             string
	DisplayName       string
	AvatarRef         string
	Bio               string
	Role              Role
	Status            Status
	LastLoginAt       *time.Time
	LastLoginIP       string
	LastLoginLocation string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// UserView is the sanitized projection of a User handed to callers.
// It never carries the password hash or the raw login IP.
type UserView struct {
	ID                string     `json:"id"`
	Username          string     `json:"username"`
	DisplayName       string     `json:"display_name,omitempty"`
	Email             string     `json:"email"`
	AvatarRef         string     `json:"avatar_ref,omitempty"`
	Bio               string     `json:"bio,omitempty"`
	Role              string     `json:"role"`
	Status            string     `json:"status"`
	LastLoginAt       *time.Time `json:"last_login_at,omitempty"`
	LastLoginLocation string     `json:"last_login_location,omitempty"`
}

// View returns the sanitized projection of u.
func (u *User) View() UserView {
	return UserView{
		ID:                u.ID,
		Username:          u.Username,
		DisplayName:       u.DisplayName,
		Email:             u.Email,
		AvatarRef:         u.AvatarRef,
		Bio:               u.Bio,
		Role:              u.Role.String(),
		Status:            u.Status.String(),
		LastLoginAt:       u.LastLoginAt,
		LastLoginLocation: u.LastLoginLocation,
	}
}

// Clone returns a deep copy, so callers can mutate without aliasing storage.
func (u *User) Clone() *User {
	c := *u
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		c.LastLoginAt = &t
	}
	return &c
}
