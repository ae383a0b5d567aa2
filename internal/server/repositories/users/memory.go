package users

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
)

// MemoryRepository is a process-local Repository. Records are copied on the
// way in and out, so callers never share state with the map.
type MemoryRepository struct {
	mu    sync.RWMutex
	users map[string]*models.User
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: make(map[string]*models.User)}
}

func (r *MemoryRepository) FindByUsername(_ context.Context, username string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Username == username {
			return u.Clone(), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *MemoryRepository) FindByUsernameAndPasswordHash(_ context.Context, username, passwordHash string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Username == username && u.PasswordHash == passwordHash {
			return u.Clone(), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *MemoryRepository) FindByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u.Clone(), nil
}

func (r *MemoryRepository) CountByUsername(_ context.Context, username string) (int, error) {
	return r.countWhere(func(u *models.User) bool { return u.Username == username }), nil
}

func (r *MemoryRepository) CountByEmail(_ context.Context, email string) (int, error) {
	return r.countWhere(func(u *models.User) bool { return u.Email == email }), nil
}

func (r *MemoryRepository) CountByEmailExcludingID(_ context.Context, email, id string) (int, error) {
	return r.countWhere(func(u *models.User) bool { return u.Email == email && u.ID != id }), nil
}

func (r *MemoryRepository) Save(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID == user.ID || u.Username == user.Username || u.Email == user.Email {
			return common.ErrorConflict
		}
	}
	r.users[user.ID] = user.Clone()
	return nil
}

func (r *MemoryRepository) UpdateByID(_ context.Context, user *models.User) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.users[user.ID]
	if !ok {
		return false, nil
	}
	for _, u := range r.users {
		if u.ID != user.ID && u.Email == user.Email {
			return false, common.ErrorConflict
		}
	}

	cur.Email = user.Email
	cur.DisplayName = user.DisplayName
	cur.AvatarRef = user.AvatarRef
	cur.Bio = user.Bio
	cur.UpdatedAt = user.UpdatedAt
	return true, nil
}

func (r *MemoryRepository) UpdatePassword(_ context.Context, id, passwordHash string, at time.Time) (bool, error) {
	return r.modify(id, func(u *models.User) {
		u.PasswordHash = passwordHash
		u.UpdatedAt = at
	}), nil
}

func (r *MemoryRepository) UpdateStatus(_ context.Context, id string, status models.Status, at time.Time) (bool, error) {
	return r.modify(id, func(u *models.User) {
		u.Status = status
		u.UpdatedAt = at
	}), nil
}

func (r *MemoryRepository) RecordLogin(_ context.Context, id string, at time.Time, ip, location string) (bool, error) {
	return r.modify(id, func(u *models.User) {
		u.LastLoginAt = &at
		u.LastLoginIP = ip
		u.LastLoginLocation = location
		u.UpdatedAt = at
	}), nil
}

func (r *MemoryRepository) modify(id string, apply func(*models.User)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return false
	}
	apply(u)
	return true
}

func (r *MemoryRepository) countWhere(match func(*models.User) bool) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, u := range r.users {
		if match(u) {
			n++
		}
	}
	return n
}
