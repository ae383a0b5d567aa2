// Package sessions issues, resolves and invalidates login sessions on top
// of a sessionstore.Store.
package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/logging"
	"github.com/dmitrijs2005/gatekeeper/internal/server/sessionstore"
	"github.com/dmitrijs2005/gatekeeper/internal/timex"
)

// DefaultTTL is the session lifetime when Options.TTL is zero.
const DefaultTTL = 1800 * time.Second

// record is what the store holds per handle. Only the identity key is kept;
// the user is re-read on every resolve so role and status changes apply at once.
type record struct {
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Options struct {
	TTL     time.Duration
	Sliding bool
	Secret  []byte
	Clock   timex.Clock
	Logger  logging.Logger
}

// Manager owns the session lifecycle.
type Manager struct {
	store   sessionstore.Store
	handles handles
	ttl     time.Duration
	sliding bool
	now     timex.Clock
	logger  logging.Logger
}

func NewManager(store sessionstore.Store, opts Options) *Manager {
	m := &Manager{
		store:   store,
		handles: handles{secret: opts.Secret},
		ttl:     opts.TTL,
		sliding: opts.Sliding,
		now:     opts.Clock,
		logger:  opts.Logger,
	}
	if m.ttl <= 0 {
		m.ttl = DefaultTTL
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.logger == nil {
		m.logger = logging.Nop{}
	}
	m.logger = m.logger.With("module", "sessions")
	return m
}

// Create starts a session for userID and returns its handle.
func (m *Manager) Create(ctx context.Context, userID string) (string, error) {
	handle, err := m.handles.mint()
	if err != nil {
		return "", fmt.Errorf("session handle: %w", err)
	}
	if err := m.put(ctx, handle, userID); err != nil {
		return "", err
	}
	return handle, nil
}

// Resolve returns the user bound to handle. Every failure, including store
// outages, is reported as common.ErrorNotAuthenticated.
func (m *Manager) Resolve(ctx context.Context, handle string) (string, error) {
	if handle == "" || !m.handles.check(handle) {
		return "", common.ErrorNotAuthenticated
	}

	raw, err := m.store.Get(ctx, handle)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			m.logger.Error(ctx, "session lookup failed", "error", err)
		}
		return "", common.ErrorNotAuthenticated
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil || rec.UserID == "" {
		m.logger.Warn(ctx, "malformed session record")
		return "", common.ErrorNotAuthenticated
	}
	if !m.now().Before(rec.ExpiresAt) {
		return "", common.ErrorNotAuthenticated
	}

	if m.sliding {
		if err := m.put(ctx, handle, rec.UserID); err != nil {
			m.logger.Warn(ctx, "session refresh failed", "error", err)
		}
	}
	return rec.UserID, nil
}

// Invalidate ends the session. Empty, forged and unknown handles are no-ops.
func (m *Manager) Invalidate(ctx context.Context, handle string) error {
	if handle == "" || !m.handles.check(handle) {
		return nil
	}
	if err := m.store.Delete(ctx, handle); err != nil {
		return fmt.Errorf("session delete: %w", err)
	}
	return nil
}

func (m *Manager) put(ctx context.Context, handle, userID string) error {
	raw, err := json.Marshal(record{UserID: userID, ExpiresAt: m.now().Add(m.ttl)})
	if err != nil {
		return err
	}
	if err := m.store.Put(ctx, handle, raw, m.ttl); err != nil {
		return fmt.Errorf("session store: %w", err)
	}
	return nil
}
