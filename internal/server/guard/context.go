package guard

import (
	"context"

	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
)

type ctxKey int

const (
	sessionHandleKey ctxKey = iota
	callerKey
)

// WithSessionHandle attaches the caller's session handle, as read by the
// transport, to ctx.
func WithSessionHandle(ctx context.Context, handle string) context.Context {
	return context.WithValue(ctx, sessionHandleKey, handle)
}

func SessionHandleFromContext(ctx context.Context) string {
	h, _ := ctx.Value(sessionHandleKey).(string)
	return h
}

func WithCaller(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, callerKey, u)
}

// CallerFromContext returns the user admitted by the guard, if any.
func CallerFromContext(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(callerKey).(*models.User)
	return u, ok && u != nil
}
