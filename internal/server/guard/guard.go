// Package guard enforces access policies in front of protected operations.
// It is the only place where a caller's role is inspected.
package guard

import (
	"context"
	"errors"
	"slices"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/logging"
	"github.com/dmitrijs2005/gatekeeper/internal/server/metrics"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
)

// Policy describes who may invoke an operation. RequiredRoles is only
// consulted when MustBeLoggedIn is set; otherwise the operation runs directly.
type Policy struct {
	MustBeLoggedIn bool
	RequiredRoles  []models.Role
}

func Public() Policy { return Policy{} }

func LoggedIn() Policy { return Policy{MustBeLoggedIn: true} }

// RequireRoles admits logged-in callers holding any of roles.
func RequireRoles(roles ...models.Role) Policy {
	return Policy{MustBeLoggedIn: true, RequiredRoles: roles}
}

func (p Policy) public() bool {
	return !p.MustBeLoggedIn
}

type SessionResolver interface {
	Resolve(ctx context.Context, handle string) (string, error)
}

type UserFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type Recorder interface {
	ObserveGuardDecision(outcome string)
}

type Guard struct {
	sessions SessionResolver
	users    UserFinder
	recorder Recorder
	logger   logging.Logger
}

// New builds a Guard. recorder and logger may be nil.
func New(sessions SessionResolver, users UserFinder, recorder Recorder, logger logging.Logger) *Guard {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Guard{
		sessions: sessions,
		users:    users,
		recorder: recorder,
		logger:   logger.With("module", "guard"),
	}
}

type nopRecorder struct{}

func (nopRecorder) ObserveGuardDecision(string) {}

// Check decides whether the caller in ctx satisfies p. On success the
// returned context carries the resolved caller (for non-public policies).
func (g *Guard) Check(ctx context.Context, p Policy) (context.Context, error) {
	if p.public() {
		return ctx, nil
	}

	caller, err := g.authenticate(ctx)
	if err != nil {
		g.recorder.ObserveGuardDecision(metrics.OutcomeUnauthenticated)
		return ctx, common.ErrorNotAuthenticated
	}

	if len(p.RequiredRoles) > 0 {
		role, err := models.RoleFromCode(int(caller.Role))
		if err != nil || !slices.Contains(p.RequiredRoles, role) {
			g.logger.Info(ctx, "access denied", "user_id", caller.ID, "role", caller.Role.String())
			g.recorder.ObserveGuardDecision(metrics.OutcomeForbidden)
			return ctx, common.ErrorNoAuthorization
		}
	}

	g.recorder.ObserveGuardDecision(metrics.OutcomeAllowed)
	return WithCaller(ctx, caller), nil
}

func (g *Guard) authenticate(ctx context.Context) (*models.User, error) {
	handle := SessionHandleFromContext(ctx)
	if handle == "" {
		return nil, common.ErrorNotAuthenticated
	}

	userID, err := g.sessions.Resolve(ctx, handle)
	if err != nil {
		return nil, err
	}

	u, err := g.users.FindByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			g.logger.Error(ctx, "load caller", "error", err)
		}
		return nil, err
	}
	return u, nil
}

// Protect wraps op so that it only runs when the guard admits the caller.
// The result of op is returned unchanged.
func Protect[Req, Resp any](g *Guard, p Policy, op func(context.Context, Req) (Resp, error)) func(context.Context, Req) (Resp, error) {
	return func(ctx context.Context, req Req) (Resp, error) {
		ctx, err := g.Check(ctx, p)
		if err != nil {
			var zero Resp
			return zero, err
		}
		return op(ctx, req)
	}
}
