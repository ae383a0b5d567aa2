package client

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/logging"
	"github.com/dmitrijs2005/gatekeeper/internal/server/credentials"
	"github.com/dmitrijs2005/gatekeeper/internal/server/guard"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/users"
	"github.com/dmitrijs2005/gatekeeper/internal/server/services"
	"github.com/dmitrijs2005/gatekeeper/internal/server/sessions"
	"github.com/dmitrijs2005/gatekeeper/internal/server/sessionstore"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	gs "github.com/dmitrijs2005/gatekeeper/internal/server/grpc"
)

func newTestClient(t *testing.T) *GRPCClient {
	t.Helper()

	repo := users.NewMemoryRepository()
	mgr := sessions.NewManager(sessionstore.NewMemory(time.Now), sessions.Options{Secret: []byte("k")})
	svc := services.NewUserService(services.UserServiceDeps{
		Users:    repo,
		Sessions: mgr,
		Codec:    credentials.NewCodecWithParams("p", credentials.Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32}),
	})
	srv, err := gs.NewgGRPCServer("bufnet", logging.Nop{}, svc, guard.New(mgr, repo, nil, nil))
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()

	c, err := NewGatekeeperClient("passthrough:///bufnet", grpc.WithContextDialer(
		func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }))
	require.NoError(t, err)

	t.Cleanup(func() {
		c.Close()
		cancel()
		<-done
	})
	return c
}

func TestClient_SessionLifecycle(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	u, err := c.Register(ctx, "alice", "pw123", "pw123", "alice@x.com")
	require.NoError(t, err)
	if u.Username != "alice" || u.Role != "user" {
		t.Fatalf("unexpected user: %+v", u)
	}

	if _, err := c.CurrentUser(ctx); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized before login, got %v", err)
	}

	_, err = c.Login(ctx, "alice", "pw123")
	require.NoError(t, err)
	if c.Session() == "" {
		t.Fatal("session handle not captured")
	}

	me, err := c.CurrentUser(ctx)
	require.NoError(t, err)
	if me.ID != u.ID {
		t.Fatalf("current user %q, want %q", me.ID, u.ID)
	}

	me, err = c.UpdateProfile(ctx, Profile{Bio: "hello"})
	require.NoError(t, err)
	if me.Bio != "hello" || me.Email != "alice@x.com" {
		t.Fatalf("unexpected profile: %+v", me)
	}

	require.NoError(t, c.ChangePassword(ctx, "pw123", "pw1234", "pw1234"))

	require.NoError(t, c.Logout(ctx))
	if c.Session() != "" {
		t.Fatal("session handle kept after logout")
	}
	if _, err := c.CurrentUser(ctx); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized after logout, got %v", err)
	}
}

func TestClient_RequestErrorsCarryReason(t *testing.T) {
	c := newTestClient(t)

	_, err := c.Login(context.Background(), "nobody", "pw123")
	var re *RequestError
	if !errors.As(err, &re) {
		t.Fatalf("want *RequestError, got %T %v", err, err)
	}
	if re.Reason != services.MsgInvalidCredentials {
		t.Fatalf("reason = %q", re.Reason)
	}
}

func TestClient_SetUserStatusForbiddenForRegularUser(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	u, err := c.Register(ctx, "alice", "pw123", "pw123", "alice@x.com")
	require.NoError(t, err)
	_, err = c.Login(ctx, "alice", "pw123")
	require.NoError(t, err)

	if _, err := c.SetUserStatus(ctx, u.ID, "frozen"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("want ErrForbidden, got %v", err)
	}
}

func TestWithSession_ReplacesHandle(t *testing.T) {
	ctx := metadata.AppendToOutgoingContext(context.Background(), common.SessionHeaderName, "old", "x-other", "v")

	md, _ := metadata.FromOutgoingContext(withSession(ctx, "new"))
	if got := md.Get(common.SessionHeaderName); len(got) != 1 || got[0] != "new" {
		t.Fatalf("session header = %v", got)
	}
	if got := md.Get("x-other"); len(got) != 1 {
		t.Fatalf("other metadata lost: %v", md)
	}

	md, _ = metadata.FromOutgoingContext(withSession(ctx, ""))
	if got := md.Get(common.SessionHeaderName); len(got) != 0 {
		t.Fatalf("empty handle must not be sent: %v", got)
	}
}

func TestMapError(t *testing.T) {
	c := &GRPCClient{}
	tests := []struct {
		code codes.Code
		want error
	}{
		{codes.Unauthenticated, ErrUnauthorized},
		{codes.PermissionDenied, ErrForbidden},
		{codes.NotFound, ErrNotFound},
		{codes.Unavailable, ErrUnavailable},
		{codes.DeadlineExceeded, ErrUnavailable},
	}
	for _, tt := range tests {
		if got := c.mapError(status.Error(tt.code, "x")); !errors.Is(got, tt.want) {
			t.Fatalf("%v: got %v, want %v", tt.code, got, tt.want)
		}
	}
	if got := c.mapError(status.Error(codes.Internal, "internal error")); errors.Is(got, ErrUnavailable) || got == nil {
		t.Fatalf("internal mapped to %v", got)
	}
	if c.mapError(nil) != nil {
		t.Fatal("nil must map to nil")
	}
}
