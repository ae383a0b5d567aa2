package grpc

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/logging"
	"github.com/dmitrijs2005/gatekeeper/internal/server/credentials"
	"github.com/dmitrijs2005/gatekeeper/internal/server/guard"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/users"
	"github.com/dmitrijs2005/gatekeeper/internal/server/services"
	"github.com/dmitrijs2005/gatekeeper/internal/server/sessions"
	"github.com/dmitrijs2005/gatekeeper/internal/server/sessionstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

type testEnv struct {
	conn     *grpc.ClientConn
	repo     *users.MemoryRepository
	codec    *credentials.Codec
	sessions *countingSessions
}

// countingSessions counts the session lookups made by the service itself.
type countingSessions struct {
	services.SessionManager
	resolves atomic.Int32
}

func (c *countingSessions) Resolve(ctx context.Context, handle string) (string, error) {
	c.resolves.Add(1)
	return c.SessionManager.Resolve(ctx, handle)
}

func startTestServer(t *testing.T) *testEnv {
	t.Helper()

	repo := users.NewMemoryRepository()
	codec := credentials.NewCodecWithParams("pepper", credentials.Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32})
	mgr := sessions.NewManager(sessionstore.NewMemory(time.Now), sessions.Options{Secret: []byte("secret")})
	counted := &countingSessions{SessionManager: mgr}
	svc := services.NewUserService(services.UserServiceDeps{Users: repo, Sessions: counted, Codec: codec})
	g := guard.New(mgr, repo, nil, nil)

	srv, err := NewgGRPCServer("bufnet", logging.Nop{}, svc, g)
	require.NoError(t, err)

	lis := bufconn.Listen(1024 * 1024)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		cancel()
		<-done
	})
	return &testEnv{conn: conn, repo: repo, codec: codec, sessions: counted}
}

// call invokes method with body and an optional session handle. It returns
// the response and the response header.
func (e *testEnv) call(t *testing.T, method, handle string, body map[string]any) (*structpb.Struct, metadata.MD, error) {
	t.Helper()

	req, err := structpb.NewStruct(body)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if handle != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, common.SessionHeaderName, handle)
	}

	var header metadata.MD
	resp := &structpb.Struct{}
	err = e.conn.Invoke(ctx, FullMethod(method), req, resp, grpc.Header(&header))
	return resp, header, err
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	resp, header, err := e.call(t, MethodLogin, "", map[string]any{"username": username, "password": password})
	require.NoError(t, err)

	handle := resp.GetFields()["session_id"].GetStringValue()
	require.NotEmpty(t, handle)
	require.Equal(t, []string{handle}, header.Get(common.SessionHeaderName))
	return handle
}

func userField(resp *structpb.Struct, name string) string {
	return resp.GetFields()["user"].GetStructValue().GetFields()[name].GetStringValue()
}

func requireCode(t *testing.T, err error, want codes.Code) {
	t.Helper()
	if status.Code(err) != want {
		t.Fatalf("want %v, got %v (err=%v)", want, status.Code(err), err)
	}
}

func TestE2E_AliceScenario(t *testing.T) {
	env := startTestServer(t)

	resp, _, err := env.call(t, MethodRegister, "", map[string]any{
		"username": "alice", "password": "pw123", "confirm_password": "pw123", "email": "alice@x.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "user", userField(resp, "role"))
	assert.Equal(t, "active", userField(resp, "status"))
	_, hasHash := resp.GetFields()["user"].GetStructValue().GetFields()["password_hash"]
	assert.False(t, hasHash)

	handle := env.login(t, "alice", "pw123")

	_, _, err = env.call(t, MethodLogin, "", map[string]any{"username": "alice", "password": "wrong"})
	requireCode(t, err, codes.InvalidArgument)
	assert.Equal(t, "invalid credentials", status.Convert(err).Message())

	resp, _, err = env.call(t, MethodCurrentUser, handle, nil)
	require.NoError(t, err)
	assert.Equal(t, "alice", userField(resp, "username"))

	_, _, err = env.call(t, MethodChangePassword, handle, map[string]any{
		"old_password": "pw123", "new_password": "pw1234", "confirm_new_password": "pw1234",
	})
	require.NoError(t, err)

	_, _, err = env.call(t, MethodLogin, "", map[string]any{"username": "alice", "password": "pw123"})
	requireCode(t, err, codes.InvalidArgument)
	env.login(t, "alice", "pw1234")

	_, _, err = env.call(t, MethodLogout, handle, nil)
	require.NoError(t, err)
	_, _, err = env.call(t, MethodCurrentUser, handle, nil)
	requireCode(t, err, codes.Unauthenticated)
	_, _, err = env.call(t, MethodLogout, handle, nil)
	require.NoError(t, err, "logout is idempotent")
}

func TestE2E_ProtectedWithoutSession(t *testing.T) {
	env := startTestServer(t)

	for _, m := range []string{MethodCurrentUser, MethodChangePassword, MethodUpdateProfile, MethodSetUserStatus} {
		_, _, err := env.call(t, m, "", nil)
		requireCode(t, err, codes.Unauthenticated)
	}
}

func TestE2E_SetUserStatusRequiresAdmin(t *testing.T) {
	env := startTestServer(t)
	ctx := context.Background()

	_, _, err := env.call(t, MethodRegister, "", map[string]any{
		"username": "alice", "password": "pw123", "confirm_password": "pw123", "email": "alice@x.com",
	})
	require.NoError(t, err)
	alice, err := env.repo.FindByUsername(ctx, "alice")
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, env.repo.Save(ctx, &models.User{
		ID: "admin-1", Username: "admin", Email: "admin@x.com",
		PasswordHash: env.codec.Hash("admin1"),
		Role:         models.RoleAdmin, Status: models.StatusActive,
		CreatedAt: now, UpdatedAt: now,
	}))

	userHandle := env.login(t, "alice", "pw123")
	_, _, err = env.call(t, MethodSetUserStatus, userHandle, map[string]any{"user_id": alice.ID, "status": "frozen"})
	requireCode(t, err, codes.PermissionDenied)

	adminHandle := env.login(t, "admin", "admin1")
	resp, _, err := env.call(t, MethodSetUserStatus, adminHandle, map[string]any{"user_id": alice.ID, "status": "frozen"})
	require.NoError(t, err)
	assert.Equal(t, "frozen", userField(resp, "status"))

	_, _, err = env.call(t, MethodSetUserStatus, adminHandle, map[string]any{"user_id": alice.ID, "status": 3})
	require.NoError(t, err)

	_, _, err = env.call(t, MethodSetUserStatus, adminHandle, map[string]any{"user_id": alice.ID, "status": "melted"})
	requireCode(t, err, codes.InvalidArgument)

	_, _, err = env.call(t, MethodSetUserStatus, adminHandle, map[string]any{"user_id": "nobody", "status": "active"})
	requireCode(t, err, codes.NotFound)
}

func TestE2E_UpdateProfile(t *testing.T) {
	env := startTestServer(t)

	for _, u := range []string{"alice", "bobby"} {
		_, _, err := env.call(t, MethodRegister, "", map[string]any{
			"username": u, "password": "pw123", "confirm_password": "pw123", "email": u + "@x.com",
		})
		require.NoError(t, err)
	}
	handle := env.login(t, "alice", "pw123")

	resp, _, err := env.call(t, MethodUpdateProfile, handle, map[string]any{"display_name": "Alice"})
	require.NoError(t, err)
	assert.Equal(t, "Alice", userField(resp, "display_name"))

	_, _, err = env.call(t, MethodUpdateProfile, handle, map[string]any{"email": "bobby@x.com"})
	requireCode(t, err, codes.InvalidArgument)
	assert.Equal(t, services.MsgEmailInUse, status.Convert(err).Message())
}

func TestE2E_ProtectedCallsReuseGuardCaller(t *testing.T) {
	env := startTestServer(t)

	_, _, err := env.call(t, MethodRegister, "", map[string]any{
		"username": "alice", "password": "pw123", "confirm_password": "pw123", "email": "alice@x.com",
	})
	require.NoError(t, err)
	handle := env.login(t, "alice", "pw123")

	resp, _, err := env.call(t, MethodCurrentUser, handle, nil)
	require.NoError(t, err)
	assert.Equal(t, "alice", userField(resp, "username"))

	_, _, err = env.call(t, MethodUpdateProfile, handle, map[string]any{"bio": "hi"})
	require.NoError(t, err)

	_, _, err = env.call(t, MethodChangePassword, handle, map[string]any{
		"old_password": "pw123", "new_password": "pw456", "confirm_new_password": "pw456",
	})
	require.NoError(t, err)

	assert.Zero(t, env.sessions.resolves.Load(), "the guard resolves the session once per call")
}
