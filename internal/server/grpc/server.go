package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/gatekeeper/internal/logging"
	"github.com/dmitrijs2005/gatekeeper/internal/server/guard"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/dmitrijs2005/gatekeeper/internal/server/services"
	"google.golang.org/grpc"
)

type userService interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.User, error)
	Login(ctx context.Context, in services.LoginInput) (*services.LoginResult, error)
	Logout(ctx context.Context, handle string) error
	CurrentUser(ctx context.Context, handle string) (*models.User, error)
	ChangePasswordFor(ctx context.Context, u *models.User, in services.ChangePasswordInput) error
	UpdateProfileFor(ctx context.Context, u *models.User, patch services.ProfilePatch) (*models.User, error)
	SetUserStatus(ctx context.Context, userID string, status models.Status) (*models.User, error)
}

// Policies is the access table of AuthService. Methods not listed here are
// treated as requiring a logged-in caller.
func Policies() map[string]guard.Policy {
	return map[string]guard.Policy{
		FullMethod(MethodRegister):       guard.Public(),
		FullMethod(MethodLogin):          guard.Public(),
		FullMethod(MethodLogout):         guard.Public(),
		FullMethod(MethodCurrentUser):    guard.LoggedIn(),
		FullMethod(MethodChangePassword): guard.LoggedIn(),
		FullMethod(MethodUpdateProfile):  guard.LoggedIn(),
		FullMethod(MethodSetUserStatus):  guard.RequireRoles(models.RoleAdmin, models.RoleSystemAdmin),
	}
}

type GRPCServer struct {
	address string
	users   userService
	guard   *guard.Guard
	logger  logging.Logger
}

func NewgGRPCServer(a string, l logging.Logger, us userService, g *guard.Guard) (*GRPCServer, error) {
	return &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		users:   us,
		guard:   g,
	}, nil
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.guard.UnaryServerInterceptor(Policies())))
	srv.RegisterService(&AuthServiceDesc, s)
	return srv
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "Starting gRPC server", "address", s.address)
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is done, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
