package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	gs "github.com/dmitrijs2005/gatekeeper/internal/server/grpc"
)

const callTimeout = 12 * time.Second

type GRPCClient struct {
	endpointURL string
	dialOpts    []grpc.DialOption
	conn        *grpc.ClientConn

	mu      sync.RWMutex
	session string
}

func withSession(ctx context.Context, handle string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.SessionHeaderName)
	if handle != "" {
		md.Set(common.SessionHeaderName, handle)
	}

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) sessionInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	return invoker(withSession(ctx, s.Session()), method, req, reply, cc, opts...)
}

// NewGatekeeperClient connects to endpointURL. Extra dial options are
// appended to the defaults (plaintext transport, session interceptor).
func NewGatekeeperClient(endpointURL string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, dialOpts: opts}
	err := c.InitGRPCClient()
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient() error {
	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.sessionInterceptor),
	}, s.dialOpts...)

	conn, err := grpc.NewClient(s.endpointURL, opts...)
	if err != nil {
		return err
	}
	s.conn = conn
	return nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

func (s *GRPCClient) Session() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// SetSession installs a handle obtained earlier, e.g. restored from disk.
func (s *GRPCClient) SetSession(handle string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = handle
}

func (s *GRPCClient) Register(ctx context.Context, username, password, confirm, email string) (*models.UserView, error) {
	resp, err := s.call(ctx, gs.MethodRegister, map[string]any{
		"username":         username,
		"password":         password,
		"confirm_password": confirm,
		"email":            email,
	}, nil)
	if err != nil {
		return nil, err
	}
	return userView(resp)
}

func (s *GRPCClient) Login(ctx context.Context, username, password string) (*models.UserView, error) {
	var header metadata.MD
	resp, err := s.call(ctx, gs.MethodLogin, map[string]any{
		"username": username,
		"password": password,
	}, &header)
	if err != nil {
		return nil, err
	}

	handle := resp.GetFields()["session_id"].GetStringValue()
	if values := header.Get(common.SessionHeaderName); len(values) > 0 {
		handle = values[0]
	}
	s.SetSession(handle)

	return userView(resp)
}

// Logout ends the server session and forgets the local handle.
func (s *GRPCClient) Logout(ctx context.Context) error {
	_, err := s.call(ctx, gs.MethodLogout, nil, nil)
	s.SetSession("")
	return err
}

func (s *GRPCClient) CurrentUser(ctx context.Context) (*models.UserView, error) {
	resp, err := s.call(ctx, gs.MethodCurrentUser, nil, nil)
	if err != nil {
		return nil, err
	}
	return userView(resp)
}

func (s *GRPCClient) ChangePassword(ctx context.Context, oldPassword, newPassword, confirm string) error {
	_, err := s.call(ctx, gs.MethodChangePassword, map[string]any{
		"old_password":         oldPassword,
		"new_password":         newPassword,
		"confirm_new_password": confirm,
	}, nil)
	return err
}

func (s *GRPCClient) UpdateProfile(ctx context.Context, patch Profile) (*models.UserView, error) {
	body := map[string]any{}
	for k, v := range map[string]string{
		"display_name": patch.DisplayName,
		"avatar_ref":   patch.AvatarRef,
		"bio":          patch.Bio,
		"email":        patch.Email,
	} {
		if v != "" {
			body[k] = v
		}
	}

	resp, err := s.call(ctx, gs.MethodUpdateProfile, body, nil)
	if err != nil {
		return nil, err
	}
	return userView(resp)
}

func (s *GRPCClient) SetUserStatus(ctx context.Context, userID, status string) (*models.UserView, error) {
	resp, err := s.call(ctx, gs.MethodSetUserStatus, map[string]any{
		"user_id": userID,
		"status":  status,
	}, nil)
	if err != nil {
		return nil, err
	}
	return userView(resp)
}

func (s *GRPCClient) call(ctx context.Context, method string, body map[string]any, header *metadata.MD) (*structpb.Struct, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	req, err := structpb.NewStruct(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	var opts []grpc.CallOption
	if header != nil {
		opts = append(opts, grpc.Header(header))
	}

	resp := &structpb.Struct{}
	if err := s.conn.Invoke(ctx, gs.FullMethod(method), req, resp, opts...); err != nil {
		return nil, s.mapError(err)
	}
	return resp, nil
}

func userView(resp *structpb.Struct) (*models.UserView, error) {
	u := resp.GetFields()["user"].GetStructValue()
	if u == nil {
		return nil, fmt.Errorf("response carries no user")
	}
	raw, err := u.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var view models.UserView
	if err := json.Unmarshal(raw, &view); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &view, nil
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.InvalidArgument:
		return &RequestError{Reason: st.Message()}
	case codes.Unauthenticated:
		return ErrUnauthorized
	case codes.PermissionDenied:
		return ErrForbidden
	case codes.NotFound:
		return ErrNotFound
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
