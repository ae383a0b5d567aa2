package grpc

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/server/guard"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/dmitrijs2005/gatekeeper/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/protobuf/types/known/structpb"
)

func (s *GRPCServer) Register(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	u, err := s.users.Register(ctx, services.RegisterInput{
		Username:        field(req, "username"),
		Password:        field(req, "password"),
		ConfirmPassword: field(req, "confirm_password"),
		Email:           field(req, "email"),
	})
	if err != nil {
		return nil, s.fail(ctx, MethodRegister, err)
	}
	return s.userResponse(ctx, MethodRegister, u, nil)
}

func (s *GRPCServer) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	res, err := s.users.Login(ctx, services.LoginInput{
		Username: field(req, "username"),
		Password: field(req, "password"),
		Meta:     services.RequestMeta{Headers: metadataHeaders(md), RemoteAddr: peerAddr(ctx)},
	})
	if err != nil {
		return nil, s.fail(ctx, MethodLogin, err)
	}

	if err := grpc.SetHeader(ctx, metadata.Pairs(common.SessionHeaderName, res.SessionHandle)); err != nil {
		s.logger.Warn(ctx, "set session header", "error", err)
	}
	return s.userResponse(ctx, MethodLogin, res.User, map[string]any{"session_id": res.SessionHandle})
}

func (s *GRPCServer) Logout(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	_ = s.users.Logout(ctx, guard.SessionHandleFromContext(ctx))
	return okResponse(), nil
}

func (s *GRPCServer) CurrentUser(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	u, err := s.caller(ctx)
	if err != nil {
		return nil, s.fail(ctx, MethodCurrentUser, err)
	}
	return s.userResponse(ctx, MethodCurrentUser, u, nil)
}

func (s *GRPCServer) ChangePassword(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	u, err := s.caller(ctx)
	if err != nil {
		return nil, s.fail(ctx, MethodChangePassword, err)
	}
	err = s.users.ChangePasswordFor(ctx, u, services.ChangePasswordInput{
		OldPassword:        field(req, "old_password"),
		NewPassword:        field(req, "new_password"),
		ConfirmNewPassword: field(req, "confirm_new_password"),
	})
	if err != nil {
		return nil, s.fail(ctx, MethodChangePassword, err)
	}
	return okResponse(), nil
}

func (s *GRPCServer) UpdateProfile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	u, err := s.caller(ctx)
	if err != nil {
		return nil, s.fail(ctx, MethodUpdateProfile, err)
	}
	u, err = s.users.UpdateProfileFor(ctx, u, services.ProfilePatch{
		DisplayName: field(req, "display_name"),
		AvatarRef:   field(req, "avatar_ref"),
		Bio:         field(req, "bio"),
		Email:       field(req, "email"),
	})
	if err != nil {
		return nil, s.fail(ctx, MethodUpdateProfile, err)
	}
	return s.userResponse(ctx, MethodUpdateProfile, u, nil)
}

// SetUserStatus accepts the status either as a name ("frozen") or as its
// numeric code.
func (s *GRPCServer) SetUserStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	st, err := statusField(req)
	if err != nil {
		return nil, s.fail(ctx, MethodSetUserStatus, common.NewParamsError(services.MsgUnknownStatus))
	}

	u, err := s.users.SetUserStatus(ctx, field(req, "user_id"), st)
	if err != nil {
		return nil, s.fail(ctx, MethodSetUserStatus, err)
	}

	if caller, ok := guard.CallerFromContext(ctx); ok {
		s.logger.Info(ctx, "status changed by admin", "admin_id", caller.ID, "user_id", u.ID)
	}
	return s.userResponse(ctx, MethodSetUserStatus, u, nil)
}

// --- helpers ---

// caller returns the user the guard resolved for this request. Without one
// it resolves the session itself.
func (s *GRPCServer) caller(ctx context.Context) (*models.User, error) {
	if u, ok := guard.CallerFromContext(ctx); ok {
		return u, nil
	}
	return s.users.CurrentUser(ctx, guard.SessionHandleFromContext(ctx))
}

func (s *GRPCServer) fail(ctx context.Context, method string, err error) error {
	st := toStatus(err)
	s.logger.Info(ctx, "request failed", "method", method, "error", err)
	return st
}

// userResponse renders the sanitized view of u plus any extra top-level keys.
func (s *GRPCServer) userResponse(ctx context.Context, method string, u *models.User, extra map[string]any) (*structpb.Struct, error) {
	raw, err := json.Marshal(u.View())
	if err != nil {
		return nil, s.fail(ctx, method, err)
	}
	view := &structpb.Struct{}
	if err := view.UnmarshalJSON(raw); err != nil {
		return nil, s.fail(ctx, method, err)
	}

	out := &structpb.Struct{Fields: map[string]*structpb.Value{
		"user": structpb.NewStructValue(view),
	}}
	for k, v := range extra {
		val, err := structpb.NewValue(v)
		if err != nil {
			return nil, s.fail(ctx, method, err)
		}
		out.Fields[k] = val
	}
	return out, nil
}

func okResponse() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{"ok": structpb.NewBoolValue(true)}}
}

func field(req *structpb.Struct, name string) string {
	if v, ok := req.GetFields()[name]; ok {
		return v.GetStringValue()
	}
	return ""
}

func statusField(req *structpb.Struct) (models.Status, error) {
	v, ok := req.GetFields()["status"]
	if !ok {
		return 0, models.ErrUnknownStatus
	}
	if _, isNum := v.GetKind().(*structpb.Value_NumberValue); isNum {
		n := v.GetNumberValue()
		if n != float64(int(n)) {
			return 0, models.ErrUnknownStatus
		}
		return models.StatusFromCode(int(n))
	}
	return models.StatusFromName(strings.TrimSpace(v.GetStringValue()))
}

// mdHeaders exposes incoming metadata as request headers for enrichment.
type mdHeaders metadata.MD

func metadataHeaders(md metadata.MD) mdHeaders {
	return mdHeaders(md)
}

func (h mdHeaders) Get(name string) string {
	if values := metadata.MD(h).Get(name); len(values) > 0 {
		return values[0]
	}
	return ""
}

func peerAddr(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return ""
}
