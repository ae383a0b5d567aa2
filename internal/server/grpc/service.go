package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name. Requests and
// responses are google.protobuf.Struct messages.
const ServiceName = "gatekeeper.v1.AuthService"

const (
	MethodRegister       = "Register"
	MethodLogin          = "Login"
	MethodLogout         = "Logout"
	MethodCurrentUser    = "CurrentUser"
	MethodChangePassword = "ChangePassword"
	MethodUpdateProfile  = "UpdateProfile"
	MethodSetUserStatus  = "SetUserStatus"
)

// FullMethod returns the /service/method path used in interceptors and
// client invocations.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// AuthServiceServer is the server API of gatekeeper.v1.AuthService.
type AuthServiceServer interface {
	Register(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Logout(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CurrentUser(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ChangePassword(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateProfile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetUserStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(AuthServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func methodDesc(name string, call unaryMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(AuthServiceServer), ctx, req.(*structpb.Struct))
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// AuthServiceDesc describes gatekeeper.v1.AuthService for grpc.Server.RegisterService.
var AuthServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		methodDesc(MethodRegister, AuthServiceServer.Register),
		methodDesc(MethodLogin, AuthServiceServer.Login),
		methodDesc(MethodLogout, AuthServiceServer.Logout),
		methodDesc(MethodCurrentUser, AuthServiceServer.CurrentUser),
		methodDesc(MethodChangePassword, AuthServiceServer.ChangePassword),
		methodDesc(MethodUpdateProfile, AuthServiceServer.UpdateProfile),
		methodDesc(MethodSetUserStatus, AuthServiceServer.SetUserStatus),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gatekeeper/v1/auth.proto",
}
