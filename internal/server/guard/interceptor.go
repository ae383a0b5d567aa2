package guard

import (
	"context"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// UnaryServerInterceptor applies policies keyed by full method name. Every
// request gets its session handle from the session_id metadata attached to
// the context. Methods missing from policies require a logged-in caller.
func (g *Guard) UnaryServerInterceptor(policies map[string]Policy) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if values := md.Get(common.SessionHeaderName); len(values) > 0 {
				ctx = WithSessionHandle(ctx, values[0])
			}
		}

		p, ok := policies[info.FullMethod]
		if !ok {
			p = LoggedIn()
		}

		ctx, err := g.Check(ctx, p)
		if err != nil {
			switch err {
			case common.ErrorNoAuthorization:
				return nil, status.Error(codes.PermissionDenied, "no authorization")
			default:
				return nil, status.Error(codes.Unauthenticated, "not authenticated")
			}
		}
		return handler(ctx, req)
	}
}
