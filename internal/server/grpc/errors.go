package grpc

import (
	"errors"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatus maps service errors to gRPC statuses. Only ParamsError reasons
// reach the caller verbatim.
func toStatus(err error) error {
	var pe *common.ParamsError
	switch {
	case errors.As(err, &pe):
		return status.Error(codes.InvalidArgument, pe.Reason)
	case errors.Is(err, common.ErrorNotAuthenticated):
		return status.Error(codes.Unauthenticated, "not authenticated")
	case errors.Is(err, common.ErrorNoAuthorization):
		return status.Error(codes.PermissionDenied, "no authorization")
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, "not found")
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
