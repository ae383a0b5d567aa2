// Package client is a Go client for the Gatekeeper AuthService.
//
// GRPCClient keeps the session handle returned by Login and attaches it to
// every later call through a unary interceptor. gRPC status codes are mapped
// to sentinel errors (ErrUnauthorized, ErrForbidden, ErrUnavailable) or to a
// *RequestError carrying the server's reason for rejected input.
package client
