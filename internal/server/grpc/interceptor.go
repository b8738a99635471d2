package grpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/server/auth"
)

type ctxKey string

const UserIDKey ctxKey = "userID"

// publicMethods need no access token.
var publicMethods = map[string]bool{
	fullMethod("Ping"): true,
}

func userIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(UserIDKey).(string)
	return id
}

func (s *GRPCServer) authenticate(ctx context.Context, method string) (context.Context, error) {
	if publicMethods[method] {
		return ctx, nil
	}

	var accessToken string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		values := md.Get(common.AccessTokenHeaderName)
		if len(values) > 0 {
			accessToken = values[0]
		}
	}
	if len(accessToken) == 0 {
		return nil, fmt.Errorf("%w: missing token", common.ErrInvalidToken)
	}

	userID, err := auth.GetUserIDFromToken(accessToken, s.jwtSecret)
	if err != nil {
		return nil, err
	}

	return context.WithValue(ctx, UserIDKey, userID), nil
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	ctx, err := s.authenticate(ctx, info.FullMethod)
	if err != nil {
		return nil, err
	}
	return handler(ctx, req)
}

// errorInterceptor counts the call and turns service errors into statuses.
// It must run outside accessTokenInterceptor.
func (s *GRPCServer) errorInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	resp, err := handler(ctx, req)
	s.metrics.Request(info.FullMethod, err)
	if err != nil {
		s.logFailure(ctx, info.FullMethod, err)
		return nil, toStatus(err)
	}
	return resp, nil
}

type authedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *authedStream) Context() context.Context { return w.ctx }

func (s *GRPCServer) streamAccessTokenInterceptor(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	ctx, err := s.authenticate(ss.Context(), info.FullMethod)
	if err != nil {
		return err
	}
	return handler(srv, &authedStream{ServerStream: ss, ctx: ctx})
}

func (s *GRPCServer) streamErrorInterceptor(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	err := handler(srv, ss)
	s.metrics.Request(info.FullMethod, err)
	if err != nil {
		s.logFailure(ss.Context(), info.FullMethod, err)
		return toStatus(err)
	}
	return nil
}

func (s *GRPCServer) logFailure(ctx context.Context, method string, err error) {
	switch common.Kind(err) {
	case "internal", "quota_inconsistent", "blob_missing", "io_failure":
		s.logger.Error(ctx, "request failed", "method", method, "error", err)
	default:
		s.logger.Debug(ctx, "request rejected", "method", method, "error", err)
	}
}
