package grpc

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/cuesync/internal/common"
	"github.com/dmitrijs2005/cuesync/internal/rpc"
	"github.com/dmitrijs2005/cuesync/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// publicMethods can be called without an access token.
var publicMethods = map[string]bool{
	rpc.FullMethod(rpc.MethodPing):     true,
	rpc.FullMethod(rpc.MethodRegister): true,
	rpc.FullMethod(rpc.MethodGetSalt):  true,
	rpc.FullMethod(rpc.MethodLogin):    true,
}

func metadataValue(ctx context.Context, key string) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(key); len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

// originator identifies the calling client so that its own changes are not
// echoed back to it over the push channel.
func originator(ctx context.Context) string {
	return metadataValue(ctx, common.ClientIDHeaderName)
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if publicMethods[info.FullMethod] {
		return handler(ctx, req)
	}

	accessToken := metadataValue(ctx, common.AccessTokenHeaderName)
	if accessToken == "" {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	id, err := s.users.Authenticate(accessToken)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return nil, status.Error(codes.Unauthenticated, "token expired")
		}
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}

	return handler(auth.WithIdentity(ctx, id), req)
}

func (s *GRPCServer) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	code := status.Code(err)
	if code == codes.Internal || code == codes.Unknown {
		s.logger.Error(ctx, "Call failed", "method", info.FullMethod, "error", err)
	} else {
		s.logger.Debug(ctx, "Call", "method", info.FullMethod, "code", code.String(), "duration", time.Since(start))
	}
	return resp, err
}
