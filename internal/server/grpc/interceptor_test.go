package grpc

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/cuesync/internal/common"
	"github.com/dmitrijs2005/cuesync/internal/rpc"
	"github.com/dmitrijs2005/cuesync/internal/server/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func interceptorServer() *GRPCServer {
	return newTestServer(&fakeUsers{tokens: map[string]auth.Identity{
		"good": {UserID: "u-1", UserName: "ann"},
	}}, newFakeRecords())
}

func TestInterceptor_PublicMethodsNeedNoToken(t *testing.T) {
	s := interceptorServer()
	for _, m := range []string{rpc.MethodPing, rpc.MethodRegister, rpc.MethodGetSalt, rpc.MethodLogin} {
		called := false
		h := func(ctx context.Context, req any) (any, error) {
			called = true
			return "ok", nil
		}
		resp, err := s.accessTokenInterceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: rpc.FullMethod(m)}, h)
		require.NoError(t, err, m)
		assert.True(t, called, m)
		assert.Equal(t, "ok", resp)
	}
}

func TestInterceptor_MissingToken(t *testing.T) {
	s := interceptorServer()
	h := func(ctx context.Context, req any) (any, error) {
		t.Fatal("handler should not be called when token missing")
		return nil, nil
	}
	_, err := s.accessTokenInterceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: rpc.FullMethod(rpc.MethodUpdate)}, h)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestInterceptor_InvalidToken(t *testing.T) {
	s := interceptorServer()
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(common.AccessTokenHeaderName, "bad"))
	h := func(ctx context.Context, req any) (any, error) {
		t.Fatal("handler should not be called with a bad token")
		return nil, nil
	}
	_, err := s.accessTokenInterceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: rpc.FullMethod(rpc.MethodList)}, h)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestInterceptor_ValidTokenStoresIdentity(t *testing.T) {
	s := interceptorServer()
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(common.AccessTokenHeaderName, "good"))

	var got auth.Identity
	h := func(ctx context.Context, req any) (any, error) {
		var ok bool
		got, ok = auth.IdentityFrom(ctx)
		require.True(t, ok)
		return nil, nil
	}
	_, err := s.accessTokenInterceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: rpc.FullMethod(rpc.MethodGet)}, h)
	require.NoError(t, err)
	assert.Equal(t, "ann", got.UserName)
}

func TestOriginator_FromMetadata(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(common.ClientIDHeaderName, "client-7"))
	assert.Equal(t, "client-7", originator(ctx))
	assert.Equal(t, "", originator(context.Background()))
}
