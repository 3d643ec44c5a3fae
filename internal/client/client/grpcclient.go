package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/cuesync/internal/common"
	"github.com/dmitrijs2005/cuesync/internal/merge"
	"github.com/dmitrijs2005/cuesync/internal/models"
	"github.com/dmitrijs2005/cuesync/internal/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

var _ Client = (*GRPCClient)(nil)

type GRPCClient struct {
	endpointURL string
	clientID    string
	conn        *grpc.ClientConn
	client      *rpc.CueServiceClient

	mu          sync.RWMutex
	accessToken string
	userName    string
	verifier    []byte
}

func withMetadata(ctx context.Context, token, clientID string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)
	if clientID != "" {
		md.Set(common.ClientIDHeaderName, clientID)
	}

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) credentials() (token, userName string, verifier []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken, s.userName, s.verifier
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {

	token, userName, verifier := s.credentials()

	err := invoker(withMetadata(ctx, token, s.clientID), method, req, reply, cc, opts...)
	if err == nil {
		return nil
	}

	if status.Code(err) != codes.Unauthenticated {
		return err
	}
	if userName == "" || method == rpc.FullMethod(rpc.MethodLogin) {
		return err
	}

	// token expired or never issued, log in with the cached verifier
	if lerr := s.Login(ctx, userName, verifier); lerr != nil {
		return err
	}

	token, _, _ = s.credentials()
	return invoker(withMetadata(ctx, token, s.clientID), method, req, reply, cc, opts...)
}

// NewGRPCClient prepares a connection to endpointURL. The connection is
// established lazily on the first call. clientID is sent with every call
// so push notifications can name this client as originator.
func NewGRPCClient(endpointURL, clientID string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, clientID: clientID}

	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(endpointURL, opts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	c.client = rpc.NewCueServiceClient(conn)
	return c, nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

// AccessToken returns the current access token, empty before login.
func (s *GRPCClient) AccessToken() string {
	token, _, _ := s.credentials()
	return token
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	if _, err := s.client.Ping(ctx, &rpc.PingRequest{}); err != nil {
		return mapError(err)
	}
	return nil
}

func (s *GRPCClient) Register(ctx context.Context, userName string, salt []byte, verifier []byte) error {
	req := &rpc.RegisterRequest{UserName: userName, Salt: salt, Verifier: verifier}
	if _, err := s.client.Register(ctx, req); err != nil {
		return mapError(err)
	}
	return nil
}

func (s *GRPCClient) GetSalt(ctx context.Context, userName string) ([]byte, error) {
	resp, err := s.client.GetSalt(ctx, &rpc.GetSaltRequest{UserName: userName})
	if err != nil {
		return nil, mapError(err)
	}
	return resp.Salt, nil
}

func (s *GRPCClient) Login(ctx context.Context, userName string, verifier []byte) error {
	resp, err := s.client.Login(ctx, &rpc.LoginRequest{UserName: userName, Verifier: verifier})
	if err != nil {
		return mapError(err)
	}

	s.mu.Lock()
	s.accessToken = resp.AccessToken
	s.userName = userName
	s.verifier = append([]byte(nil), verifier...)
	s.mu.Unlock()

	return nil
}

// SetCredentials caches credentials verified offline. The next call
// rejected as unauthenticated logs in with them.
func (s *GRPCClient) SetCredentials(userName string, verifier []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userName = userName
	s.verifier = append([]byte(nil), verifier...)
}

func (s *GRPCClient) Get(ctx context.Context, kind models.Kind, id string) (models.Record, error) {
	resp, err := s.client.Get(ctx, &rpc.GetRequest{Kind: kind, ID: id})
	if err != nil {
		return nil, mapError(err)
	}
	return resp.Record.Unwrap()
}

func (s *GRPCClient) List(ctx context.Context, kind models.Kind, since *time.Time, includeDeleted bool) ([]models.Record, error) {
	resp, err := s.client.List(ctx, &rpc.ListRequest{Kind: kind, Since: since, IncludeDeleted: includeDeleted})
	if err != nil {
		return nil, mapError(err)
	}

	out := make([]models.Record, 0, len(resp.Records))
	for _, w := range resp.Records {
		rec, err := w.Unwrap()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *GRPCClient) Create(ctx context.Context, rec models.Record) (models.Record, error) {
	w, err := rpc.WrapRecord(rec)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Create(ctx, &rpc.CreateRequest{Record: w})
	if err != nil {
		return nil, mapError(err)
	}
	return resp.Record.Unwrap()
}

func (s *GRPCClient) Update(ctx context.Context, kind models.Kind, id string, req merge.Request) (*merge.Outcome, error) {
	resp, err := s.client.Update(ctx, &rpc.UpdateRequest{Kind: kind, ID: id, Request: req})
	if err != nil {
		return nil, mapError(err)
	}

	rec, err := resp.Record.Unwrap()
	if err != nil {
		return nil, err
	}
	return &merge.Outcome{
		Status:            resp.Status,
		Record:            rec,
		MergedFields:      resp.MergedFields,
		ConflictingFields: resp.ConflictingFields,
	}, nil
}

func (s *GRPCClient) Delete(ctx context.Context, kind models.Kind, id string) error {
	if _, err := s.client.Delete(ctx, &rpc.DeleteRequest{Kind: kind, ID: id}); err != nil {
		return mapError(err)
	}
	return nil
}

// mapError converts gRPC status errors into sentinel errors. Anything
// that is not a server verdict counts as the server being unreachable.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: %v", common.ErrUnreachable, err)
	}
	switch st.Code() {
	case codes.NotFound:
		return common.ErrorNotFound
	case codes.AlreadyExists:
		return common.ErrorAlreadyExists
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", common.ErrorValidation, st.Message())
	case codes.Unauthenticated, codes.PermissionDenied:
		return common.ErrorUnauthorized
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", common.ErrUnreachable, st.Message())
	case codes.Canceled:
		return context.Canceled
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
