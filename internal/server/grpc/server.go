// Package grpc exposes the authoritative store and user accounts over the
// CueService gRPC API.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/cuesync/internal/logging"
	"github.com/dmitrijs2005/cuesync/internal/merge"
	"github.com/dmitrijs2005/cuesync/internal/models"
	"github.com/dmitrijs2005/cuesync/internal/rpc"
	"github.com/dmitrijs2005/cuesync/internal/server/auth"
	servermodels "github.com/dmitrijs2005/cuesync/internal/server/models"
	"google.golang.org/grpc"
)

type userService interface {
	Register(ctx context.Context, userName string, salt, verifier []byte) (*servermodels.User, error)
	GetSalt(ctx context.Context, userName string) ([]byte, error)
	Login(ctx context.Context, userName string, verifierCandidate []byte) (string, error)
	Authenticate(token string) (auth.Identity, error)
}

type recordService interface {
	Get(ctx context.Context, kind models.Kind, id string) (models.Record, error)
	List(ctx context.Context, kind models.Kind, since *time.Time, includeDeleted bool) ([]models.Record, error)
	Create(ctx context.Context, rec models.Record, originator string) (models.Record, error)
	Update(ctx context.Context, kind models.Kind, id string, req merge.Request, originator string) (*merge.Outcome, error)
	Delete(ctx context.Context, kind models.Kind, id string, originator string) error
}

type GRPCServer struct {
	address string
	users   userService
	records recordService
	logger  logging.Logger
}

var _ rpc.CueServiceServer = (*GRPCServer)(nil)

func NewGRPCServer(a string, l logging.Logger, us userService, rs recordService) *GRPCServer {
	return &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		users:   us,
		records: rs,
	}
}

// newServer builds a grpc.Server with the CueService implementation and
// its interceptors attached.
func (s *GRPCServer) newServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor)}, opts...)
	srv := grpc.NewServer(opts...)
	rpc.RegisterCueServiceServer(srv, s)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
