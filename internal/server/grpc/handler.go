package grpc

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/cuesync/internal/common"
	"github.com/dmitrijs2005/cuesync/internal/models"
	"github.com/dmitrijs2005/cuesync/internal/rpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// mapError converts service errors into gRPC status errors.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, common.ErrorAlreadyExists):
		return status.Error(codes.AlreadyExists, "already exists")
	case errors.Is(err, common.ErrorValidation), errors.Is(err, common.ErrorMissingParent):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		return status.Error(codes.Unauthenticated, "unauthorized")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

func wrapAll(recs []models.Record) ([]rpc.Record, error) {
	out := make([]rpc.Record, 0, len(recs))
	for _, r := range recs {
		w, err := rpc.WrapRecord(r)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

func (s *GRPCServer) Ping(ctx context.Context, req *rpc.PingRequest) (*rpc.PingResponse, error) {
	return &rpc.PingResponse{ServerTime: time.Now().UTC()}, nil
}

func (s *GRPCServer) Register(ctx context.Context, req *rpc.RegisterRequest) (*rpc.RegisterResponse, error) {

	s.logger.Info(ctx, "Registration request", "username", req.UserName)

	user, err := s.users.Register(ctx, req.UserName, req.Salt, req.Verifier)
	if err != nil {
		return nil, mapError(err)
	}

	s.logger.Info(ctx, "Registered", "username", req.UserName, "user_id", user.ID)
	return &rpc.RegisterResponse{UserID: user.ID}, nil
}

func (s *GRPCServer) GetSalt(ctx context.Context, req *rpc.GetSaltRequest) (*rpc.GetSaltResponse, error) {
	salt, err := s.users.GetSalt(ctx, req.UserName)
	if err != nil {
		return nil, mapError(err)
	}
	return &rpc.GetSaltResponse{Salt: salt}, nil
}

func (s *GRPCServer) Login(ctx context.Context, req *rpc.LoginRequest) (*rpc.LoginResponse, error) {
	token, err := s.users.Login(ctx, req.UserName, req.Verifier)
	if err != nil {
		return nil, mapError(err)
	}
	return &rpc.LoginResponse{AccessToken: token}, nil
}

func (s *GRPCServer) Get(ctx context.Context, req *rpc.GetRequest) (*rpc.GetResponse, error) {
	rec, err := s.records.Get(ctx, req.Kind, req.ID)
	if err != nil {
		return nil, mapError(err)
	}
	w, err := rpc.WrapRecord(rec)
	if err != nil {
		return nil, mapError(err)
	}
	return &rpc.GetResponse{Record: w}, nil
}

func (s *GRPCServer) List(ctx context.Context, req *rpc.ListRequest) (*rpc.ListResponse, error) {
	recs, err := s.records.List(ctx, req.Kind, req.Since, req.IncludeDeleted)
	if err != nil {
		return nil, mapError(err)
	}
	out, err := wrapAll(recs)
	if err != nil {
		return nil, mapError(err)
	}
	return &rpc.ListResponse{Records: out}, nil
}

func (s *GRPCServer) Create(ctx context.Context, req *rpc.CreateRequest) (*rpc.CreateResponse, error) {
	rec, err := req.Record.Unwrap()
	if err != nil {
		return nil, mapError(err)
	}
	created, err := s.records.Create(ctx, rec, originator(ctx))
	if err != nil {
		return nil, mapError(err)
	}
	w, err := rpc.WrapRecord(created)
	if err != nil {
		return nil, mapError(err)
	}
	return &rpc.CreateResponse{Record: w}, nil
}

// Update answers conflicts with an OK status and Status set to conflict;
// only missing records and invalid input are reported as errors.
func (s *GRPCServer) Update(ctx context.Context, req *rpc.UpdateRequest) (*rpc.UpdateResponse, error) {
	out, err := s.records.Update(ctx, req.Kind, req.ID, req.Request, originator(ctx))
	if err != nil {
		return nil, mapError(err)
	}
	w, err := rpc.WrapRecord(out.Record)
	if err != nil {
		return nil, mapError(err)
	}
	return &rpc.UpdateResponse{
		Status:            out.Status,
		Record:            w,
		MergedFields:      out.MergedFields,
		ConflictingFields: out.ConflictingFields,
	}, nil
}

func (s *GRPCServer) Delete(ctx context.Context, req *rpc.DeleteRequest) (*rpc.DeleteResponse, error) {
	if err := s.records.Delete(ctx, req.Kind, req.ID, originator(ctx)); err != nil {
		return nil, mapError(err)
	}
	return &rpc.DeleteResponse{}, nil
}
