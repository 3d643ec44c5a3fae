package grpc

import (
	"context"
	"time"

	"github.com/dmitrijs2005/cuesync/internal/common"
	"github.com/dmitrijs2005/cuesync/internal/logging"
	"github.com/dmitrijs2005/cuesync/internal/merge"
	"github.com/dmitrijs2005/cuesync/internal/models"
	"github.com/dmitrijs2005/cuesync/internal/server/auth"
	servermodels "github.com/dmitrijs2005/cuesync/internal/server/models"
)

type fakeUsers struct {
	regErr   error
	salt     []byte
	token    string
	loginErr error
	// tokens maps valid access tokens to identities.
	tokens map[string]auth.Identity
}

func (f *fakeUsers) Register(ctx context.Context, userName string, salt, verifier []byte) (*servermodels.User, error) {
	if f.regErr != nil {
		return nil, f.regErr
	}
	return &servermodels.User{ID: "u-1", UserName: userName, Salt: salt, Verifier: verifier}, nil
}

func (f *fakeUsers) GetSalt(ctx context.Context, userName string) ([]byte, error) {
	return f.salt, nil
}

func (f *fakeUsers) Login(ctx context.Context, userName string, verifierCandidate []byte) (string, error) {
	return f.token, f.loginErr
}

func (f *fakeUsers) Authenticate(token string) (auth.Identity, error) {
	id, ok := f.tokens[token]
	if !ok {
		return auth.Identity{}, common.ErrInvalidToken
	}
	return id, nil
}

type fakeRecords struct {
	records map[string]models.Record

	outcome  *merge.Outcome
	err      error
	lastOrig string
	lastReq  merge.Request
	since    *time.Time
}

func newFakeRecords(recs ...models.Record) *fakeRecords {
	f := &fakeRecords{records: map[string]models.Record{}}
	for _, r := range recs {
		f.records[r.RecordID()] = r
	}
	return f
}

func (f *fakeRecords) Get(ctx context.Context, kind models.Kind, id string) (models.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	r, ok := f.records[id]
	if !ok || r.Kind() != kind {
		return nil, common.ErrorNotFound
	}
	return r, nil
}

func (f *fakeRecords) List(ctx context.Context, kind models.Kind, since *time.Time, includeDeleted bool) ([]models.Record, error) {
	f.since = since
	var out []models.Record
	for _, r := range f.records {
		if r.Kind() == kind {
			out = append(out, r)
		}
	}
	return out, f.err
}

func (f *fakeRecords) Create(ctx context.Context, rec models.Record, originator string) (models.Record, error) {
	f.lastOrig = originator
	if f.err != nil {
		return nil, f.err
	}
	if _, ok := f.records[rec.RecordID()]; ok {
		return nil, common.ErrorAlreadyExists
	}
	rec.SetVersion(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	f.records[rec.RecordID()] = rec
	return rec, nil
}

func (f *fakeRecords) Update(ctx context.Context, kind models.Kind, id string, req merge.Request, originator string) (*merge.Outcome, error) {
	f.lastOrig = originator
	f.lastReq = req
	return f.outcome, f.err
}

func (f *fakeRecords) Delete(ctx context.Context, kind models.Kind, id string, originator string) error {
	f.lastOrig = originator
	if _, ok := f.records[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.records, id)
	return nil
}

func newTestServer(us *fakeUsers, rs *fakeRecords) *GRPCServer {
	return NewGRPCServer("127.0.0.1:0", logging.Nop(), us, rs)
}
