package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/cuesync/internal/common"
	"github.com/dmitrijs2005/cuesync/internal/dbx"
	"github.com/dmitrijs2005/cuesync/internal/events"
	"github.com/dmitrijs2005/cuesync/internal/models"
	servermodels "github.com/dmitrijs2005/cuesync/internal/server/models"
	"github.com/dmitrijs2005/cuesync/internal/server/repositories/records"
	"github.com/dmitrijs2005/cuesync/internal/server/repositories/users"
	"github.com/stretchr/testify/require"
)

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

// memRecords keeps records in memory, tombstones included.
type memRecords struct {
	rows      map[string]models.Record
	insertErr error
}

func newMemRecords() *memRecords {
	return &memRecords{rows: map[string]models.Record{}}
}

func (m *memRecords) Get(ctx context.Context, id string) (models.Record, error) {
	r, ok := m.rows[id]
	if !ok || r.IsDeleted() {
		return nil, common.ErrorNotFound
	}
	return r.Clone(), nil
}

func (m *memRecords) GetForUpdate(ctx context.Context, id string) (models.Record, error) {
	r, ok := m.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return r.Clone(), nil
}

func (m *memRecords) List(ctx context.Context, since *time.Time, includeDeleted bool) ([]models.Record, error) {
	var out []models.Record
	for _, r := range m.rows {
		if since != nil && !r.Version().After(*since) {
			continue
		}
		if r.IsDeleted() && !includeDeleted {
			continue
		}
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version().Before(out[j].Version()) })
	return out, nil
}

func (m *memRecords) Insert(ctx context.Context, rec models.Record) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	if _, ok := m.rows[rec.RecordID()]; ok {
		return common.ErrorAlreadyExists
	}
	m.rows[rec.RecordID()] = rec.Clone()
	return nil
}

func (m *memRecords) Update(ctx context.Context, rec models.Record) error {
	r, ok := m.rows[rec.RecordID()]
	if !ok || r.IsDeleted() {
		return common.ErrorNotFound
	}
	m.rows[rec.RecordID()] = rec.Clone()
	return nil
}

func (m *memRecords) MarkDeleted(ctx context.Context, id string, version time.Time) error {
	r, ok := m.rows[id]
	if !ok || r.IsDeleted() {
		return common.ErrorNotFound
	}
	r.SetDeleted(true)
	r.SetVersion(version)
	return nil
}

func (m *memRecords) MaxVersion(ctx context.Context) (time.Time, error) {
	var max time.Time
	for _, r := range m.rows {
		if r.Version().After(max) {
			max = r.Version()
		}
	}
	return max, nil
}

type fakeUsersRepo struct {
	createOut *servermodels.User
	createErr error
	getOut    *servermodels.User
	getErr    error
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *servermodels.User) (*servermodels.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.createOut, nil
}

func (f *fakeUsersRepo) GetUserByLogin(ctx context.Context, userName string) (*servermodels.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.getOut, nil
}

type fakeRepoManager struct {
	users      *fakeUsersRepo
	characters *memRecords
	cues       *memRecords
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{users: &fakeUsersRepo{}, characters: newMemRecords(), cues: newMemRecords()}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) users.Repository          { return m.users }
func (m *fakeRepoManager) Records(kind models.Kind, db dbx.DBTX) records.Repository {
	switch kind {
	case models.KindCharacter:
		return m.characters
	case models.KindCue:
		return m.cues
	}
	return nil
}

type recordingPublisher struct {
	mu   sync.Mutex
	sent []events.Envelope
}

func (p *recordingPublisher) Publish(e events.Envelope) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, e)
}
