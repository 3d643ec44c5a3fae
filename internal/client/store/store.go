// Package store is the client's local Record Store. Every mutation made
// while the client is its own authority is journaled in the same SQLite
// transaction; results applied from the authoritative store are not.
package store

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/cuesync/internal/client/journal"
	jr "github.com/dmitrijs2005/cuesync/internal/client/repositories/journal"
	"github.com/dmitrijs2005/cuesync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/cuesync/internal/client/repositories/records"
	"github.com/dmitrijs2005/cuesync/internal/common"
	"github.com/dmitrijs2005/cuesync/internal/dbx"
	"github.com/dmitrijs2005/cuesync/internal/merge"
	"github.com/dmitrijs2005/cuesync/internal/models"
	"github.com/google/uuid"
)

type writeOptions struct {
	fromAuthority bool
	replace       bool
}

// Option modifies a single write.
type Option func(*writeOptions)

// FromAuthority marks a write as the application of an authoritative
// result: it is not journaled and the record keeps the version it carries.
func FromAuthority() Option {
	return func(o *writeOptions) { o.fromAuthority = true }
}

// Replace makes an authoritative write replace the stored copy even if
// that copy carries a newer version. The server's answer to a replayed
// entry needs it: the stored copy still holds the version stamped by the
// local clock.
func Replace() Option {
	return func(o *writeOptions) { o.fromAuthority, o.replace = true, true }
}

func collect(opts []Option) writeOptions {
	var o writeOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Store serializes every record, journal and metadata operation behind one
// mutex.
type Store struct {
	db    *sql.DB
	clock *models.Clock
	mu    sync.Mutex
}

func New(db *sql.DB) *Store {
	return &Store{db: db, clock: models.NewClock()}
}

// NewWithClock is New with a caller-supplied version clock.
func NewWithClock(db *sql.DB, clock *models.Clock) *Store {
	return &Store{db: db, clock: clock}
}

// Init advances the version clock past every stored version.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, kind := range models.Kinds {
		repo, err := records.ForKind(kind, s.db)
		if err != nil {
			return err
		}
		v, err := repo.MaxVersion(ctx)
		if err != nil {
			return err
		}
		s.clock.Observe(v)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, kind models.Kind, id string) (models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := records.ForKind(kind, s.db)
	if err != nil {
		return nil, err
	}
	return repo.Get(ctx, id)
}

// List returns records of kind ordered by id; with since set only those
// with a greater version.
func (s *Store) List(ctx context.Context, kind models.Kind, since *time.Time) ([]models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := records.ForKind(kind, s.db)
	if err != nil {
		return nil, err
	}
	return repo.List(ctx, since)
}

// Upsert stores rec. A local write gets a fresh version and is journaled as
// an insert or, if the record exists, an update based on the stored copy.
// With FromAuthority a deleted record is removed instead, and a record
// older than the stored copy is ignored.
func (s *Store) Upsert(ctx context.Context, rec models.Record, opts ...Option) error {
	o := collect(opts)
	rec = rec.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	if o.fromAuthority {
		return s.applyAuthority(ctx, rec, o.replace)
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo, err := records.ForKind(rec.Kind(), tx)
		if err != nil {
			return err
		}
		op := journal.OpUpdate
		current, err := repo.Get(ctx, rec.RecordID())
		if errors.Is(err, common.ErrorNotFound) {
			op, current = journal.OpInsert, nil
		} else if err != nil {
			return err
		}
		return s.write(ctx, tx, repo, op, rec, current)
	})
}

func (s *Store) applyAuthority(ctx context.Context, rec models.Record, replace bool) error {
	repo, err := records.ForKind(rec.Kind(), s.db)
	if err != nil {
		return err
	}
	s.clock.Observe(rec.Version())
	if rec.IsDeleted() {
		_, err := repo.Delete(ctx, rec.RecordID())
		return err
	}
	if replace {
		return repo.Upsert(ctx, rec)
	}

	current, err := repo.Get(ctx, rec.RecordID())
	switch {
	case errors.Is(err, common.ErrorNotFound):
	case err != nil:
		return err
	case current.Version().After(rec.Version()):
		// versions never go backwards
		return nil
	}
	return repo.Upsert(ctx, rec)
}

// write stamps next with a new version, stores it and journals op. Callers
// hold s.mu and run inside a transaction.
func (s *Store) write(ctx context.Context, tx dbx.DBTX, repo records.Repository, op journal.Operation, next, base models.Record) error {
	v := s.clock.Next()
	next.SetVersion(v)
	next.SetDeleted(false)
	if err := repo.Upsert(ctx, next); err != nil {
		return err
	}
	_, err := jr.NewSQLiteRepository(tx).Record(ctx, journal.Entry{
		Entity:     next.Kind(),
		EntityID:   next.RecordID(),
		Operation:  op,
		Payload:    next,
		Base:       base,
		RecordedAt: v,
	})
	return err
}

// Delete removes a record. A local delete of a missing record yields
// common.ErrorNotFound; with FromAuthority a missing record is ignored.
func (s *Store) Delete(ctx context.Context, kind models.Kind, id string, opts ...Option) error {
	o := collect(opts)

	s.mu.Lock()
	defer s.mu.Unlock()

	if o.fromAuthority {
		repo, err := records.ForKind(kind, s.db)
		if err != nil {
			return err
		}
		_, err = repo.Delete(ctx, id)
		return err
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo, err := records.ForKind(kind, tx)
		if err != nil {
			return err
		}
		current, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if _, err := repo.Delete(ctx, id); err != nil {
			return err
		}
		_, err = jr.NewSQLiteRepository(tx).Record(ctx, journal.Entry{
			Entity:     kind,
			EntityID:   id,
			Operation:  journal.OpDelete,
			Base:       current,
			RecordedAt: s.clock.Next(),
		})
		return err
	})
}

// Create stores a new record, assigning an id if it has none. An id that is
// already present yields common.ErrorAlreadyExists.
func (s *Store) Create(ctx context.Context, rec models.Record) (models.Record, error) {
	rec = rec.Clone()
	if rec.RecordID() == "" {
		fresh, err := models.FromFields(rec.Kind(), uuid.NewString(), rec.Fields())
		if err != nil {
			return nil, err
		}
		rec = fresh
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo, err := records.ForKind(rec.Kind(), tx)
		if err != nil {
			return err
		}
		if _, err := repo.Get(ctx, rec.RecordID()); err == nil {
			return common.ErrorAlreadyExists
		} else if !errors.Is(err, common.ErrorNotFound) {
			return err
		}
		return s.write(ctx, tx, repo, journal.OpInsert, rec, nil)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Update runs the same write path as the authoritative store against the
// local copy. A conflict leaves the record untouched.
func (s *Store) Update(ctx context.Context, kind models.Kind, id string, req merge.Request) (*merge.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return dbx.InTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) (*merge.Outcome, error) {
		repo, err := records.ForKind(kind, tx)
		if err != nil {
			return nil, err
		}
		current, err := repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}

		d := merge.Decide(req, current.Fields(), current.Version())
		if d.Status == merge.StatusConflict {
			return &merge.Outcome{Status: d.Status, Record: current, ConflictingFields: d.ConflictingFields}, nil
		}

		next := current.Clone()
		if err := next.ApplyFields(d.Fields); err != nil {
			return nil, err
		}
		if err := next.Validate(); err != nil {
			return nil, err
		}
		if err := s.write(ctx, tx, repo, journal.OpUpdate, next, current); err != nil {
			return nil, err
		}
		return &merge.Outcome{Status: d.Status, Record: next, MergedFields: d.MergedFields}, nil
	})
}

func (s *Store) Unsynced(ctx context.Context) ([]journal.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return jr.NewSQLiteRepository(s.db).Unsynced(ctx)
}

func (s *Store) MarkSynced(ctx context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return jr.NewSQLiteRepository(s.db).MarkSynced(ctx, ids)
}

func (s *Store) PurgeSynced(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return jr.NewSQLiteRepository(s.db).PurgeSynced(ctx)
}

// PendingCount is the number of unsynced journal entries.
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return jr.NewSQLiteRepository(s.db).Count(ctx)
}

func (s *Store) PendingKeys(ctx context.Context) (map[journal.Key]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return jr.NewSQLiteRepository(s.db).PendingKeys(ctx)
}

// LastSync returns the greatest authoritative version seen by a completed
// pull, or nil before the first one.
func (s *Store) LastSync(ctx context.Context) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return metadata.NewSQLiteRepository(s.db).GetTime(ctx, common.MetaLastSync)
}

func (s *Store) SetLastSync(ctx context.Context, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return metadata.NewSQLiteRepository(s.db).SetTime(ctx, common.MetaLastSync, t)
}
