package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/cuesync/internal/common"
	"github.com/dmitrijs2005/cuesync/internal/dbx"
	"github.com/dmitrijs2005/cuesync/internal/events"
	"github.com/dmitrijs2005/cuesync/internal/logging"
	"github.com/dmitrijs2005/cuesync/internal/merge"
	"github.com/dmitrijs2005/cuesync/internal/models"
	"github.com/dmitrijs2005/cuesync/internal/server/repositories/records"
	"github.com/dmitrijs2005/cuesync/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// Publisher receives change notifications after a write commits.
type Publisher interface {
	Publish(events.Envelope)
}

// RecordService is the authoritative store. Writes are serialized by one
// mutex so that the order of commits matches the order of the version
// tokens they carry, which keeps incremental pulls from skipping records.
type RecordService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	clock       *models.Clock
	publisher   Publisher
	logger      logging.Logger

	mu sync.Mutex
}

func NewRecordService(db *sql.DB, m repomanager.RepositoryManager, p Publisher, logger logging.Logger) *RecordService {
	return &RecordService{
		db:          db,
		repomanager: m,
		clock:       models.NewClock(),
		publisher:   p,
		logger:      logger,
	}
}

// Init advances the version clock past every stored version, so versions
// keep increasing across restarts even if the wall clock moved back.
func (s *RecordService) Init(ctx context.Context) error {
	for _, kind := range models.Kinds {
		repo, err := s.repo(kind, s.db)
		if err != nil {
			return err
		}
		v, err := repo.MaxVersion(ctx)
		if err != nil {
			return fmt.Errorf("reading %s versions: %w", kind, err)
		}
		s.clock.Observe(v)
	}
	return nil
}

func (s *RecordService) repo(kind models.Kind, db dbx.DBTX) (records.Repository, error) {
	r := s.repomanager.Records(kind, db)
	if r == nil {
		return nil, fmt.Errorf("%w: unknown kind %q", common.ErrorValidation, kind)
	}
	return r, nil
}

func (s *RecordService) Get(ctx context.Context, kind models.Kind, id string) (models.Record, error) {
	repo, err := s.repo(kind, s.db)
	if err != nil {
		return nil, err
	}
	return repo.Get(ctx, id)
}

func (s *RecordService) List(ctx context.Context, kind models.Kind, since *time.Time, includeDeleted bool) ([]models.Record, error) {
	repo, err := s.repo(kind, s.db)
	if err != nil {
		return nil, err
	}
	return repo.List(ctx, since, includeDeleted)
}

// Create stores rec with a fresh version. An id that is already taken,
// even by a deleted record, yields common.ErrorAlreadyExists.
func (s *RecordService) Create(ctx context.Context, rec models.Record, originator string) (models.Record, error) {
	rec = rec.Clone()
	if rec.RecordID() == "" {
		fresh, err := models.New(rec.Kind(), uuid.NewString())
		if err != nil {
			return nil, err
		}
		if err := fresh.ApplyFields(rec.Fields()); err != nil {
			return nil, err
		}
		rec = fresh
	}
	rec.SetDeleted(false)
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo, err := s.repo(rec.Kind(), tx)
		if err != nil {
			return err
		}
		rec.SetVersion(s.clock.Next())
		return repo.Insert(ctx, rec)
	})
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.publish(events.Change(events.Created, rec.Kind(), rec.RecordID(), originator))
	return rec, nil
}

// Update runs the merge protocol against the stored record. Conflicts are
// reported in the outcome and leave the record untouched.
func (s *RecordService) Update(ctx context.Context, kind models.Kind, id string, req merge.Request, originator string) (*merge.Outcome, error) {
	s.mu.Lock()
	out, err := dbx.InTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) (*merge.Outcome, error) {
		repo, err := s.repo(kind, tx)
		if err != nil {
			return nil, err
		}
		current, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}
		if current.IsDeleted() {
			return nil, common.ErrorNotFound
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
		next.SetVersion(s.clock.Next())
		if err := repo.Update(ctx, next); err != nil {
			return nil, err
		}
		return &merge.Outcome{Status: d.Status, Record: next, MergedFields: d.MergedFields}, nil
	})
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if out.Status == merge.StatusConflict {
		s.logger.Info(ctx, "Update conflict", "kind", kind, "id", id, "fields", out.ConflictingFields)
	} else {
		s.publish(events.Change(events.Updated, kind, id, originator))
	}
	return out, nil
}

// Delete leaves a tombstone carrying a fresh version. Deleting a missing
// or already deleted record yields common.ErrorNotFound.
func (s *RecordService) Delete(ctx context.Context, kind models.Kind, id string, originator string) error {
	s.mu.Lock()
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo, err := s.repo(kind, tx)
		if err != nil {
			return err
		}
		current, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.IsDeleted() {
			return common.ErrorNotFound
		}
		return repo.MarkDeleted(ctx, id, s.clock.Next())
	})
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.publish(events.Change(events.Deleted, kind, id, originator))
	return nil
}

// Snapshot returns every live record, keyed by kind.
func (s *RecordService) Snapshot(ctx context.Context) (map[models.Kind][]models.Record, error) {
	out := make(map[models.Kind][]models.Record, len(models.Kinds))
	for _, kind := range models.Kinds {
		recs, err := s.List(ctx, kind, nil, false)
		if err != nil {
			return nil, err
		}
		out[kind] = recs
	}
	return out, nil
}

func (s *RecordService) publish(e events.Envelope) {
	if s.publisher != nil {
		s.publisher.Publish(e)
	}
}

// IsClientError reports whether err is caused by the request rather than
// by the server.
func IsClientError(err error) bool {
	return errors.Is(err, common.ErrorValidation) ||
		errors.Is(err, common.ErrorNotFound) ||
		errors.Is(err, common.ErrorAlreadyExists) ||
		errors.Is(err, common.ErrorMissingParent)
}
