// Package syncer drains the mutation journal into the authoritative store
// and pulls back whatever changed there since the last sync.
//
// A cycle runs five steps: read and deduplicate the journal, replay parent
// records, replay dependent records, pull, finalize. A single failing entry
// is recorded in the result and does not stop the cycle. Every replayed
// entry is marked synced as soon as the server accepts it, so an
// interrupted cycle never replays it again.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/cuesync/internal/client/journal"
	"github.com/dmitrijs2005/cuesync/internal/client/store"
	"github.com/dmitrijs2005/cuesync/internal/common"
	"github.com/dmitrijs2005/cuesync/internal/logging"
	"github.com/dmitrijs2005/cuesync/internal/merge"
	"github.com/dmitrijs2005/cuesync/internal/models"
)

const totalSteps = 5

const defaultTimeout = 10 * time.Second

// Local is the client's record store and journal.
type Local interface {
	Upsert(ctx context.Context, rec models.Record, opts ...store.Option) error
	Delete(ctx context.Context, kind models.Kind, id string, opts ...store.Option) error
	Unsynced(ctx context.Context) ([]journal.Entry, error)
	MarkSynced(ctx context.Context, ids []int64) error
	PurgeSynced(ctx context.Context) (int64, error)
	PendingKeys(ctx context.Context) (map[journal.Key]bool, error)
	LastSync(ctx context.Context) (*time.Time, error)
	SetLastSync(ctx context.Context, t time.Time) error
}

// Remote is the authoritative store.
type Remote interface {
	Get(ctx context.Context, kind models.Kind, id string) (models.Record, error)
	List(ctx context.Context, kind models.Kind, since *time.Time, includeDeleted bool) ([]models.Record, error)
	Create(ctx context.Context, rec models.Record) (models.Record, error)
	Update(ctx context.Context, kind models.Kind, id string, req merge.Request) (*merge.Outcome, error)
	Delete(ctx context.Context, kind models.Kind, id string) error
}

// Conflict is a replayed update the server could not merge.
type Conflict struct {
	Kind          models.Kind
	ID            string
	Local         models.Record
	Authoritative models.Record
	// Fields lists the conflicting fields; empty when they are unknown.
	Fields []string
}

// ConflictFunc decides a conflict: true keeps the local version, false
// adopts the authoritative one. An error leaves the entry in the journal
// undecided.
type ConflictFunc func(ctx context.Context, c Conflict) (bool, error)

// ProgressFunc is called at the start of every step.
type ProgressFunc func(step, total int, desc string)

// Result summarizes one cycle.
type Result struct {
	Pushed     int
	Pulled     int
	Conflicted int
	Errors     []string
}

func (r *Result) Success() bool {
	return len(r.Errors) == 0
}

func (r *Result) fail(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

type Option func(*Syncer)

// WithTimeout bounds every network call of a cycle.
func WithTimeout(d time.Duration) Option {
	return func(s *Syncer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithConflictFunc sets the conflict decision. Without one, conflicted
// entries stay in the journal and are reported as errors.
func WithConflictFunc(f ConflictFunc) Option {
	return func(s *Syncer) { s.onConflict = f }
}

func WithProgress(f ProgressFunc) Option {
	return func(s *Syncer) { s.onProgress = f }
}

type Syncer struct {
	local      Local
	remote     Remote
	logger     logging.Logger
	timeout    time.Duration
	onConflict ConflictFunc
	onProgress ProgressFunc

	running atomic.Bool
}

func New(local Local, remote Remote, logger logging.Logger, opts ...Option) *Syncer {
	s := &Syncer{
		local:   local,
		remote:  remote,
		logger:  logger.With("module", "syncer"),
		timeout: defaultTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Running reports whether a cycle is in progress.
func (s *Syncer) Running() bool {
	return s.running.Load()
}

// Sync runs a full cycle. It returns common.ErrSyncInProgress without
// doing anything if another cycle is running. The returned error is set
// only when the local store fails; remote failures go to Result.Errors.
func (s *Syncer) Sync(ctx context.Context) (*Result, error) {
	return s.cycle(ctx, true)
}

// Pull runs the pull and finalize steps only.
func (s *Syncer) Pull(ctx context.Context) (*Result, error) {
	return s.cycle(ctx, false)
}

func (s *Syncer) cycle(ctx context.Context, push bool) (*Result, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, common.ErrSyncInProgress
	}
	defer s.running.Store(false)

	res := &Result{}
	start := time.Now()

	if push {
		if err := s.push(ctx, res); err != nil {
			return res, err
		}
	}

	s.progress(4, "pulling changes")
	maxVersion, pulled, err := s.pull(ctx, res)
	if err != nil {
		return res, err
	}

	s.progress(5, "finalizing")
	if pulled && maxVersion != nil {
		if err := s.local.SetLastSync(ctx, *maxVersion); err != nil {
			return res, fmt.Errorf("saving last sync: %w", err)
		}
	}
	purged, err := s.local.PurgeSynced(ctx)
	if err != nil {
		return res, fmt.Errorf("purging journal: %w", err)
	}

	s.logger.Info(ctx, "Sync finished",
		"pushed", res.Pushed, "pulled", res.Pulled, "conflicted", res.Conflicted,
		"errors", len(res.Errors), "purged", purged, "took", time.Since(start))

	return res, nil
}

func (s *Syncer) progress(step int, desc string) {
	if s.onProgress != nil {
		s.onProgress(step, totalSteps, desc)
	}
}

func (s *Syncer) push(ctx context.Context, res *Result) error {
	s.progress(1, "reading journal")

	entries, err := s.local.Unsynced(ctx)
	if errors.Is(err, common.ErrJournalCorrupt) {
		s.logger.Error(ctx, "Journal unreadable, skipping push", "error", err)
		res.fail("journal: %v", err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading journal: %w", err)
	}

	plan := journal.Deduplicate(entries)
	if len(plan.Cancelled) > 0 {
		if err := s.local.MarkSynced(ctx, plan.Cancelled); err != nil {
			return fmt.Errorf("marking cancelled entries: %w", err)
		}
	}
	s.logger.Debug(ctx, "Journal read", "entries", len(entries), "effective", plan.Len(), "cancelled", len(plan.Cancelled))

	s.progress(2, "replaying characters")
	if err := s.replayBatch(ctx, plan.Parents, res); err != nil {
		return err
	}
	s.progress(3, "replaying cues")
	return s.replayBatch(ctx, plan.Dependents, res)
}

func (s *Syncer) replayBatch(ctx context.Context, batch []journal.Effective, res *Result) error {
	for _, eff := range batch {
		e := eff.Entry
		err := s.replay(ctx, e, res)
		if err != nil {
			var le *localError
			if errors.As(err, &le) {
				return le.err
			}
			s.logger.Warn(ctx, "Replay failed", "entity", e.Entity, "id", e.EntityID, "op", e.Operation, "error", err)
			res.fail("%s %s %s: %v", e.Operation, e.Entity, e.EntityID, err)
			continue
		}
		if err := s.local.MarkSynced(ctx, eff.Covers); err != nil {
			return fmt.Errorf("marking %s %s synced: %w", e.Entity, e.EntityID, err)
		}
		res.Pushed++
	}
	return nil
}

// localError marks a failure of the local store during replay; it aborts
// the cycle instead of being recorded per entry.
type localError struct{ err error }

func (e *localError) Error() string { return e.err.Error() }

func localFailure(err error) error {
	if err == nil {
		return nil
	}
	return &localError{err: err}
}

func (s *Syncer) call(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Syncer) replay(ctx context.Context, e journal.Entry, res *Result) error {
	switch e.Operation {
	case journal.OpInsert:
		return s.replayInsert(ctx, e)
	case journal.OpUpdate:
		return s.replayUpdate(ctx, e, res)
	case journal.OpDelete:
		cctx, cancel := s.call(ctx)
		defer cancel()
		err := s.remote.Delete(cctx, e.Entity, e.EntityID)
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return err
	default:
		return fmt.Errorf("%w: operation %q", common.ErrJournalCorrupt, e.Operation)
	}
}

func (s *Syncer) replayInsert(ctx context.Context, e journal.Entry) error {
	if e.Payload == nil {
		return fmt.Errorf("%w: insert without payload", common.ErrJournalCorrupt)
	}

	cctx, cancel := s.call(ctx)
	defer cancel()

	stored, err := s.remote.Create(cctx, e.Payload)
	if errors.Is(err, common.ErrorAlreadyExists) {
		return nil
	}
	if err != nil {
		return err
	}
	return localFailure(s.local.Upsert(ctx, stored, store.Replace()))
}

func (s *Syncer) replayUpdate(ctx context.Context, e journal.Entry, res *Result) error {
	if e.Payload == nil {
		return fmt.Errorf("%w: update without payload", common.ErrJournalCorrupt)
	}

	req := merge.Request{Fields: e.Payload.Fields()}
	if e.Base != nil {
		v := e.Base.Version()
		req.Base = e.Base.Fields()
		req.Version = &v
	}

	out, err := s.update(ctx, e.Entity, e.EntityID, req)
	if errors.Is(err, common.ErrorNotFound) {
		s.logger.Info(ctx, "Record gone on server, removing local copy", "entity", e.Entity, "id", e.EntityID)
		return localFailure(s.local.Delete(ctx, e.Entity, e.EntityID, store.FromAuthority()))
	}
	if err != nil {
		return err
	}

	if out.Status != merge.StatusConflict {
		if out.Status == merge.StatusMerged {
			s.logger.Info(ctx, "Update merged", "entity", e.Entity, "id", e.EntityID, "fields", out.MergedFields)
		}
		return localFailure(s.local.Upsert(ctx, out.Record, store.Replace()))
	}

	res.Conflicted++
	if s.onConflict == nil {
		return fmt.Errorf("%w: fields %v", common.ErrUnresolved, out.ConflictingFields)
	}

	keep, err := s.onConflict(ctx, Conflict{
		Kind:          e.Entity,
		ID:            e.EntityID,
		Local:         e.Payload,
		Authoritative: out.Record,
		Fields:        out.ConflictingFields,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrUnresolved, err)
	}
	if !keep {
		return localFailure(s.local.Upsert(ctx, out.Record, store.Replace()))
	}

	v := out.Record.Version()
	forced, err := s.update(ctx, e.Entity, e.EntityID, merge.Request{Fields: keptFields(e, out), Version: &v})
	if err != nil {
		return err
	}
	if forced.Status == merge.StatusConflict {
		return fmt.Errorf("%w: record changed again during resolution", common.ErrUnresolved)
	}
	return localFailure(s.local.Upsert(ctx, forced.Record, store.Replace()))
}

// keptFields is the write that keeps the local side of a conflict: the
// authoritative record with every field merged as usual and each
// conflicting field set to the local value. Without a base the conflicting
// fields are all that is known; a full conflict sends the whole payload.
func keptFields(e journal.Entry, out *merge.Outcome) models.Fields {
	mine := e.Payload.Fields()
	if e.Base == nil {
		if len(out.ConflictingFields) == 0 {
			return mine
		}
		kept := models.Fields{}
		for _, name := range out.ConflictingFields {
			kept[name] = mine[name]
		}
		return kept
	}

	res := merge.Resolve(mine, e.Base.Fields(), out.Record.Fields())
	for _, name := range append(res.Conflicts, out.ConflictingFields...) {
		res.Fields[name] = mine[name]
	}
	return res.Fields
}

func (s *Syncer) update(ctx context.Context, kind models.Kind, id string, req merge.Request) (*merge.Outcome, error) {
	cctx, cancel := s.call(ctx)
	defer cancel()
	return s.remote.Update(cctx, kind, id, req)
}

// pull fetches every kind changed since the last sync and applies it
// without journaling. Entities with unsynced journal entries are skipped.
// ok is false if any kind failed to download.
func (s *Syncer) pull(ctx context.Context, res *Result) (maxVersion *time.Time, ok bool, err error) {
	since, err := s.local.LastSync(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("reading last sync: %w", err)
	}
	pending, err := s.local.PendingKeys(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("reading pending keys: %w", err)
	}

	maxVersion = since
	ok = true
	for _, kind := range models.Kinds {
		cctx, cancel := s.call(ctx)
		recs, err := s.remote.List(cctx, kind, since, true)
		cancel()
		if err != nil {
			s.logger.Warn(ctx, "Pull failed", "kind", kind, "error", err)
			res.fail("pull %s: %v", kind, err)
			ok = false
			continue
		}

		for _, rec := range recs {
			if v := rec.Version(); maxVersion == nil || v.After(*maxVersion) {
				maxVersion = &v
			}
			if pending[journal.Key{Entity: kind, EntityID: rec.RecordID()}] {
				continue
			}
			if err := s.local.Upsert(ctx, rec, store.FromAuthority()); err != nil {
				return nil, false, fmt.Errorf("applying pulled %s %s: %w", kind, rec.RecordID(), err)
			}
			res.Pulled++
		}
	}
	return maxVersion, ok, nil
}

// Refresh reloads one record from the server into the local store. It
// does nothing for records with unsynced local changes and returns
// common.ErrSyncInProgress while a cycle runs. A cycle cannot start until
// the refresh is done.
func (s *Syncer) Refresh(ctx context.Context, kind models.Kind, id string) error {
	if !s.running.CompareAndSwap(false, true) {
		return common.ErrSyncInProgress
	}
	defer s.running.Store(false)

	pending, err := s.local.PendingKeys(ctx)
	if err != nil {
		return err
	}
	if pending[journal.Key{Entity: kind, EntityID: id}] {
		return nil
	}

	cctx, cancel := s.call(ctx)
	defer cancel()

	rec, err := s.remote.Get(cctx, kind, id)
	if errors.Is(err, common.ErrorNotFound) {
		return s.local.Delete(ctx, kind, id, store.FromAuthority())
	}
	if err != nil {
		return err
	}
	return s.local.Upsert(ctx, rec, store.FromAuthority())
}
