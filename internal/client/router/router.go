// Package router sends reads and writes to the authoritative store while
// it is reachable and to the local store otherwise, and drives the sync
// cycle when connectivity returns.
package router

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/cuesync/internal/client/store"
	"github.com/dmitrijs2005/cuesync/internal/client/syncer"
	"github.com/dmitrijs2005/cuesync/internal/common"
	"github.com/dmitrijs2005/cuesync/internal/logging"
	"github.com/dmitrijs2005/cuesync/internal/merge"
	"github.com/dmitrijs2005/cuesync/internal/models"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeSyncing Mode = "syncing"
	ModeOnline  Mode = "online"
)

type Local interface {
	Get(ctx context.Context, kind models.Kind, id string) (models.Record, error)
	List(ctx context.Context, kind models.Kind, since *time.Time) ([]models.Record, error)
	Upsert(ctx context.Context, rec models.Record, opts ...store.Option) error
	Create(ctx context.Context, rec models.Record) (models.Record, error)
	Update(ctx context.Context, kind models.Kind, id string, req merge.Request) (*merge.Outcome, error)
	Delete(ctx context.Context, kind models.Kind, id string, opts ...store.Option) error
	PendingCount(ctx context.Context) (int, error)
}

type Remote interface {
	Ping(ctx context.Context) error
	Get(ctx context.Context, kind models.Kind, id string) (models.Record, error)
	List(ctx context.Context, kind models.Kind, since *time.Time, includeDeleted bool) ([]models.Record, error)
	Create(ctx context.Context, rec models.Record) (models.Record, error)
	Update(ctx context.Context, kind models.Kind, id string, req merge.Request) (*merge.Outcome, error)
	Delete(ctx context.Context, kind models.Kind, id string) error
}

type Syncer interface {
	Sync(ctx context.Context) (*syncer.Result, error)
	Pull(ctx context.Context) (*syncer.Result, error)
}

// Listener is told about every mode change.
type Listener func(from, to Mode)

type Options struct {
	ProbeInterval time.Duration
	ProbeTimeout  time.Duration
	CallTimeout   time.Duration
}

type Router struct {
	local  Local
	remote Remote
	syncer Syncer
	logger logging.Logger
	opts   Options

	mu        sync.Mutex
	mode      Mode
	listeners []Listener

	// gate is held shared by writes and exclusively by a sync cycle.
	gate sync.RWMutex
}

// New returns a router in offline mode.
func New(local Local, remote Remote, s Syncer, logger logging.Logger, opts Options) *Router {
	if opts.ProbeInterval <= 0 {
		opts.ProbeInterval = 3 * time.Second
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 2 * time.Second
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 10 * time.Second
	}
	return &Router{
		local:  local,
		remote: remote,
		syncer: s,
		logger: logger.With("module", "router"),
		opts:   opts,
		mode:   ModeOffline,
	}
}

func (r *Router) Mode() Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

func (r *Router) OnModeChange(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

// transition moves to mode to. With from set, it only does so if the
// current mode is one of from.
func (r *Router) transition(to Mode, from ...Mode) bool {
	r.mu.Lock()
	prev := r.mode
	if len(from) > 0 && !contains(from, prev) {
		r.mu.Unlock()
		return false
	}
	r.mode = to
	listeners := append([]Listener(nil), r.listeners...)
	r.mu.Unlock()

	if prev != to {
		r.logger.Info(context.Background(), "Mode changed", "from", prev, "to", to)
		for _, l := range listeners {
			l(prev, to)
		}
	}
	return true
}

func contains(modes []Mode, m Mode) bool {
	for _, x := range modes {
		if x == m {
			return true
		}
	}
	return false
}

func (r *Router) goOffline(ctx context.Context, err error) {
	r.logger.Warn(ctx, "Server unreachable", "error", err)
	r.transition(ModeOffline)
}

// Run probes the server every ProbeInterval until ctx is done.
func (r *Router) Run(ctx context.Context) {
	ticker := time.NewTicker(r.opts.ProbeInterval)
	defer ticker.Stop()

	r.Probe(ctx)
	for {
		select {
		case <-ticker.C:
			r.Probe(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Probe checks reachability once. A failure switches to offline; success
// while offline starts a sync cycle.
func (r *Router) Probe(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, r.opts.ProbeTimeout)
	err := r.remote.Ping(pctx)
	cancel()

	if err != nil {
		if r.Mode() != ModeOffline {
			r.goOffline(ctx, err)
		}
		return
	}

	if r.transition(ModeSyncing, ModeOffline) {
		if _, err := r.syncCycle(ctx); err != nil {
			r.logger.Error(ctx, "Sync failed", "error", err)
		}
	}
}

// SyncNow pings the server and runs a sync cycle regardless of the
// current mode.
func (r *Router) SyncNow(ctx context.Context) (*syncer.Result, error) {
	pctx, cancel := context.WithTimeout(ctx, r.opts.ProbeTimeout)
	err := r.remote.Ping(pctx)
	cancel()
	if err != nil {
		r.goOffline(ctx, err)
		return nil, err
	}

	r.transition(ModeSyncing)
	return r.syncCycle(ctx)
}

// syncCycle drains the journal, or only pulls if it is empty, with local
// writes held back. It leaves the router online on success and offline
// otherwise.
func (r *Router) syncCycle(ctx context.Context) (*syncer.Result, error) {
	r.gate.Lock()
	defer r.gate.Unlock()

	n, err := r.local.PendingCount(ctx)
	if err != nil {
		r.transition(ModeOffline, ModeSyncing)
		return nil, err
	}

	var res *syncer.Result
	if n > 0 {
		r.logger.Info(ctx, "Replaying journal", "entries", n)
		res, err = r.syncer.Sync(ctx)
	} else {
		res, err = r.syncer.Pull(ctx)
	}

	if errors.Is(err, common.ErrSyncInProgress) {
		// a refresh holds the syncer; the next probe tries again
		r.transition(ModeOffline, ModeSyncing)
		return nil, err
	}
	if err != nil || !res.Success() {
		if res != nil {
			r.logger.Warn(ctx, "Sync incomplete", "errors", res.Errors)
		}
		r.transition(ModeOffline, ModeSyncing)
		return res, err
	}

	r.transition(ModeOnline, ModeSyncing)
	return res, nil
}

func (r *Router) online() bool {
	return r.Mode() == ModeOnline
}

func (r *Router) call(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.opts.CallTimeout)
}

// mirror keeps the local copy close to the server between pulls.
func (r *Router) mirror(ctx context.Context, rec models.Record) {
	if rec == nil {
		return
	}
	if err := r.local.Upsert(ctx, rec, store.FromAuthority()); err != nil {
		r.logger.Warn(ctx, "Local mirror failed", "entity", rec.Kind(), "id", rec.RecordID(), "error", err)
	}
}

func (r *Router) Get(ctx context.Context, kind models.Kind, id string) (models.Record, error) {
	if r.online() {
		cctx, cancel := r.call(ctx)
		rec, err := r.remote.Get(cctx, kind, id)
		cancel()
		if !errors.Is(err, common.ErrUnreachable) {
			return rec, err
		}
		r.goOffline(ctx, err)
	}
	return r.local.Get(ctx, kind, id)
}

func (r *Router) List(ctx context.Context, kind models.Kind) ([]models.Record, error) {
	if r.online() {
		cctx, cancel := r.call(ctx)
		recs, err := r.remote.List(cctx, kind, nil, false)
		cancel()
		if !errors.Is(err, common.ErrUnreachable) {
			return recs, err
		}
		r.goOffline(ctx, err)
	}
	return r.local.List(ctx, kind, nil)
}

func (r *Router) Create(ctx context.Context, rec models.Record) (models.Record, error) {
	r.gate.RLock()
	defer r.gate.RUnlock()

	if r.online() {
		cctx, cancel := r.call(ctx)
		stored, err := r.remote.Create(cctx, rec)
		cancel()
		if !errors.Is(err, common.ErrUnreachable) {
			if err == nil {
				r.mirror(ctx, stored)
			}
			return stored, err
		}
		r.goOffline(ctx, err)
	}
	return r.local.Create(ctx, rec)
}

func (r *Router) Update(ctx context.Context, kind models.Kind, id string, req merge.Request) (*merge.Outcome, error) {
	r.gate.RLock()
	defer r.gate.RUnlock()

	if r.online() {
		cctx, cancel := r.call(ctx)
		out, err := r.remote.Update(cctx, kind, id, req)
		cancel()
		if !errors.Is(err, common.ErrUnreachable) {
			if err == nil {
				r.mirror(ctx, out.Record)
			}
			return out, err
		}
		r.goOffline(ctx, err)
	}
	return r.local.Update(ctx, kind, id, req)
}

func (r *Router) Delete(ctx context.Context, kind models.Kind, id string) error {
	r.gate.RLock()
	defer r.gate.RUnlock()

	if r.online() {
		cctx, cancel := r.call(ctx)
		err := r.remote.Delete(cctx, kind, id)
		cancel()
		if !errors.Is(err, common.ErrUnreachable) {
			if err == nil {
				if lerr := r.local.Delete(ctx, kind, id, store.FromAuthority()); lerr != nil {
					r.logger.Warn(ctx, "Local mirror failed", "entity", kind, "id", id, "error", lerr)
				}
			}
			return err
		}
		r.goOffline(ctx, err)
	}
	return r.local.Delete(ctx, kind, id)
}
