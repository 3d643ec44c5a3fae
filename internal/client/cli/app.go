package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/dmitrijs2005/cuesync/internal/client/client"
	"github.com/dmitrijs2005/cuesync/internal/client/config"
	"github.com/dmitrijs2005/cuesync/internal/client/journal"
	"github.com/dmitrijs2005/cuesync/internal/client/migrations"
	"github.com/dmitrijs2005/cuesync/internal/client/push"
	"github.com/dmitrijs2005/cuesync/internal/client/router"
	"github.com/dmitrijs2005/cuesync/internal/client/services"
	"github.com/dmitrijs2005/cuesync/internal/client/store"
	"github.com/dmitrijs2005/cuesync/internal/client/syncer"
	"github.com/dmitrijs2005/cuesync/internal/events"
	"github.com/dmitrijs2005/cuesync/internal/filex"
	"github.com/dmitrijs2005/cuesync/internal/logging"
	"github.com/dmitrijs2005/cuesync/internal/merge"
	"github.com/dmitrijs2005/cuesync/internal/models"
)

// recordRouter is the part of the connectivity router the commands use.
type recordRouter interface {
	Mode() router.Mode
	Get(ctx context.Context, kind models.Kind, id string) (models.Record, error)
	List(ctx context.Context, kind models.Kind) ([]models.Record, error)
	Create(ctx context.Context, rec models.Record) (models.Record, error)
	Update(ctx context.Context, kind models.Kind, id string, req merge.Request) (*merge.Outcome, error)
	Delete(ctx context.Context, kind models.Kind, id string) error
	SyncNow(ctx context.Context) (*syncer.Result, error)
}

type presenceSender interface {
	SendPresence(editing bool, entityID string) error
	Connected() bool
}

type pendingCounter interface {
	PendingCount(ctx context.Context) (int, error)
}

type App struct {
	config      *config.Config
	logger      logging.Logger
	closers     []io.Closer
	authService services.AuthService
	records     recordRouter
	pending     pendingCounter
	presence    presenceSender

	// background loops start after the first successful login.
	background []func(ctx context.Context)
	startOnce  sync.Once

	reader *bufio.Reader
	outMu  sync.Mutex
	out    io.Writer

	userName string
	loggedIn bool

	syncing atomic.Bool

	mu        sync.Mutex
	announced router.Mode
	noticed   map[journal.Key]bool
}

// NewApp opens the local database and wires the store, the gRPC client,
// the syncer, the router and the push listener together.
func NewApp(c *config.Config) (*App, error) {
	ctx := context.Background()

	for _, path := range []string{c.LogFile, c.DatabasePath} {
		if _, err := filex.EnsureParentDir(path); err != nil {
			return nil, err
		}
	}

	logger, logCloser := logging.NewFileLogger(logging.FileOptions{
		Path:       c.LogFile,
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 28,
		Level:      logging.ParseLevel(c.LogLevel),
	})

	db, err := migrations.Open(ctx, c.DatabasePath)
	if err != nil {
		logger.Error(ctx, "Error initializing database", "error", err)
		_ = logCloser.Close()
		return nil, err
	}

	st := store.New(db)
	if err := st.Init(ctx); err != nil {
		_ = db.Close()
		_ = logCloser.Close()
		return nil, err
	}

	clientID := c.ClientID
	if clientID == "" {
		if clientID, err = services.EnsureClientID(ctx, db); err != nil {
			_ = db.Close()
			_ = logCloser.Close()
			return nil, err
		}
	}

	api, err := client.NewGRPCClient(c.ServerEndpointAddr, clientID)
	if err != nil {
		_ = db.Close()
		_ = logCloser.Close()
		return nil, err
	}

	a := &App{
		config:      c,
		logger:      logger,
		closers:     []io.Closer{db, logCloser},
		authService: services.NewAuthService(api, db),
		pending:     st,
		reader:      bufio.NewReader(os.Stdin),
		out:         os.Stdout,
		announced:   router.ModeOffline,
	}

	sy := syncer.New(st, api, logger,
		syncer.WithTimeout(c.ReplayTimeout),
		syncer.WithConflictFunc(a.resolveConflict),
		syncer.WithProgress(a.progress))

	rt := router.New(st, api, sy, logger, router.Options{
		ProbeInterval: c.OnlineCheckInterval,
		ProbeTimeout:  c.ProbeTimeout,
		CallTimeout:   c.ReplayTimeout,
	})
	rt.OnModeChange(a.modeChanged)

	ls := push.New(c.EventsURL, clientID, api.AccessToken, sy, logger,
		push.WithPresenceHandler(a.presenceChanged))

	a.records = rt
	a.presence = ls
	a.background = []func(context.Context){rt.Run, ls.Run}

	logger.Info(ctx, "Client started", "client_id", clientID, "server", c.ServerEndpointAddr)
	return a, nil
}

// Run logs the user in and serves the REPL until exit.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.Close(ctx)

	a.say("Welcome to CueSync CLI (type 'help' for commands)")
	_ = a.Login(ctx)

	runREPL(ctx, a, a.getStatus, a.reader)
}

// Close releases the client connection, the database and the log file.
func (a *App) Close(ctx context.Context) {
	if a.authService != nil {
		if err := a.authService.Close(ctx); err != nil {
			a.logger.Warn(ctx, "Closing client", "error", err)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
}

func (a *App) startBackground(ctx context.Context) {
	a.startOnce.Do(func() {
		for _, run := range a.background {
			go run(ctx)
		}
	})
}

func (a *App) isLoggedIn() bool {
	return a.loggedIn
}

func (a *App) getStatus() string {
	s := ""
	if a.userName != "" {
		s = a.userName + " "
	}
	if a.records != nil {
		s += string(a.records.Mode())
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

func (a *App) say(args ...any) {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	fmt.Fprintln(a.out, args...)
}

func (a *App) sayf(format string, args ...any) {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	fmt.Fprintf(a.out, format, args...)
}

// modeChanged announces when the client goes online or drops offline.
// Passing through syncing is not announced.
func (a *App) modeChanged(_, to router.Mode) {
	if to == router.ModeSyncing {
		return
	}
	a.mu.Lock()
	changed := a.announced != to
	a.announced = to
	a.mu.Unlock()

	if changed {
		a.sayf("Switched to %s mode\n", to)
	}
}

func (a *App) presenceChanged(e events.Envelope) {
	switch e.Type {
	case events.EditingStart:
		a.sayf("%s is editing %s\n", e.UserName, e.EntityID)
	case events.EditingStop:
		a.sayf("%s stopped editing %s\n", e.UserName, e.EntityID)
	}
}

func (a *App) progress(step, total int, desc string) {
	if a.syncing.Load() {
		a.sayf("[%d/%d] %s\n", step, total, desc)
	}
}

type interactiveKey struct{}

func withInteractive(ctx context.Context) context.Context {
	return context.WithValue(ctx, interactiveKey{}, true)
}

func interactive(ctx context.Context) bool {
	v, _ := ctx.Value(interactiveKey{}).(bool)
	return v
}

var errNeedsDecision = errors.New("conflict waits for an interactive sync")

// resolveConflict asks the user whether to keep their version. Background
// cycles cannot prompt, so they leave the entry pending and tell the user
// once per record.
func (a *App) resolveConflict(ctx context.Context, c syncer.Conflict) (bool, error) {
	if !interactive(ctx) {
		a.noticeConflict(c)
		return false, errNeedsDecision
	}

	a.sayf("Conflict on %s %s\n", c.Kind, c.ID)
	mine, theirs := c.Local.Fields(), c.Authoritative.Fields()
	names := c.Fields
	if len(names) == 0 {
		names = mine.Keys()
	}
	for _, name := range names {
		if mine[name] != theirs[name] {
			a.sayf("  %s: yours %q, server %q\n", name, mine[name], theirs[name])
		}
	}

	answer, err := getSimpleText(a.reader, "Keep your version? [y/N]", a.out)
	if err != nil {
		return false, err
	}

	a.mu.Lock()
	delete(a.noticed, journal.Key{Entity: c.Kind, EntityID: c.ID})
	a.mu.Unlock()
	return yes(answer), nil
}

func (a *App) noticeConflict(c syncer.Conflict) {
	key := journal.Key{Entity: c.Kind, EntityID: c.ID}

	a.mu.Lock()
	if a.noticed == nil {
		a.noticed = make(map[journal.Key]bool)
	}
	seen := a.noticed[key]
	a.noticed[key] = true
	a.mu.Unlock()

	if !seen {
		a.sayf("Your change to %s %s conflicts with the server, run 'sync' to decide\n", c.Kind, c.ID)
	}
}
