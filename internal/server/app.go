// Package server wires the authoritative store, the gRPC API, the push
// channel and snapshot backups into one process and runs them until a
// termination signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/cuesync/internal/logging"
	"github.com/dmitrijs2005/cuesync/internal/server/backup"
	"github.com/dmitrijs2005/cuesync/internal/server/config"
	"github.com/dmitrijs2005/cuesync/internal/server/hub"
	"github.com/dmitrijs2005/cuesync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/cuesync/internal/server/services"
	_ "github.com/jackc/pgx/v5/stdlib"

	gs "github.com/dmitrijs2005/cuesync/internal/server/grpc"
)

type App struct {
	config        *config.Config
	logger        logging.Logger
	db            *sql.DB
	hub           *hub.Hub
	userService   *services.UserService
	recordService *services.RecordService
	snapshotter   *backup.Snapshotter
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSONLogger(os.Stdout, logging.ParseLevel(c.LogLevel))

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	h := hub.New(c.PresenceTTL, c.PresenceSweepInterval, logger)
	us := services.NewUserService(db, rm, c)
	rs := services.NewRecordService(db, rm, h, logger)
	if err := rs.Init(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("record service init error: %w", err)
	}

	app := &App{config: c, logger: logger, db: db, hub: h, userService: us, recordService: rs}

	if c.BackupInterval > 0 {
		client, err := backup.NewS3Client(ctx, c)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("s3 init error: %w", err)
		}
		app.snapshotter, err = backup.New(rs, client, c, logger)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("backup init error: %w", err)
		}
	}

	return app, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.userService, app.recordService)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startEventsServer(ctx context.Context, cancelFunc context.CancelFunc) {
	app.logger.Info(ctx, "Starting events server", "address", app.config.EndpointAddrHTTP)
	if err := hub.Serve(ctx, app.config.EndpointAddrHTTP, app.hub.Handler(app.userService)); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.hub.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startEventsServer(ctx, cancelFunc)
	}()

	if app.snapshotter != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.snapshotter.Run(ctx)
		}()
	}

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "Closing database", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
