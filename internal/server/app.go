// Package server wires the VoiceDrop process: it opens the database, applies
// migrations, builds the services and runs the HTTP and stream servers until
// a termination signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dmitrijs2005/voicedrop/internal/logging"
	"github.com/dmitrijs2005/voicedrop/internal/server/capture"
	"github.com/dmitrijs2005/voicedrop/internal/server/config"
	"github.com/dmitrijs2005/voicedrop/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/voicedrop/internal/server/services"
	"github.com/dmitrijs2005/voicedrop/internal/server/sessions"
	"github.com/dmitrijs2005/voicedrop/internal/server/storage"
	"github.com/dmitrijs2005/voicedrop/internal/server/web"
)

// sessionSweepInterval is how often expired sessions are evicted.
const sessionSweepInterval = time.Minute

// seams for tests
var (
	openDB               = repomanager.Open
	newRepositoryManager = func() repomanager.RepositoryManager { return repomanager.NewPostgresRepositoryManager() }
	newArchiver          = func(ctx context.Context, o storage.S3Options) (capture.Archiver, error) {
		return storage.NewS3Archiver(ctx, o)
	}
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	sessions *sessions.MemoryStore
	web      *web.Server
	stream   *capture.Server
	recorder *capture.Recorder
}

func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	db, err := openDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := newRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var archiver capture.Archiver
	if c.ArchiveEnabled() {
		archiver, err = newArchiver(ctx, storage.S3Options{
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("s3 init error: %w", err)
		}
	}

	store := sessions.NewMemoryStore(c.SessionValidityDuration)
	sm := sessions.NewManager(store, sessions.ManagerOptions{
		Secret:     c.SessionSecret,
		TTL:        c.SessionValidityDuration,
		CookieName: c.SessionCookieName,
		Secure:     c.SessionCookieSecure,
	}, logger)

	us := services.NewUserService(db, rm, c)

	rec := capture.NewRecorder(c.UsersDir, capture.RecorderOptions{
		Format:       capture.DefaultFormat,
		BufferChunks: c.StreamBufferChunks,
		Metrics:      capture.NewMetrics(reg),
		Archiver:     archiver,
	}, logger)

	stream := capture.NewServer(c.EndpointAddrStream, rec, capture.ServerOptions{
		MaxMessageBytes: c.StreamMaxMessageBytes,
		StrictAuth:      c.StrictStreamAuth,
		Resolve: func(r *http.Request) (string, bool) {
			s, ok := sm.Resolve(r)
			if !ok || !s.Authenticated() {
				return "", false
			}
			return s.Email, true
		},
	}, logger)

	return &App{
		config:   c,
		logger:   logger,
		db:       db,
		sessions: store,
		web:      web.NewServer(c.EndpointAddrHTTP, logger, us, sm, reg),
		stream:   stream,
		recorder: rec,
	}, nil
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

// startServer runs one server and cancels the whole app when it fails.
func (app *App) startServer(ctx context.Context, cancelFunc context.CancelFunc, name string, run func(context.Context) error) {
	if err := run(ctx); err != nil {
		app.logger.Error(ctx, "server failed", "server", name, "error", err)
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
		app.sessions.Cleanup(ctx, sessionSweepInterval)
	}()
	go func() {
		defer wg.Done()
		app.startServer(ctx, cancelFunc, "http", app.web.Run)
	}()
	go func() {
		defer wg.Done()
		app.startServer(ctx, cancelFunc, "stream", app.stream.Run)
	}()

	// stream.Run returns only once every open capture has been finalized,
	// so no upload can be queued after this point
	wg.Wait()

	app.recorder.Wait()
	if err := app.db.Close(); err != nil {
		app.logger.Warn(ctx, "db close failed", "error", err)
	}

	app.logger.Info(ctx, "App stopped")
}
