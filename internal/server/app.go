// Package server wires Gatekeeper together: it selects storage backends from
// the configuration, starts the gRPC and metrics servers and the notification
// worker, and shuts everything down on a signal.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/logging"
	"github.com/dmitrijs2005/gatekeeper/internal/server/config"
	"github.com/dmitrijs2005/gatekeeper/internal/server/credentials"
	"github.com/dmitrijs2005/gatekeeper/internal/server/enrich"
	"github.com/dmitrijs2005/gatekeeper/internal/server/guard"
	"github.com/dmitrijs2005/gatekeeper/internal/server/metrics"
	"github.com/dmitrijs2005/gatekeeper/internal/server/notify"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/repomanager"
	pgsessions "github.com/dmitrijs2005/gatekeeper/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/users"
	"github.com/dmitrijs2005/gatekeeper/internal/server/services"
	"github.com/dmitrijs2005/gatekeeper/internal/server/sessions"
	"github.com/dmitrijs2005/gatekeeper/internal/server/sessionstore"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/gatekeeper/internal/server/grpc"
)

// sessionSweepInterval is how often expired Postgres sessions are purged.
const sessionSweepInterval = time.Minute

type App struct {
	config      *config.Config
	logger      logging.Logger
	metrics     *metrics.Metrics
	userService *services.UserService
	guard       *guard.Guard
	dispatcher  *notify.Dispatcher
	sweeper     *pgsessions.PostgresRepository
	closers     []io.Closer
}

// openDB is a seam for tests.
var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

// logOutput receives the application log.
var logOutput io.Writer = os.Stdout

func NewApp(c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(logOutput, slog.LevelInfo)

	app := &App{config: c, logger: logger, metrics: metrics.New()}
	ctx := context.Background()

	if err := app.init(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (app *App) init(ctx context.Context) error {
	c := app.config

	var db *sql.DB
	if c.DirectoryBackend == config.BackendPostgres || c.SessionBackend == config.BackendPostgres {
		var err error
		db, err = openDB(c.DatabaseDSN)
		if err != nil {
			return fmt.Errorf("db open error: %w", err)
		}
		app.closers = append(app.closers, db)

		rm := repomanager.NewPostgresRepositoryManager()
		if err := rm.RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("migration error: %w", err)
		}
	}

	var directory users.Repository
	switch c.DirectoryBackend {
	case config.BackendPostgres:
		directory = repomanager.NewPostgresRepositoryManager().Users(db)
	case config.BackendMemory:
		directory = users.NewMemoryRepository()
	default:
		return fmt.Errorf("unknown directory backend %q", c.DirectoryBackend)
	}

	store, err := app.sessionStore(db)
	if err != nil {
		return err
	}

	mgr := sessions.NewManager(store, sessions.Options{
		TTL:     c.SessionTTL,
		Sliding: c.SessionSliding,
		Secret:  []byte(c.SessionSecret),
		Logger:  app.logger,
	})

	locator := enrich.OpenLocator(ctx, c.GeoDBPath, c.GeoHomeCountry, enrich.S3Options{
		Region:       c.S3Region,
		BaseEndpoint: c.S3BaseEndpoint,
		AccessKey:    c.S3AccessKey,
		SecretKey:    c.S3SecretKey,
	}, app.logger)
	app.closers = append(app.closers, locator)

	var sink notify.Sink = notify.NewLogSink(app.logger)
	if c.AMQPURL != "" {
		s, err := notify.DialAMQP(c.AMQPURL, c.NotificationExchange)
		if err != nil {
			return fmt.Errorf("amqp init error: %w", err)
		}
		app.closers = append(app.closers, s)
		sink = s
	}
	app.dispatcher = notify.NewDispatcher(sink, app.logger, notify.WithRecorder(app.metrics))

	app.userService = services.NewUserService(services.UserServiceDeps{
		Users:    directory,
		Sessions: mgr,
		Codec:    credentials.NewCodec(c.PasswordPepper),
		Locator:  locator,
		Notifier: app.dispatcher,
		Recorder: app.metrics,
		Logger:   app.logger,
	})
	app.guard = guard.New(mgr, directory, app.metrics, app.logger)
	return nil
}

func (app *App) sessionStore(db *sql.DB) (sessionstore.Store, error) {
	c := app.config
	switch c.SessionBackend {
	case config.BackendMemory:
		return sessionstore.NewMemory(time.Now), nil
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
		})
		app.closers = append(app.closers, client)
		return sessionstore.NewRedis(client), nil
	case config.BackendPostgres:
		app.sweeper = repomanager.NewPostgresRepositoryManager().Sessions(db)
		return app.sweeper, nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", c.SessionBackend)
	}
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

	s, err := gs.NewgGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.userService, app.guard)

	if err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	} else {

		if err := s.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}
}

func (app *App) startMetricsServer(ctx context.Context, cancelFunc context.CancelFunc) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", app.metrics.Handler())
	srv := &http.Server{
		Addr:              app.config.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	app.logger.Info(ctx, "Starting metrics server", "address", app.config.MetricsAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) sweepSessions(ctx context.Context) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := app.sweeper.DeleteExpired(ctx)
			if err != nil {
				app.logger.Warn(ctx, "session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				app.logger.Debug(ctx, "expired sessions removed", "count", n)
			}
		}
	}
}

// Run serves until ctx is cancelled or a termination signal arrives, then
// drains pending notifications and releases resources.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.dispatcher.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	if app.config.MetricsAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startMetricsServer(ctx, cancelFunc)
		}()
	}

	if app.sweeper != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.sweepSessions(ctx)
		}()
	}

	wg.Wait()

	app.Close()
	app.logger.Info(context.Background(), "App stopped")
}

// Close releases external resources in reverse order of acquisition.
func (app *App) Close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			app.logger.Warn(context.Background(), "close failed", "error", err)
		}
	}
	app.closers = nil
}
