package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aussiebroadwan/dashcore/internal/dashcore/domain"
	"github.com/aussiebroadwan/dashcore/internal/dashcore/metrics"
	"github.com/aussiebroadwan/dashcore/internal/dashcore/service"
	"github.com/aussiebroadwan/dashcore/internal/dashcore/store"
	"github.com/aussiebroadwan/dashcore/internal/dashcore/store/drivers/memory"
	"github.com/aussiebroadwan/dashcore/internal/dashcore/store/drivers/redis"
	"github.com/aussiebroadwan/dashcore/internal/dashcore/store/drivers/sqlite"
	"github.com/aussiebroadwan/dashcore/pkg/cryptox"
	"github.com/aussiebroadwan/dashcore/pkg/dashsdk"
	"github.com/aussiebroadwan/dashcore/pkg/invalidation"
	"github.com/aussiebroadwan/dashcore/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application wires the session core to its storage, the remote API and the
// status server.
type Application struct {
	cfg       Config
	logger    *slog.Logger
	startTime time.Time

	// Core dependencies
	backend       store.Backend
	persistence   *store.Adapter
	invalidations *invalidation.Channel
	client        *dashsdk.SDKClient
	registry      *prometheus.Registry
	metrics       *metrics.Metrics

	// Services
	sessions      *service.SessionMachine
	notifications *service.NotificationSynchronizer
	unsubscribe   func()

	// HTTP server
	server *http.Server
}

// New creates a new Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	logger := slogx.New(slogx.Config{
		Service: "dashcore",
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})
	return newWithLogger(cfg, logger)
}

func newWithLogger(cfg Config, logger *slog.Logger) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{
		cfg:       cfg,
		logger:    logger,
		startTime: time.Now(),
	}

	if err := app.initStorage(); err != nil {
		return nil, err
	}

	app.registry, app.metrics = metrics.NewRegistry()
	app.initClient()
	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run restores the session, starts the status server and blocks until a
// shutdown signal arrives.
func (app *Application) Run() error {
	app.Start(context.Background())

	app.logger.Info("dashcore starting", "port", app.cfg.Port, "version", BuildVersion, "storage", app.cfg.StorageDriver)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Start rehydrates the session and, when nothing usable was stored and
// credentials are configured, signs in.
func (app *Application) Start(ctx context.Context) domain.Session {
	ctx = slogx.WithContext(ctx, app.logger)

	s := app.sessions.Rehydrate(ctx)
	app.logger.Info("session rehydrated", "state", s.State.String())

	if !s.IsAuthenticated && app.cfg.Username != "" {
		var err error
		s, err = app.sessions.Login(ctx, app.cfg.Username, app.cfg.Password)
		if err != nil {
			app.logger.Warn("configured login failed", "username", app.cfg.Username, "error", err)
		}
	}

	return s
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down dashcore...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.close()

	if err := app.backend.Close(); err != nil {
		app.logger.Error("error closing storage", "error", err)
		return err
	}

	app.logger.Info("dashcore stopped")
	return nil
}

// close detaches the services from each other and stops the poller.
func (app *Application) close() {
	app.unsubscribe()
	app.notifications.Close()
	app.sessions.Close()
}

// initStorage opens the configured storage driver.
func (app *Application) initStorage() error {
	switch app.cfg.StorageDriver {
	case "sqlite":
		db, err := sqlite.NewStore(sqlite.DSN(app.cfg.DatabaseFile))
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		if err := db.ApplyMigrations(); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to apply database migrations: %w", err)
		}
		app.logger.Info("database migrations applied successfully")
		app.backend = db

	case "redis":
		rdb := redis.Open(app.cfg.RedisAddr, app.cfg.RedisPassword, app.cfg.RedisDB, app.cfg.RedisPrefix)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx); err != nil {
			_ = rdb.Close()
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		app.backend = rdb

	case "memory":
		app.logger.Warn("using in-memory storage; the session will not survive a restart")
		app.backend = memory.NewStore()
	}

	var backend store.Backend = app.backend
	if app.cfg.StorageKey != "" {
		sealer, err := cryptox.NewSealer([]byte(app.cfg.StorageKey), "dashcore.session")
		if err != nil {
			return fmt.Errorf("failed to derive storage key: %w", err)
		}
		backend = store.Sealed(app.backend, sealer)
		app.logger.Info("stored credentials are encrypted at rest")
	}

	app.persistence = store.NewAdapter(backend, app.logger)
	return nil
}

// initClient builds the API client with request logging and the
// invalidation channel.
func (app *Application) initClient() {
	app.invalidations = invalidation.New()
	app.client = dashsdk.NewSDKClient(app.cfg.APIURL, app.invalidations)
	app.client.HTTPClient = &http.Client{
		Timeout:   app.cfg.HTTPTimeout,
		Transport: slogx.NewTransport(app.logger, http.DefaultTransport),
	}
}

// initServices builds the session machine and the synchronizer and connects
// them.
func (app *Application) initServices() {
	app.sessions = service.NewSessionMachine(
		&service.SDKAuth{Client: app.client},
		app.persistence,
		app.invalidations,
		service.SessionOptions{
			Logger:  app.logger,
			Metrics: app.metrics,
			MaxAge:  app.cfg.SessionMaxAge,
		},
	)

	app.notifications = service.NewNotificationSynchronizer(
		app.client.NewSession(app.sessions.Token),
		service.NotificationOptions{
			Logger:   app.logger,
			Metrics:  app.metrics,
			Interval: app.cfg.NotificationInterval,
			PageSize: app.cfg.NotificationPageSize,
			SyncRate: rate.Limit(app.cfg.NotificationSyncRPS),
		},
	)

	app.client.IsCurrent = func(token string) bool { return token == app.sessions.Token() }
	app.unsubscribe = app.sessions.Subscribe(app.notifications.HandleSession)
	app.notifications.HandleSession(app.sessions.Snapshot())
}

// initHTTP builds the status server.
func (app *Application) initHTTP() {
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           app.routes(),
		ReadHeaderTimeout: 3 * time.Second,
	}
}
