package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/asrq/internal/config"
	"github.com/phrazzld/asrq/internal/fetch"
	"github.com/phrazzld/asrq/internal/platform/gemini"
	"github.com/phrazzld/asrq/internal/platform/memory"
	"github.com/phrazzld/asrq/internal/platform/migrations"
	"github.com/phrazzld/asrq/internal/platform/postgres"
	"github.com/phrazzld/asrq/internal/platform/sqlite"
	"github.com/phrazzld/asrq/internal/recognition"
	"github.com/phrazzld/asrq/internal/service"
	"github.com/phrazzld/asrq/internal/service/auth"
	"github.com/phrazzld/asrq/internal/store"
	"github.com/phrazzld/asrq/internal/task"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	// db is nil for the memory driver.
	db      *sql.DB
	dialect migrations.Dialect

	jobs  store.JobStore
	queue store.JobQueue

	jobService service.JobService
	// jwtService is nil when authentication is disabled.
	jwtService auth.JWTService
}

// newApplication opens the configured backend, applies pending migrations
// and builds the job service. The recognizer is only built by the worker.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &application{
		config: cfg,
		logger: logger,
	}

	if err := app.openBackend(ctx); err != nil {
		return nil, err
	}

	if app.db != nil {
		if err := migrations.Up(ctx, app.db, app.dialect, logger); err != nil {
			app.cleanup()
			return nil, err
		}
	}

	fetcher, err := fetch.NewHTTPFetcher(fetch.Config{
		DownloadDir:  cfg.Fetch.DownloadDir,
		Timeout:      cfg.Fetch.Timeout,
		MaxRetries:   cfg.Fetch.MaxRetries,
		MaxBytes:     cfg.Fetch.MaxBytes,
		RequireAudio: cfg.Fetch.RequireAudio,
	}, logger)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to initialize fetcher: %w", err)
	}

	app.jobService, err = service.NewJobService(app.jobs, app.queue, fetcher, logger)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to initialize job service: %w", err)
	}

	if cfg.Auth.AuthEnabled() {
		app.jwtService, err = auth.NewJWTService(cfg.Auth)
		if err != nil {
			app.cleanup()
			return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
		}
		logger.Info("bearer authentication enabled", "token_lifetime", cfg.Auth.TokenLifetime)
	}

	return app, nil
}

// openBackend selects the status store and queue by database.driver.
func (app *application) openBackend(ctx context.Context) error {
	cfg := app.config
	log := app.logger

	switch cfg.Database.Driver {
	case "postgres":
		db, err := postgres.Open(ctx, cfg.Database.URL)
		if err != nil {
			return err
		}
		app.db = db
		app.dialect = migrations.DialectPostgres
		app.jobs = postgres.NewPostgresJobStore(db, log)
		app.queue = postgres.NewPostgresJobQueue(db, cfg.Queue.PollInterval, log)

	case "sqlite":
		db, err := sqlite.Open(ctx, cfg.Database.Path)
		if err != nil {
			return err
		}
		app.db = db
		app.dialect = migrations.DialectSQLite
		app.jobs = sqlite.NewJobStore(db, log)
		app.queue = sqlite.NewJobQueue(db, cfg.Queue.PollInterval, log)

	case "memory":
		log.Warn("using the in-memory backend; jobs are lost on exit and not shared between processes")
		app.jobs = memory.NewJobStore()
		app.queue = memory.NewJobQueue()

	default:
		return fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}

	log.Info("job backend ready", "driver", cfg.Database.Driver)
	return nil
}

// newRecognizer builds the configured recognition backend.
func (app *application) newRecognizer(ctx context.Context) (recognition.Recognizer, error) {
	cfg := app.config.Recognition

	switch cfg.Backend {
	case "command":
		return recognition.NewCommandRecognizer(recognition.CommandConfig{
			Command:  cfg.Command,
			Args:     cfg.Args,
			Timeout:  cfg.Timeout,
			ModelDir: cfg.ModelDir,
		}, app.logger)
	case "gemini":
		return gemini.NewRecognizer(ctx, gemini.Config{
			APIKey:     cfg.GeminiAPIKey,
			Model:      cfg.GeminiModel,
			MaxRetries: 3,
		}, app.logger)
	case "static":
		return recognition.NewStaticRecognizer(cfg.StaticText), nil
	default:
		return nil, fmt.Errorf("unsupported recognition backend %q", cfg.Backend)
	}
}

// newTaskRunner checks the recognizer is ready and wires it into a runner.
func (app *application) newTaskRunner(ctx context.Context) (*task.TaskRunner, error) {
	recognizer, err := app.newRecognizer(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize recognizer: %w", err)
	}
	if err := recognition.CheckReady(ctx, recognizer); err != nil {
		return nil, fmt.Errorf("recognizer %s is not ready: %w", app.config.Recognition.Backend, err)
	}

	wcfg := app.config.Worker
	return task.NewTaskRunner(app.jobs, app.queue, recognizer, task.TaskRunnerConfig{
		WorkerCount:           wcfg.Count,
		Backlog:               wcfg.Backlog,
		DequeueTimeout:        app.config.Queue.DequeueTimeout,
		ErrorBackoff:          app.config.Queue.ErrorBackoff,
		StuckJobAge:           wcfg.StuckAfter,
		StuckJobCheckInterval: wcfg.StuckCheckInterval,
	}, app.logger), nil
}

// cleanup releases resources held by the application.
func (app *application) cleanup() {
	if app.db == nil {
		return
	}
	if err := app.db.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		app.logger.Error("failed to close database connection", "error", err)
	}
}
