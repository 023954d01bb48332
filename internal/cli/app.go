package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/emiliopalmerini/shinyhunt/internal/adapters/otel"
	"github.com/emiliopalmerini/shinyhunt/internal/adapters/storage"
	"github.com/emiliopalmerini/shinyhunt/internal/adapters/turso"
	"github.com/emiliopalmerini/shinyhunt/internal/config"
	"github.com/emiliopalmerini/shinyhunt/internal/hunt"
	"github.com/emiliopalmerini/shinyhunt/internal/logging"
	"github.com/emiliopalmerini/shinyhunt/internal/migrate"
	"github.com/emiliopalmerini/shinyhunt/internal/odds"
	"github.com/emiliopalmerini/shinyhunt/internal/ports"
	"github.com/emiliopalmerini/shinyhunt/internal/util"
)

// AppContext holds all shared dependencies for CLI commands.
type AppContext struct {
	Config *config.Config
	Logger *slog.Logger

	DB         *sql.DB
	Odds       *odds.Engine
	Backend    ports.PersistenceBackend
	Collection ports.CollectionStore
	Metrics    ports.MetricsExporter

	Timers      *hunt.TimerScheduler
	Registry    *hunt.Registry
	Completion  *hunt.CompletionWorkflow
	Coordinator *hunt.Coordinator
}

// AppOptions overrides process-level defaults, mostly for tests.
type AppOptions struct {
	// DataDir replaces the XDG data directory.
	DataDir string
	// Stderr receives log output and user warnings.
	Stderr io.Writer
}

// NewAppContext opens storage, applies pending migrations and wires the
// hunt engine. The registry starts empty; call Coordinator.Load to
// restore persisted hunts.
func NewAppContext(ctx context.Context, cfg *config.Config, opts AppOptions) (*AppContext, error) {
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	logger, err := logging.New(stderr, cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	dataDir := opts.DataDir
	if dataDir == "" {
		dataDir, err = util.EnsureXDGDataDir()
		if err != nil {
			return nil, err
		}
	}

	table, err := loadOddsTable(cfg.OddsFile)
	if err != nil {
		return nil, err
	}

	db, err := turso.Open(ctx, turso.Options{
		URL:       cfg.Database.URL,
		AuthToken: cfg.Database.AuthToken,
		DataDir:   dataDir,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := migrate.RunAll(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	repos := turso.NewRepositories(db)

	backend := repos.HuntState
	if cfg.Backend == config.BackendFile {
		fileStore, err := storage.NewSnapshotStorageAt(dataDir)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to initialize snapshot storage: %w", err)
		}
		backend = fileStore
	}

	var metrics ports.MetricsExporter = otel.NewNoOpExporter()
	if cfg.Otel.Enabled {
		exporter, err := otel.NewExporter(ctx, otel.Config{
			Enabled:  true,
			Endpoint: cfg.Otel.Endpoint,
			Insecure: cfg.Otel.Insecure,
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to initialize metrics exporter: %w", err)
		}
		metrics = exporter
	}

	engine := odds.NewEngine(table)
	timers := hunt.NewTimerScheduler(hunt.SystemClock())
	completion := hunt.NewCompletionWorkflow(repos.Collection,
		hunt.WithCompletionMetrics(metrics),
		hunt.WithCompletionLogger(logging.WithComponent(logger, "completion")),
	)
	registry := hunt.NewRegistry(timers, engine, completion,
		hunt.WithToggleDebounce(cfg.ToggleDebounce),
		hunt.WithRegistryMetrics(metrics),
		hunt.WithRegistryLogger(logging.WithComponent(logger, "registry")),
	)
	coordinator := hunt.NewCoordinator(backend, registry,
		hunt.WithSaveThrottle(cfg.SaveThrottle),
		hunt.WithTeardownTimeout(cfg.TeardownTimeout),
		hunt.WithNotifier(newWarningNotifier(stderr)),
		hunt.WithCoordinatorMetrics(metrics),
		hunt.WithCoordinatorLogger(logging.WithComponent(logger, "persistence")),
	)
	registry.Subscribe(coordinator)

	return &AppContext{
		Config:      cfg,
		Logger:      logger,
		DB:          db,
		Odds:        engine,
		Backend:     backend,
		Collection:  repos.Collection,
		Metrics:     metrics,
		Timers:      timers,
		Registry:    registry,
		Completion:  completion,
		Coordinator: coordinator,
	}, nil
}

func loadOddsTable(path string) (*odds.Table, error) {
	if path == "" {
		return odds.DefaultTable()
	}
	table, err := odds.LoadTable(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load odds table: %w", err)
	}
	return table, nil
}

// Close waits, at most the teardown timeout, for in-flight saves and
// releases all resources held by the AppContext.
func (a *AppContext) Close(ctx context.Context) error {
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if a.Coordinator != nil {
		timeout := hunt.DefaultTeardownTimeout
		if a.Config != nil && a.Config.TeardownTimeout > 0 {
			timeout = a.Config.TeardownTimeout
		}
		if !a.Coordinator.WaitTimeout(timeout) {
			logger.Debug("in-flight saves still running at exit", slog.Duration("timeout", timeout))
		}
	}
	if a.Timers != nil {
		a.Timers.StopAll()
	}
	if a.Metrics != nil {
		if err := a.Metrics.Close(ctx); err != nil {
			logger.Debug("metrics exporter close failed", slog.Any("error", err))
		}
	}
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}

// openApp loads the configuration from the environment and builds the
// AppContext for a command.
func openApp(ctx context.Context, stderr io.Writer) (*AppContext, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return NewAppContext(ctx, cfg, AppOptions{Stderr: stderr})
}
