// Package app wires the service graph: storage, the event bus, the
// worker supervisor and the job orchestrator, plus the HTTP handlers
// the server dispatches to.
package app

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fulmen/internal/common"
	"github.com/ternarybob/fulmen/internal/handlers"
	"github.com/ternarybob/fulmen/internal/interfaces"
	"github.com/ternarybob/fulmen/internal/services/artifacts"
	"github.com/ternarybob/fulmen/internal/services/cache"
	"github.com/ternarybob/fulmen/internal/services/discovery"
	"github.com/ternarybob/fulmen/internal/services/events"
	jobsvc "github.com/ternarybob/fulmen/internal/services/jobs"
	"github.com/ternarybob/fulmen/internal/services/maintenance"
	"github.com/ternarybob/fulmen/internal/services/registry"
	"github.com/ternarybob/fulmen/internal/services/status"
	"github.com/ternarybob/fulmen/internal/services/supervisor"
	"github.com/ternarybob/fulmen/internal/services/validation"
	"github.com/ternarybob/fulmen/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Storage
	db      *badger.BadgerDB
	Archive interfaces.ArchiveStorage

	// Core services
	EventService      interfaces.EventService
	CacheService      interfaces.CacheService
	ValidationService interfaces.ValidationService
	Registry          interfaces.JobRegistry
	ArtifactStore     interfaces.ArtifactStore
	ResultCatalog     interfaces.ResultCatalog
	Supervisor        interfaces.WorkerSupervisor
	JobService        interfaces.JobService
	StatusService     interfaces.StatusService
	Maintenance       interfaces.MaintenanceService

	// Log streaming into the logs room
	logStream *handlers.LogStreamWriter

	// HTTP handlers
	APIHandler         *handlers.APIHandler
	WSHandler          *handlers.WebSocketHandler
	DemandHandler      *handlers.DemandHandler
	LoadProfileHandler *handlers.LoadProfileHandler
	PypsaHandler       *handlers.PypsaHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := app.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	logger.Info().
		Str("project_root", cfg.Paths.ProjectRoot).
		Bool("history_enabled", app.Archive != nil).
		Bool("maintenance_enabled", cfg.Maintenance.Enabled).
		Msg("Application initialization complete")

	return app, nil
}

// initStorage opens the job-history database. An empty history dir
// disables persistence; the rest of the system runs without it.
func (a *App) initStorage() error {
	if a.Config.Storage.HistoryDir == "" {
		a.Logger.Warn().Msg("Job history persistence disabled (no history dir configured)")
		return nil
	}

	path := filepath.Join(a.Config.Paths.ProjectRoot, a.Config.Storage.HistoryDir)
	db, err := badger.NewBadgerDB(path, a.Config.Storage.ResetOnStartup, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	a.db = db
	a.Archive = badger.NewArchiveStorage(db, a.Logger)

	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", path).
		Msg("Storage layer initialized")

	return nil
}

// initServices initializes all business services in dependency order
func (a *App) initServices() error {
	// Event bus first so the log stream can attach before anything
	// else starts logging through it.
	a.EventService = events.NewService(a.Config.WebSocket.QueueSize, a.Logger)

	a.logStream = handlers.NewLogStreamWriter(a.EventService, &a.Config.WebSocket)
	a.logStream.Start()
	a.Logger.SetChannel("stream", a.logStream.Channel())

	a.CacheService = cache.NewService(
		common.ParseDurationOr(a.Config.Cache.SweepInterval, 30*time.Second),
		a.Logger,
	)
	a.ValidationService = validation.NewService(a.Logger)
	a.Registry = registry.NewService(a.Logger)

	store, err := artifacts.NewService(a.Config.Paths.ProjectRoot, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize artifact store: %w", err)
	}
	a.ArtifactStore = store
	a.ResultCatalog = discovery.NewService(store, a.Logger)

	manifest, err := supervisor.LoadManifest(a.Config.Workers.ManifestPath)
	if err != nil {
		return fmt.Errorf("failed to load worker manifest: %w", err)
	}
	a.Supervisor = supervisor.NewService(supervisor.Options{
		Cap:         a.Config.Workers.Cap,
		GracePeriod: common.ParseDurationOr(a.Config.Workers.GracePeriod, 0),
		WorkDir:     a.Config.Paths.ProjectRoot,
		Manifest:    manifest,
	}, a.Logger)

	a.JobService = jobsvc.NewService(
		jobsvc.Deps{
			Registry:   a.Registry,
			Supervisor: a.Supervisor,
			Validator:  a.ValidationService,
			Events:     a.EventService,
			Cache:      a.CacheService,
			Store:      a.ArtifactStore,
			Catalog:    a.ResultCatalog,
			Archive:    a.Archive,
		},
		jobsvc.TimeoutsFromConfig(a.Config.Workers),
		jobsvc.TTLsFromConfig(a.Config.Cache),
		a.Logger,
	)

	a.StatusService = status.NewService(a.Registry, a.Supervisor, a.EventService, a.Logger)

	a.Maintenance = maintenance.NewService(a.ResultCatalog, a.Archive, a.Config.Maintenance, a.Logger)
	if a.Config.Maintenance.Enabled {
		if err := a.Maintenance.Start(); err != nil {
			return fmt.Errorf("failed to start maintenance scheduler: %w", err)
		}
		a.Logger.Debug().Msg("Maintenance scheduler started")
	}

	return nil
}

// initHandlers initializes all HTTP handlers
func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler(a.StatusService, a.Supervisor, a.Archive, a.Logger)
	a.WSHandler = handlers.NewWebSocketHandler(a.EventService, a.Logger)
	a.DemandHandler = handlers.NewDemandHandler(a.JobService, a.Logger)
	a.LoadProfileHandler = handlers.NewLoadProfileHandler(a.JobService, a.ResultCatalog, a.Logger)
	a.PypsaHandler = handlers.NewPypsaHandler(a.JobService, a.ResultCatalog, a.Logger)
}

// Close closes all application resources. The job service must already
// be drained via Shutdown before this runs.
func (a *App) Close() error {
	if a.Maintenance != nil && a.Maintenance.IsRunning() {
		a.Maintenance.Stop()
	}

	if a.logStream != nil {
		a.logStream.Stop()
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	if a.CacheService != nil {
		a.CacheService.Close()
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			return fmt.Errorf("failed to close history database: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
