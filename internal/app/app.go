// -----------------------------------------------------------------------
// App - Component wiring and lifecycle
// -----------------------------------------------------------------------

package app

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fornax/internal/common"
	"github.com/ternarybob/fornax/internal/handlers"
	"github.com/ternarybob/fornax/internal/interfaces"
	"github.com/ternarybob/fornax/internal/orchestrator"
	"github.com/ternarybob/fornax/internal/render"
	"github.com/ternarybob/fornax/internal/services/events"
	"github.com/ternarybob/fornax/internal/services/notify"
	"github.com/ternarybob/fornax/internal/services/power"
	"github.com/ternarybob/fornax/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Storage
	DB             *badger.BadgerDB
	HistoryStorage interfaces.HistoryStorage

	// Services
	EventService  interfaces.EventService
	NotifyService interfaces.Notifier
	PowerService  interfaces.PowerManager

	// Render orchestration
	Launcher    *render.Launcher
	Coordinator *orchestrator.Coordinator

	// HTTP handlers
	APIHandler *handlers.APIHandler
	JobHandler *handlers.JobHandler
	WSHandler  *handlers.WebSocketHandler
}

// New wires all components together. Order matters: storage first, then
// services, then the coordinator, then handlers on top.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	a := &App{
		Config: cfg,
		Logger: logger,
	}

	db, err := badger.NewBadgerDB(logger, &cfg.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	a.DB = db
	a.HistoryStorage = badger.NewHistoryStorage(db, cfg.Storage.HistoryLimit, logger)

	a.EventService = events.NewService(logger)
	a.NotifyService = notify.NewService(&cfg.Notify, logger)
	a.PowerService = power.NewService(&cfg.Power, logger)

	a.Launcher = render.NewLauncher(&cfg.Render, logger)
	a.Coordinator = orchestrator.NewCoordinator(
		orchestrator.NewProcessLauncher(a.Launcher),
		a.HistoryStorage,
		a.EventService,
		a.NotifyService,
		a.PowerService,
		cfg,
		logger,
	)

	a.APIHandler = handlers.NewAPIHandler()
	a.JobHandler = handlers.NewJobHandler(a.Coordinator, a.HistoryStorage, logger)
	a.WSHandler = handlers.NewWebSocketHandler(a.EventService, logger, &cfg.WebSocket)

	logger.Info().
		Str("executable", cfg.Render.Executable).
		Str("storage", cfg.Storage.Badger.Path).
		Msg("Application initialized")

	return a, nil
}

// Close releases application resources in reverse wiring order
func (a *App) Close() error {
	if a.Coordinator != nil {
		a.Coordinator.Stop()
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
			return err
		}
	}

	a.Logger.Info().Msg("Application closed")
	return nil
}
