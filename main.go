package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"RestoPOS/app/cache"
	"RestoPOS/app/config"
	"RestoPOS/app/database"
	"RestoPOS/app/events"
	"RestoPOS/app/models"
	"RestoPOS/app/services"
	"RestoPOS/app/websocket"

	"github.com/joho/godotenv"
)

// App struct
type App struct {
	Config        *config.AppConfig
	LoggerService *services.LoggerService
	LocalDB       *database.LocalDB
	Store         *services.Store
	Remote        *database.RemoteSource
	SyncWorker    *services.SyncWorker
	Publisher     *events.Publisher
	Idempotency   *cache.IdempotencyGuard
	WSServer      *websocket.Server
}

// NewApp loads configuration and opens the local store
func NewApp(ctx context.Context) (*App, error) {
	dataDir, err := config.GetDataDir()
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	a := &App{Config: cfg}
	a.LoggerService = services.NewLoggerService(filepath.Join(dataDir, "logs"), cfg.Log.Level, cfg.IsDevelopment())
	a.LoggerService.LogInfo("Starting RestoPOS", "Data directory: "+dataDir, "Logs: "+a.LoggerService.GetLogDirectory())
	if cfg.Log.RetentionDays > 0 {
		if err := a.LoggerService.CleanOldLogs(cfg.Log.RetentionDays); err != nil {
			a.LoggerService.LogWarning("Failed to clean old logs", err.Error())
		}
	}

	a.LocalDB, err = database.OpenLocalDB(cfg.LocalPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open local database: %w", err)
	}
	a.LoggerService.LogInfo("Local database opened", a.LocalDB.Path())

	a.Store = services.NewStore(a.LocalDB, a.LoggerService)
	if err := a.Store.Load(ctx); err != nil {
		return nil, err
	}
	if err := a.seedSettings(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// seedSettings copies the business section of the config on first run
func (a *App) seedSettings(ctx context.Context) error {
	if a.Store.GetSettings().BusinessName != "" {
		return nil
	}
	return a.Store.UpdateSettings(ctx, models.Settings{
		BusinessName: a.Config.Business.Name,
		Currency:     a.Config.Business.Currency,
		TaxRate:      a.Config.Business.TaxRate,
	})
}

// startup wires the optional integrations and starts the background workers
func (a *App) startup(ctx context.Context) {
	cfg := a.Config

	if len(cfg.Kafka.Brokers) > 0 {
		a.LoggerService.LogInfo("Publishing order events to Kafka", "Topic: "+cfg.Kafka.Topic)
		a.Publisher = events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, a.LoggerService)
		a.Store.Subscribe(a.Publisher)
	}

	var deps websocket.Dependencies
	deps.SyncStatus = a.LocalDB

	if cfg.Redis.Addr != "" {
		guard := cache.NewIdempotencyGuard(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			time.Duration(cfg.Redis.TTLSeconds)*time.Second)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := guard.Ping(pingCtx)
		cancel()
		if err != nil {
			a.LoggerService.LogWarning("Redis unavailable, idempotency keys disabled", err.Error())
			guard.Close()
		} else {
			a.Idempotency = guard
			deps.Idempotency = guard
		}
	}

	a.LoggerService.LogInfo("Initializing WebSocket server", fmt.Sprintf("Port: %d", cfg.Server.Port))
	a.WSServer = websocket.NewServer(websocket.Options{
		Port:           cfg.Server.Port,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		PublicURL:      cfg.Server.PublicURL,
		EnableMDNS:     cfg.Server.EnableMDNS,
	}, a.Store, a.LoggerService, deps)
	a.Store.Subscribe(a.WSServer)

	if cfg.Sync.Enabled && cfg.Database.Enabled() {
		remote, err := database.Connect(cfg.Database)
		if err != nil {
			// the POS keeps working locally; the next start retries
			a.LoggerService.LogError("Remote database unavailable, sync disabled", err)
		} else {
			a.Remote = remote
			if !cfg.Sync.SyncTables {
				// this terminal owns the floor plan
				if err := remote.PushTables(ctx, a.Store.GetTables()); err != nil {
					a.LoggerService.LogWarning("Failed to publish tables", err.Error())
				}
			}
			a.SyncWorker = services.NewSyncWorker(a.Store, remote, a.LocalDB, a.LoggerService, services.SyncOptions{
				Interval:   cfg.Sync.Interval(),
				SyncTables: cfg.Sync.SyncTables,
				MaxRetry:   cfg.Sync.MaxRetry(),
			})
			a.SyncWorker.Start(ctx)
		}
	}
}

// shutdown stops the workers and closes every connection
func (a *App) shutdown() {
	a.LoggerService.LogInfo("Application closing")

	if a.SyncWorker != nil {
		a.LoggerService.LogInfo("Stopping sync worker")
		a.SyncWorker.Stop()
	}

	if a.Remote != nil {
		if err := a.Remote.Close(); err != nil {
			a.LoggerService.LogError("Error closing remote database", err)
		}
	}

	if a.Publisher != nil {
		a.LoggerService.LogInfo("Flushing Kafka publisher")
		if err := a.Publisher.Close(); err != nil {
			a.LoggerService.LogError("Error closing Kafka writer", err)
		}
	}

	if a.Idempotency != nil {
		a.Idempotency.Close()
	}

	if a.LocalDB != nil {
		if err := a.LocalDB.ClearSyncLogs(30); err != nil {
			a.LoggerService.LogWarning("Failed to clear sync logs", err.Error())
		}
		if err := a.LocalDB.Close(); err != nil {
			a.LoggerService.LogError("Error closing database", err)
		} else {
			a.LoggerService.LogInfo("Database connection closed successfully")
		}
	}

	a.LoggerService.LogInfo("Application shutdown complete")
	a.LoggerService.Close()
}

func main() {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := NewApp(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err.Error())
		os.Exit(1)
	}
	defer app.LoggerService.RecoverPanic()

	app.startup(ctx)

	if err := app.WSServer.Start(ctx); err != nil {
		app.LoggerService.LogError("WebSocket server error", err)
	}
	app.shutdown()
}
