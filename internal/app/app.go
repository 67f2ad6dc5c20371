// Package app assembles a LifeCache engine from configuration: the record
// store, the analyzer, the delivery channel, the scheduler and the optional
// online transcriber.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/scrypster/lifecache/internal/analysis"
	"github.com/scrypster/lifecache/internal/backup"
	"github.com/scrypster/lifecache/internal/config"
	"github.com/scrypster/lifecache/internal/delivery"
	"github.com/scrypster/lifecache/internal/engine"
	"github.com/scrypster/lifecache/internal/scheduler"
	"github.com/scrypster/lifecache/internal/storage"
	"github.com/scrypster/lifecache/internal/storage/postgres"
	"github.com/scrypster/lifecache/internal/storage/sqlite"
	"github.com/scrypster/lifecache/internal/transcribe"
)

// App owns everything built by Open. Close releases it in reverse order.
type App struct {
	Config  *config.Config
	Store   storage.RecordStore
	Channel delivery.Channel
	Engine  *engine.MemoryEngine
	Backups *backup.Service // nil until StartBackups
}

// Open builds an engine from cfg. The engine is constructed but not started.
// runScheduler controls whether Start launches the background tick loop.
func Open(ctx context.Context, cfg *config.Config, runScheduler bool) (*App, error) {
	store, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}

	analyzer, err := analysis.New(cfg.Analysis)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create analyzer: %w", err)
	}

	ch, err := delivery.New(ctx, cfg.Delivery)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create delivery channel: %w", err)
	}

	interval, err := cfg.Scheduler.Interval()
	if err != nil {
		_ = delivery.Close(ch)
		_ = store.Close()
		return nil, err
	}
	sched, err := scheduler.New(store, ch, scheduler.Config{TickInterval: interval})
	if err != nil {
		_ = delivery.Close(ch)
		_ = store.Close()
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	opts := []engine.Option{engine.WithSchedulerLoop(runScheduler)}
	if t := NewTranscriber(cfg.Transcription); t != nil {
		opts = append(opts, engine.WithTranscriber(t))
	}

	eng, err := engine.NewMemoryEngine(store, analyzer, sched, opts...)
	if err != nil {
		_ = delivery.Close(ch)
		_ = store.Close()
		return nil, fmt.Errorf("failed to create memory engine: %w", err)
	}

	return &App{Config: cfg, Store: store, Channel: ch, Engine: eng}, nil
}

// OpenStore opens the record store selected by cfg.Storage.
func OpenStore(cfg *config.Config) (storage.RecordStore, error) {
	switch cfg.Storage.StorageEngine {
	case "postgres":
		store, err := postgres.NewRecordStore(cfg.Storage.PostgresDSN, cfg.Analysis.EmotionCategories)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres storage at %s: %w", cfg.Storage.RedactedDSN(), err)
		}
		log.Printf("app: using postgres at %s", cfg.Storage.RedactedDSN())
		return store, nil
	case "sqlite", "":
		if err := os.MkdirAll(cfg.Storage.DataPath, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		store, err := sqlite.NewRecordStore(cfg.Storage.SQLitePath())
		if err != nil {
			return nil, fmt.Errorf("failed to initialize sqlite storage: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: unknown storage engine %q", config.ErrInvalidConfig, cfg.Storage.StorageEngine)
	}
}

// NewTranscriber returns the online transcriber, or nil when online
// speech-to-text is not allowed.
func NewTranscriber(cfg config.TranscriptionConfig) transcribe.Transcriber {
	if !cfg.AllowOnline {
		return nil
	}
	timeout, err := cfg.RequestTimeout()
	if err != nil {
		log.Printf("app: %v, using default transcription timeout", err)
		timeout = 0
	}
	return transcribe.NewHTTPTranscriber(transcribe.HTTPConfig{
		APIKey:   cfg.APIKey,
		Model:    cfg.Model,
		BaseURL:  cfg.URL,
		Language: cfg.Language,
		Timeout:  timeout,
	})
}

// NewBackupService builds the snapshot service for the SQLite store.
func NewBackupService(cfg *config.Config) (*backup.Service, error) {
	if cfg.Storage.StorageEngine != "sqlite" {
		return nil, fmt.Errorf("%w: backups require the sqlite storage engine", config.ErrInvalidConfig)
	}
	interval, err := cfg.Backup.SnapshotInterval()
	if err != nil {
		return nil, err
	}
	return backup.New(backup.Config{
		DBPath:   cfg.Storage.SQLitePath(),
		Dir:      cfg.Backup.Dir,
		Interval: interval,
		Verify:   cfg.Backup.Verify,
		Retention: backup.Retention{
			Hourly:  cfg.Backup.KeepHourly,
			Daily:   cfg.Backup.KeepDaily,
			Weekly:  cfg.Backup.KeepWeekly,
			Monthly: cfg.Backup.KeepMonthly,
		},
	})
}

// StartBackups starts periodic snapshots when cfg.Backup.Enabled is set.
func (a *App) StartBackups(ctx context.Context) error {
	if !a.Config.Backup.Enabled {
		return nil
	}
	svc, err := NewBackupService(a.Config)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return err
	}
	a.Backups = svc
	return nil
}

// Close stops backups and shuts down the engine if it is running, then
// closes the delivery channel and the store.
func (a *App) Close(ctx context.Context) error {
	if a.Backups != nil {
		a.Backups.Stop()
	}

	var errs []error
	if err := a.Engine.Shutdown(ctx); err != nil && !errors.Is(err, engine.ErrNotStarted) {
		errs = append(errs, err)
	}
	if err := delivery.Close(a.Channel); err != nil {
		errs = append(errs, err)
	}
	if err := a.Store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
