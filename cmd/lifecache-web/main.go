package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/scrypster/lifecache/internal/app"
	"github.com/scrypster/lifecache/internal/config"
	"github.com/scrypster/lifecache/internal/server"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("LIFECACHE_CONFIG"), "Path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr, a, err := run(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to start LifeCache: %v", err)
	}
	log.Printf("LifeCache API running at http://%s (storage: %s, delivery: %s, scheduler: %v, backups: %v)",
		addr, cfg.Storage.StorageEngine, a.Channel.Name(), cfg.Scheduler.Enabled, cfg.Backup.Enabled)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")

	// Stop the scheduler first so an in-flight tick can record its outcomes.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := a.Close(shutdownCtx); err != nil {
		log.Printf("Error shutting down: %v", err)
	}

	cancel()
	time.Sleep(500 * time.Millisecond) // Give time for connections to close
}

// run builds and starts the engine and HTTP server. The server stops when
// ctx is cancelled; the caller closes the returned App.
func run(ctx context.Context, cfg *config.Config) (string, *app.App, error) {
	a, err := app.Open(ctx, cfg, cfg.Scheduler.Enabled)
	if err != nil {
		return "", nil, err
	}

	if err := a.Engine.Start(ctx); err != nil {
		_ = a.Close(ctx)
		return "", nil, err
	}

	if err := a.StartBackups(ctx); err != nil {
		_ = a.Close(ctx)
		return "", nil, err
	}

	addr, _, err := server.Start(ctx, cfg, a.Engine)
	if err != nil {
		_ = a.Close(ctx)
		return "", nil, err
	}
	return addr, a, nil
}
