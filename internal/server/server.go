// Package server provides HTTP server initialization and lifecycle management
// for the LifeCache API.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/scrypster/lifecache/internal/config"
	"github.com/scrypster/lifecache/internal/engine"
	"github.com/scrypster/lifecache/internal/notify"
	"github.com/scrypster/lifecache/pkg/types"
	"github.com/scrypster/lifecache/web/handlers"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// NewHandler builds the full route tree: the authenticated /api/ routes,
// the unauthenticated health check and the /ws event stream, wrapped in
// rate limiting and security headers.
func NewHandler(cfg *config.Config, svc handlers.MemoryService, hub *handlers.WebSocketHub) http.Handler {
	apiHandlers := handlers.NewAPIHandlers(svc)

	apiMux := http.NewServeMux()
	apiMux.HandleFunc("GET /api/memories", apiHandlers.ListMemories)
	apiMux.HandleFunc("POST /api/memories", apiHandlers.CreateMemory)
	apiMux.HandleFunc("POST /api/memories/audio", apiHandlers.CreateAudioMemory)
	apiMux.HandleFunc("GET /api/memories/{id}", apiHandlers.GetMemory)
	apiMux.HandleFunc("GET /api/memories/{id}/related", apiHandlers.GetRelated)
	apiMux.HandleFunc("POST /api/memories/{id}/schedule", apiHandlers.ScheduleMemory)
	apiMux.HandleFunc("POST /api/memories/{id}/requeue", apiHandlers.RequeueMemory)
	apiMux.HandleFunc("POST /api/scheduler/tick", apiHandlers.Tick)
	apiMux.HandleFunc("GET /api/books/{owner}", apiHandlers.GetBook)

	mux := http.NewServeMux()

	// Health endpoint, no auth required
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, `{"status":"healthy","version":%q}`, Version)
	})

	mux.Handle("/api/", handlers.RequireAuth(apiMux, cfg))

	// WebSocket endpoint (no auth required - origin validation handles security)
	if hub != nil {
		mux.Handle("/ws", hub)
	}

	rateLimiter := handlers.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
	handler := handlers.RateLimitMiddleware(mux, rateLimiter)
	return handlers.SecurityHeaders(handler)
}

// Wire publishes engine and scheduler events to hub.
func Wire(eng *engine.MemoryEngine, hub *handlers.WebSocketHub) {
	eng.SetOnMemoryCreated(func(rec *types.Record) {
		hub.Publish(handlers.Event{
			Type:     handlers.EventMemoryCreated,
			RecordID: rec.ID,
			Owner:    rec.Owner,
			State:    string(rec.DeliveryState),
		})
	})
	eng.Scheduler().SetOnDelivered(func(rec *types.Record) {
		hub.Publish(handlers.Event{
			Type:     handlers.EventDeliveryCompleted,
			RecordID: rec.ID,
			Owner:    rec.Owner,
			State:    string(rec.DeliveryState),
		})
	})
	eng.Scheduler().SetOnDeliveryFailed(func(rec *types.Record, err error) {
		hub.Publish(handlers.Event{
			Type:     handlers.EventDeliveryFailed,
			RecordID: rec.ID,
			Owner:    rec.Owner,
			State:    string(rec.DeliveryState),
			Error:    err.Error(),
		})
	})
}

// Start initializes and starts the HTTP server.
// Returns the actual address being listened on (useful for testing with port 0)
// and the WebSocketHub carrying engine events and events written by
// lifecachectl into the data directory. The server shuts down when
// ctx is cancelled.
func Start(ctx context.Context, cfg *config.Config, eng *engine.MemoryEngine) (string, *handlers.WebSocketHub, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	actualAddr := listener.Addr().String()

	_, port, _ := net.SplitHostPort(actualAddr)
	wsHub := handlers.NewWebSocketHub(
		net.JoinHostPort(cfg.Server.Host, port),
		net.JoinHostPort("localhost", port),
	)
	go wsHub.Run()
	Wire(eng, wsHub)

	watcher := notify.NewEventWatcher(cfg.Storage.DataPath, func(ev notify.Event) {
		wsHub.Publish(handlers.Event{
			Type:      ev.Type,
			RecordID:  ev.RecordID,
			Owner:     ev.Owner,
			State:     ev.State,
			Error:     ev.Error,
			Timestamp: ev.Time,
		})
	})
	if err := watcher.Start(); err != nil {
		log.Printf("server: lifecachectl events disabled: %v", err)
	}

	server := &http.Server{
		Addr:         addr,
		Handler:      NewHandler(cfg, eng, wsHub),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("server: serve error: %v", err)
		}
	}()

	// Handle graceful shutdown
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("server: shutdown error: %v", err)
		}
		watcher.Stop()
		wsHub.Stop()
	}()

	log.Printf("server: listening on %s", actualAddr)
	return actualAddr, wsHub, nil
}
