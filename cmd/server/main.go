package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/partyquiz/server/internal/config"
	"github.com/partyquiz/server/internal/handlers"
	custommw "github.com/partyquiz/server/internal/middleware"
	"github.com/partyquiz/server/internal/observability"
	"github.com/partyquiz/server/internal/repository"
	"github.com/partyquiz/server/internal/services"
)

const serviceVersion = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Telemetry
	ctx := context.Background()
	telemetry, err := observability.Initialize(ctx, observability.NewConfig("quizrelay-server", serviceVersion))
	if err != nil {
		log.Printf("Warning: telemetry init failed: %v", err)
	}

	// Roster database
	var sessionRepo repository.SessionRepo
	if cfg.UsePostgres() {
		log.Println("Using PostgreSQL roster database")
		db, err := repository.NewPostgresDB(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to initialize PostgreSQL database: %v", err)
		}
		defer db.Close()
		sessionRepo = repository.NewSessionRepository(db)
	} else {
		log.Println("Using SQLite roster database")
		db, err := repository.NewSQLiteDB(cfg.DatabasePath)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite database: %v", err)
		}
		defer db.Close()
		sessionRepo = repository.NewSessionRepository(db)
	}

	// Photo storage collaborator
	photoStore, err := services.NewPhotoStorageService(
		cfg.PhotoStorage.BasePath,
		cfg.PhotoStorage.MaxFileSizeMB,
		cfg.PhotoStorage.MaxEdgePixels,
	)
	if err != nil {
		log.Fatalf("Failed to initialize photo storage: %v", err)
	}

	relayMetrics, err := observability.NewRelayMetrics()
	if err != nil {
		log.Printf("Warning: relay metrics unavailable: %v", err)
		relayMetrics = nil
	}

	// Relay core
	registry := services.NewConnectionRegistry()
	store := services.NewSessionStore(registry, sessionRepo)
	registry.OnClose(store.ClearTransport)
	if err := store.Hydrate(ctx); err != nil {
		log.Printf("Warning: roster hydration failed: %v", err)
	}
	answers := services.NewAnswerBuffer()
	broadcaster := services.NewBroadcastService(registry, store, relayMetrics)
	lifecycle := services.NewLifecycleService(registry, store, broadcaster, photoStore)

	// Handlers
	wsHandler := handlers.NewWebSocketHandler(registry, lifecycle, answers, relayMetrics)
	hostHandler := handlers.NewHostHandler(registry, store, lifecycle, broadcaster, answers)
	healthHandler := handlers.NewHealthHandler()

	// Setup router
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.TracingMiddleware("quizrelay-server"))
	if httpMetrics, err := observability.NewHTTPMetrics(); err == nil {
		r.Use(observability.MetricsMiddleware(httpMetrics))
	}
	r.Use(custommw.HostKeyAuth(cfg.Security.HostKey, cfg.Security.HostKeyHeader))

	// Routes
	r.Get("/health", healthHandler.HealthCheck)
	r.Get("/ws", wsHandler.HandleConnection)
	r.Handle("/photos/*", http.StripPrefix("/photos/", http.FileServer(http.Dir(photoStore.BasePath()))))

	r.Route("/api/host", func(r chi.Router) {
		r.Post("/approve", hostHandler.Approve)
		r.Post("/decline", hostHandler.Decline)
		r.Post("/broadcast", hostHandler.Broadcast)
		r.Get("/teams/pending", hostHandler.PendingTeams)
		r.Get("/players", hostHandler.AllPlayers)
		r.Get("/answers", hostHandler.PendingAnswers)
		r.Get("/stats", hostHandler.Stats)
	})

	// Create server
	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // websocket connections are long-lived
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Quiz relay starting on %s", cfg.ServerAddress)
		log.Printf("Team photo path: %s", cfg.PhotoStorage.BasePath)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			log.Printf("Telemetry shutdown error: %v", err)
		}
	}

	log.Println("Server stopped")
}
