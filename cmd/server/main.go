// Turtle Soup - multi-session lateral thinking puzzle server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/ztpublic/turtlesoup/internal/api"
	"github.com/ztpublic/turtlesoup/internal/catalog"
	"github.com/ztpublic/turtlesoup/internal/config"
	"github.com/ztpublic/turtlesoup/internal/game"
	"github.com/ztpublic/turtlesoup/internal/identity"
	"github.com/ztpublic/turtlesoup/internal/llm"
	"github.com/ztpublic/turtlesoup/internal/middleware"
	"github.com/ztpublic/turtlesoup/internal/realtime"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	cat, err := catalog.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize puzzle catalog", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := cat.Close(); closeErr != nil {
			slog.Error("Failed to close puzzle catalog", "error", closeErr)
		}
	}()

	if err := cat.Ping(context.Background()); err != nil {
		slog.Error("Catalog health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Puzzle catalog connected", "path", cfg.DBPath)

	seeded, err := catalog.SeedDefaults(context.Background(), cat)
	if err != nil {
		slog.Error("Failed to seed starter puzzles", "error", err)
		os.Exit(1)
	}
	if seeded > 0 {
		slog.Info("Starter puzzles seeded", "count", seeded)
	}

	store := game.NewStore(
		game.WithHistoryLimits(cfg.ChatHistoryLimit, cfg.QuestionHistoryLimit),
	)

	// Gemini client is optional: without a key the game still runs, only
	// judging and the reveal mechanic are off.
	var ai llm.Client
	if cfg.AIEnabled() {
		client, err := llm.NewGeminiClient(context.Background(), cfg.Gemini)
		if err != nil {
			slog.Warn("Failed to connect to Gemini, AI features will be disabled", "error", err)
		} else {
			defer client.Close()
			ai = client
			slog.Info("Gemini client initialized", "chat_model", cfg.Gemini.ChatModel, "embedding_model", cfg.Gemini.EmbeddingModel)
		}
	}
	if ai == nil {
		slog.Info("AI features disabled (GEMINI_API_KEY not set or connection failed)")
	}

	// Initialize handlers.
	hub := realtime.NewHub()
	handler := api.NewHandler(store, cat, hub, ai, cfg)
	wsHandler := realtime.NewHandler(hub, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{"*"}))
	r.Use(identity.Middleware(cfg.IsDevelopment()))

	handler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws", wsHandler.ServeHTTP)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start the idle-session reaper.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reaperDone := game.StartReaper(ctx, store, cfg.SessionTTL, cfg.SweepInterval, func(sessionIDs []string) {
		evictCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		for _, id := range sessionIDs {
			event := realtime.Event{Type: realtime.EventSessionExpired, SessionID: id}
			hub.Broadcast(evictCtx, id, event)
			hub.BroadcastLobby(evictCtx, event)
		}
	})
	slog.Info("Idle session reaper started", "session_ttl", cfg.SessionTTL, "interval", cfg.SweepInterval)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	<-reaperDone
	slog.Info("Server stopped successfully")
}
