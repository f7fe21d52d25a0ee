// newyears25 generation and logging proxy.
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

	"github.com/ashureev/newyears25/internal/api"
	"github.com/ashureev/newyears25/internal/completion"
	"github.com/ashureev/newyears25/internal/config"
	"github.com/ashureev/newyears25/internal/middleware"
	"github.com/ashureev/newyears25/internal/store"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
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

	models, err := config.LoadModels(cfg.ModelsFile)
	if err != nil {
		slog.Error("Failed to load model roster", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "store", cfg.Store.Driver, "models", models.Dual)
	if cfg.UpstreamAPIKey == "" {
		slog.Warn("OPENAI_API_KEY is not set, upstream calls will be unauthenticated")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize dependencies.
	backend, err := store.Open(ctx, cfg.Store)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err, "driver", cfg.Store.Driver)
		os.Exit(1)
	}
	defer func() {
		if closeErr := backend.Close(); closeErr != nil {
			slog.Error("Failed to close store", "error", closeErr)
		}
	}()

	if err := backend.Ping(ctx); err != nil {
		slog.Error("Store health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Store connected", "driver", cfg.Store.Driver)

	// Drivers without native expiry need a sweeper.
	if sweeper, ok := backend.(store.Sweeper); ok {
		store.StartSweeper(ctx, sweeper, cfg.Store.SweepInterval, logger)
	}

	completer := completion.NewClient(completion.Config{
		URL:         cfg.UpstreamURL,
		APIKey:      cfg.UpstreamAPIKey,
		Temperature: models.Temperature,
		Timeout:     cfg.UpstreamTimeout,
	})

	handler := api.NewHandler(backend, completer, models, cfg)

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst, 10*time.Minute)
	limiter.StartEviction(ctx)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	if cfg.TrustProxy {
		// Only behind a proxy that overwrites these headers; the rate limiter keys on RemoteAddr.
		r.Use(chiMiddleware.RealIP)
	}
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(chiMiddleware.Heartbeat("/health"))

	handler.RegisterRoutes(r, middleware.RateLimit(limiter))

	// Generation calls have no deadline by default, so no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

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

	slog.Info("Server stopped successfully")
}
