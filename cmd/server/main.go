package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/neudev/attemptd/internal/attempt"
	"github.com/neudev/attemptd/internal/auth"
	"github.com/neudev/attemptd/internal/backend"
	"github.com/neudev/attemptd/internal/compiler"
	"github.com/neudev/attemptd/internal/config"
	"github.com/neudev/attemptd/internal/handler"
	"github.com/neudev/attemptd/internal/logger"
	"github.com/neudev/attemptd/internal/model"
	"github.com/neudev/attemptd/internal/repository"
	"github.com/neudev/attemptd/internal/router"
	"github.com/neudev/attemptd/internal/validator"
	"github.com/rs/zerolog"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("store", cfg.StoreDriver).
		Str("api_url", cfg.APIURL).
		Msg("Starting attempt daemon")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Open Local Session Store ──────────────────────────────────────
	store, closeStore, err := repository.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open session store")
	}
	defer closeStore()

	// ─── Attempt Registry ──────────────────────────────────────────────
	// One backend client per identity; one runner connection per attempt.
	registry := attempt.NewRegistry(func(key model.SessionKey, id auth.Identity) *attempt.Manager {
		api := backend.NewClient(cfg.APIURL, id, cfg.HTTPTimeout, log)
		return attempt.NewManager(key, store, api, attempt.Options{
			Runner:       compiler.NewClient(cfg.CompilerURL, log),
			PollInterval: cfg.PollInterval,
			SyncInterval: cfg.SyncInterval,
			Log:          log,
		})
	}, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Attempt: handler.NewAttemptHandler(registry, log),
		WS:      handler.NewWSHandler(registry, log, cfg.AllowedOrigins),
		System:  handler.NewSystemHandler(registry, cfg.StoreDriver),
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(cfg, handlers, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop attempt timers. Local records stay so the attempts resume on restart.
	registry.Shutdown()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
