package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/tendant/simple-upload/pkg/simpleupload"
	"github.com/tendant/simple-upload/pkg/simpleupload/api"
	"github.com/tendant/simple-upload/pkg/simpleupload/config"
	"github.com/tendant/simple-upload/pkg/simpleupload/sessions"
)

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	cfg, err := config.Load(config.WithEnv())
	if err != nil {
		slog.Error("Failed to load configuration", "err", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server error", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.ServerConfig, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := cfg.BuildClient()
	if err != nil {
		return fmt.Errorf("failed to build storage client: %w", err)
	}

	backend, err := cfg.BuildMultipartBackend(ctx, client)
	if err != nil {
		return fmt.Errorf("failed to build multipart backend: %w", err)
	}

	store, closeStore, err := cfg.BuildSessionStore(ctx)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer closeStore()

	routes, err := uploadRoutes(backend != nil)
	if err != nil {
		return err
	}

	opts := []simpleupload.Option{
		simpleupload.WithLogger(logger),
		simpleupload.WithSessionRecorder(store),
	}
	if backend != nil {
		opts = append(opts, simpleupload.WithMultipartCreator(backend))
	}
	handler, err := simpleupload.New(client, cfg.Storage.Bucket, routes, opts...)
	if err != nil {
		return fmt.Errorf("failed to create upload handler: %w", err)
	}

	if backend != nil {
		sweeper, err := sessions.NewSweeper(store, backend,
			sessions.WithMaxAge(cfg.SessionsMaxAge),
			sessions.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("failed to create session sweeper: %w", err)
		}
		go func() {
			if err := sweeper.Run(ctx, cfg.SessionsSweepInterval); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Session sweeper stopped", "err", err)
			}
		}()
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           newRouter(cfg, handler, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Upload server starting",
			"port", cfg.Port,
			"env", cfg.Environment,
			"provider", cfg.Storage.Provider,
			"bucket", cfg.Storage.Bucket,
			"multipart_backend", cfg.MultipartBackend)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exiting")
	return nil
}

func newRouter(cfg *config.ServerConfig, handler *simpleupload.Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	switch {
	case len(cfg.CORSOrigins) > 0:
		r.Use(api.CORS(cfg.CORSOrigins...))
	case cfg.Environment == "development":
		r.Use(api.CORS("*"))
	}

	r.Get("/health", api.Health)

	r.Route("/api", func(r chi.Router) {
		r.Use(api.Recoverer(logger))
		r.Mount("/upload", api.NewUploadHandler(handler, logger).Routes())
	})

	return r
}

func newLogger(cfg *config.ServerConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Environment == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
