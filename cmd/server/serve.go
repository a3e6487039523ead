package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/evening-ritual/internal/api"
	"github.com/ashureev/evening-ritual/internal/config"
	"github.com/ashureev/evening-ritual/internal/evening"
	"github.com/ashureev/evening-ritual/internal/health"
	"github.com/ashureev/evening-ritual/internal/middleware"
	"github.com/ashureev/evening-ritual/internal/sink"
	"github.com/ashureev/evening-ritual/internal/store"
	"github.com/ashureev/evening-ritual/internal/stream"
	"github.com/ashureev/evening-ritual/internal/telemetry"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func (a *app) serve(parent context.Context) error {
	cfg := a.cfg
	slog.Info("Starting server", "port", cfg.Port, "store", cfg.StoreBackend)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.Endpoint, cfg.Telemetry.Enabled)
	if err != nil {
		slog.Error("Failed to initialize tracing", "error", err)
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			slog.Error("Failed to flush traces", "error", err)
		}
	}()
	if cfg.TracingEnabled() {
		slog.Info("Tracing enabled", "endpoint", cfg.Telemetry.Endpoint)
	}

	// Initialize dependencies.
	repo, err := store.Open(cfg.StoreBackend, cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		return err
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(ctx); err != nil {
		slog.Error("Store health check failed", "error", err)
		return err
	}
	slog.Info("Store connected", "backend", cfg.StoreBackend)

	// Initialize services.
	events := sink.NewEventWriter()
	jobs := sink.NewJobQueue()
	svc := evening.NewService(repo, events, jobs, a.logger)
	hub := stream.NewHub(cfg.StreamBuffer, a.logger)

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     newRouter(cfg, repo, svc, hub, a.logger),
		ReadTimeout: cfg.Timeout.Read,
		// Streams are long lived; writes are bounded per frame instead.
		WriteTimeout: 0,
		IdleTimeout:  cfg.Timeout.Idle,
	}

	grpcErr := make(chan error, 1)
	if cfg.GRPCHealthAddr != "" {
		if err := startGRPCHealth(ctx, cfg, repo, a.logger, grpcErr); err != nil {
			return err
		}
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Wait for shutdown signal or a listener failure.
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		slog.Error("Server failed", "error", err)
		return err
	case err := <-grpcErr:
		slog.Error("gRPC health server failed", "error", err)
		return err
	}
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeout.Shutdown)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		return err
	}

	slog.Info("Server stopped successfully", "events_emitted", events.Len(), "jobs_queued", jobs.Len())
	return nil
}

func newRouter(cfg *config.Config, repo store.Repository, svc *evening.Service, hub *stream.Hub, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	api.NewHealthHandler(repo, cfg.Timeout.HealthCheck).RegisterHealth(r)
	api.NewEveningHandler(svc, hub, logger, cfg.MaxRequestBodyBytes, cfg.AllowedOrigins).RegisterRoutes(r)

	return otelhttp.NewHandler(r, "http.server")
}

func startGRPCHealth(ctx context.Context, cfg *config.Config, repo store.Repository, logger *slog.Logger, errCh chan<- error) error {
	lis, err := net.Listen("tcp", cfg.GRPCHealthAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.GRPCHealthAddr, err)
	}

	hs := health.NewServer(repo, 15*time.Second, cfg.Timeout.HealthCheck, logger)
	_ = hs.Check(ctx)
	go func() {
		if err := hs.Serve(ctx, lis); err != nil {
			errCh <- err
		}
	}()
	return nil
}
