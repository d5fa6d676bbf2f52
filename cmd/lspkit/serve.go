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
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/nats-io/nats.go/jetstream"

	cfhttp "github.com/Strob0t/lspkit/internal/adapter/http"
	cfnats "github.com/Strob0t/lspkit/internal/adapter/nats"
	cfotel "github.com/Strob0t/lspkit/internal/adapter/otel"
	"github.com/Strob0t/lspkit/internal/adapter/ws"
	"github.com/Strob0t/lspkit/internal/config"
	"github.com/Strob0t/lspkit/internal/logger"
	"github.com/Strob0t/lspkit/internal/middleware"
	"github.com/Strob0t/lspkit/internal/port/status"
)

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, closeLog := logger.New(cfg.Logging)
	defer closeLog.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"addr", cfg.Server.Addr(),
		"log_level", cfg.Logging.Level,
		"work_dir", cfg.Provision.WorkDir,
		"download_concurrency", cfg.Provision.DownloadConcurrency,
	)

	ctx := context.Background()

	// --- Infrastructure ---

	shutdownTelemetry, err := initTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer shutdownTelemetry()

	hub := ws.NewHub()
	defer hub.Close()
	sinks := status.Multi{status.Log{}, hub}

	var js jetstream.JetStream
	if cfg.NATS.URL != "" {
		pub, err := cfnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() { _ = pub.Close() }()
		sinks = append(sinks, pub)
		js = pub.JetStream()
	}

	// --- Services ---

	a, err := buildApp(ctx, cfg, sinks, js)
	if err != nil {
		return err
	}
	defer a.Close()

	handlers := &cfhttp.Handlers{
		Servers:  a.servers,
		Worktree: worktreeOpener(cfg.Worktree),
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(cfhttp.Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(cfotel.HTTPMiddleware(cfg.Telemetry.ServiceName))

	cfhttp.MountRoutes(r, handlers, hub.HandleWS)

	addr := cfg.Server.Addr()

	// No WriteTimeout: a first resolve may spend minutes downloading.
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	reloadCtx, stopReload := context.WithCancel(ctx)
	defer stopReload()
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go a.secrets.ReloadOn(reloadCtx, hup)

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-done:
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
