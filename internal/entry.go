// Package internal provides the application wiring and runtime logic for
// each humble command.
package internal

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
	prom "github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/starford/humble/internal/api"
	"github.com/starford/humble/internal/index"
	"github.com/starford/humble/internal/mcpserver"
	"github.com/starford/humble/internal/metrics"
	"github.com/starford/humble/internal/site"
	"github.com/starford/humble/internal/siteservice"
	"github.com/starford/humble/internal/sse"
	"github.com/starford/humble/internal/watch"
)

// reloadThrottle bounds how often connected browsers are told to reload.
const reloadThrottle = 2 * time.Second

// deps holds what every command shares.
type deps struct {
	cfg    *Config
	logger *slog.Logger
	db     *index.DB
}

func setup(opts []Option) (*application, *deps, error) {
	app := newApplication(opts)
	if app.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	// Logs go to stderr; stdout carries command output and MCP stdio.
	logger := slog.New(slog.NewJSONHandler(app.logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("source", cfg.Site.Source),
		slog.String("destination", cfg.Site.Destination),
		slog.String("assets_source", cfg.Site.AssetsSource),
		slog.String("assets_destination", cfg.Site.AssetsDestination),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init index: %w", err)
	}
	return app, &deps{cfg: cfg, logger: logger, db: db}, nil
}

func (rt *deps) service(recorder metrics.Recorder, publisher siteservice.Publisher) *siteservice.Service {
	asm := site.New(rt.cfg.Site.Options(),
		site.WithLogger(rt.logger),
		site.WithRecorder(recorder),
	)
	return siteservice.New(asm, rt.db, publisher, rt.logger)
}

func (rt *deps) watchOptions() watch.Options {
	roots := []string{rt.cfg.Site.Source}
	if a := rt.cfg.Site.AssetsSource; a != "" && a != rt.cfg.Site.Source {
		roots = append(roots, a)
	}
	return watch.Options{
		Roots:    roots,
		Ignore:   append([]string{rt.cfg.Site.Destination, rt.cfg.Site.AssetsDestination}, manifestFiles(rt.cfg.SQLite.Path)...),
		Debounce: rt.cfg.Watch.Debounce,
	}
}

// manifestFiles returns the database file and the sidecars SQLite writes
// next to it.
func manifestFiles(path string) []string {
	return []string{path, path + "-journal", path + "-wal", path + "-shm"}
}

// RunBuild compiles the site once.
func RunBuild(ctx context.Context, opts ...Option) error {
	_, rt, err := setup(opts)
	if err != nil {
		return err
	}
	defer rt.db.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := rt.service(metrics.NoopRecorder{}, nil).Build(ctx); err != nil {
		return fmt.Errorf("build: %w", err)
	}
	return nil
}

// RunWatch builds the site, then rebuilds it whenever the source or asset
// trees change. A failed rebuild is logged and watching continues.
func RunWatch(ctx context.Context, opts ...Option) error {
	_, rt, err := setup(opts)
	if err != nil {
		return err
	}
	defer rt.db.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc := rt.service(metrics.NoopRecorder{}, nil)
	if _, err := svc.Build(ctx); err != nil {
		rt.logger.Warn("initial build failed", slog.String("error", err.Error()))
	}
	return watch.Watch(ctx, rt.watchOptions(), rt.logger, func(ctx context.Context) error {
		_, err := svc.Build(ctx)
		return err
	})
}

// RunServe builds and watches the site while serving the preview API, the
// build event stream, Prometheus metrics and the generated tree.
func RunServe(ctx context.Context, opts ...Option) error {
	_, rt, err := setup(opts)
	if err != nil {
		return err
	}
	defer rt.db.Close()
	cfg, logger := rt.cfg, rt.logger

	reg := prom.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(reg)

	broker := sse.NewBroker(reloadThrottle)
	defer broker.Close()

	svc := rt.service(recorder, broker)
	if _, err := svc.Build(ctx); err != nil {
		logger.Warn("initial build failed", slog.String("error", err.Error()))
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := svc.LastBuild(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"no build"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Handle("/metrics", metrics.HTTPHandler(reg))

	// API routes, including the SSE stream at /api/events.
	r.Mount("/api", api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker))

	// Generated content.
	r.Handle("/*", http.FileServer(http.Dir(cfg.Site.Destination)))

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return watch.Watch(gCtx, rt.watchOptions(), logger, func(ctx context.Context) error {
			_, err := svc.Build(ctx)
			return err
		})
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		// Stop the watcher too when the signal arrived first.
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdin/stdout.
func RunMCP(_ context.Context, opts ...Option) error {
	app, rt, err := setup(opts)
	if err != nil {
		return err
	}
	defer rt.db.Close()

	srv := mcpserver.New(rt.service(metrics.NoopRecorder{}, nil), app.version)
	return srv.ServeStdio()
}

// RunBacklinks prints the pages linking to title in the last recorded build,
// one "source<TAB>count" line each.
func RunBacklinks(_ context.Context, title string, opts ...Option) error {
	app, rt, err := setup(opts)
	if err != nil {
		return err
	}
	defer rt.db.Close()

	refs, err := rt.db.Backlinks(title)
	if err != nil {
		return fmt.Errorf("backlinks: %w", err)
	}
	for _, r := range refs {
		if _, err := fmt.Fprintf(app.out, "%s\t%d\n", r.Source, r.Count); err != nil {
			return err
		}
	}
	return nil
}
