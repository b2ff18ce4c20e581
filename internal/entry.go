// Package internal provides the main application initialization and runtime logic.
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
	"golang.org/x/sync/errgroup"

	"github.com/starford/blogsync/internal/api"
	"github.com/starford/blogsync/internal/articles"
	"github.com/starford/blogsync/internal/drafts"
	"github.com/starford/blogsync/internal/mcpserver"
	"github.com/starford/blogsync/internal/sse"
)

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := NewLogger(os.Stdout, cfg.App.LogLevel)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_backend", cfg.Store.Backend),
		slog.String("markdown_dir", cfg.Store.MarkdownDir),
		slog.String("index_path", cfg.Store.IndexPath),
		slog.String("index_strategy", cfg.Editor.IndexStrategy),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	deps, err := NewApp(cfg, logger, articles.WithNotifier(broker))
	if err != nil {
		return err
	}
	defer deps.Close()

	apiRouter := api.NewRouter(deps.Articles, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
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
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Publish drafts written to the drafts directory.
	if app.draftsDir != "" {
		g.Go(func() error {
			return drafts.Watch(gCtx, app.draftsDir, cfg.Store.MarkdownDir, deps.Articles, drafts.DefaultDebounce, logger, nil)
		})
	}

	// Start HTTP server.
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

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunWatch publishes drafts from the configured drafts directory until ctx
// is cancelled or the process is signalled.
func RunWatch(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	if app.draftsDir == "" {
		return errors.New("drafts directory is required")
	}
	logger := NewLogger(os.Stderr, app.config.App.LogLevel)
	slog.SetDefault(logger)

	deps, err := NewApp(app.config, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return drafts.Watch(ctx, app.draftsDir, app.config.Store.MarkdownDir, deps.Articles, drafts.DefaultDebounce, logger,
		func(path string) {
			logger.Info("draft published", slog.String("path", path))
		})
}

// RunMCP serves the MCP tools over stdio. Logs go to stderr so stdout stays
// reserved for the protocol.
func RunMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := NewLogger(os.Stderr, app.config.App.LogLevel)
	slog.SetDefault(logger)

	deps, err := NewApp(app.config, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	logger.Info("MCP server starting", slog.String("version", app.version))
	return mcpserver.New(deps.Articles, deps.Store, app.version).ServeStdio()
}
