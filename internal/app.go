package internal

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/starford/blogsync/internal/articles"
	"github.com/starford/blogsync/internal/genai"
	"github.com/starford/blogsync/internal/storage"
)

var errConfigRequired = errors.New("config is required")

// App bundles the components every command needs.
type App struct {
	Config   *Config
	Logger   *slog.Logger
	Store    storage.Provider
	Articles *articles.Service

	closers []func() error
}

// NewLogger returns a JSON logger writing to w at level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewApp opens the configured content store and builds the article service.
func NewApp(cfg *Config, logger *slog.Logger, opts ...articles.Option) (*App, error) {
	if cfg == nil {
		return nil, errConfigRequired
	}
	app := &App{Config: cfg, Logger: logger}

	switch cfg.Store.Backend {
	case BackendGitHub:
		gh, err := storage.NewGitHub(storage.GitHubConfig{
			Token:   cfg.Store.GitHub.Token,
			Owner:   cfg.Store.GitHub.Owner,
			Repo:    cfg.Store.GitHub.Repo,
			Branch:  cfg.Store.GitHub.Branch,
			BaseURL: cfg.Store.GitHub.BaseURL,
		}, nil)
		if err != nil {
			return nil, fmt.Errorf("init github store: %w", err)
		}
		app.Store = gh
	case BackendSQLite:
		db, err := storage.OpenSQLite(cfg.Store.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("init sqlite store: %w", err)
		}
		app.Store = db
		app.closers = append(app.closers, db.Close)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	var gen articles.TextGenerator
	if cfg.Generator.Enabled() {
		client := genai.NewClient(genai.Config{
			APIKey:  cfg.Generator.APIKey,
			BaseURL: cfg.Generator.BaseURL,
			Model:   cfg.Generator.Model,
		}, nil)
		logger.Info("text generation enabled", slog.String("model", client.Model()))
		gen = client
	} else {
		logger.Info("text generation disabled: generator.api_key is empty")
	}

	opts = append([]articles.Option{articles.WithLogger(logger)}, opts...)
	app.Articles = articles.NewService(app.Store, gen, cfg.ArticlesConfig(), opts...)
	return app, nil
}

// Close releases the store.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}
