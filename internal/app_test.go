package internal

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/starford/blogsync/internal/apperr"
)

func TestNewApplication_RequiresConfig(t *testing.T) {
	if _, err := newApplication(nil); !errors.Is(err, errConfigRequired) {
		t.Fatalf("err = %v, want errConfigRequired", err)
	}
	app, err := newApplication([]Option{WithConfig(NewDefaultConfig()), WithDraftsDir("drafts")})
	if err != nil {
		t.Fatal(err)
	}
	if app.version != "dev" || app.draftsDir != "drafts" {
		t.Errorf("application = %+v", app)
	}
}

func TestNewApp_SQLiteBackend(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Store.Backend = BackendSQLite
	cfg.Store.SQLite.Path = filepath.Join(t.TempDir(), "blogsync.db")
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}

	app, err := NewApp(cfg, NewLogger(io.Discard, cfg.App.LogLevel))
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	defer app.Close()

	list, err := app.Articles.ListArticles(context.Background())
	if err != nil {
		t.Fatalf("ListArticles: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("list = %+v", list)
	}
	if _, err := app.Articles.GenerateArticle(context.Background()); !errors.Is(err, apperr.ErrGenerationFailure) {
		t.Errorf("generate without api key err = %v, want ErrGenerationFailure", err)
	}
}

func TestNewApp_UnknownBackend(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Store.Backend = "s3"
	if _, err := NewApp(cfg, NewLogger(io.Discard, cfg.App.LogLevel)); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
