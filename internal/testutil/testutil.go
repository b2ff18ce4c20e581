// Package testutil provides shared test helpers for content stores and
// text generators.
package testutil

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/starford/blogsync/internal/storage"
)

// TestStore creates a temporary SQLite content store that is automatically
// cleaned up.
func TestStore(t *testing.T) *storage.SQLite {
	t.Helper()
	dbFile, err := os.CreateTemp("", "blogsync-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	store, err := storage.OpenSQLite(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// Seed creates every path → content pair in store.
func Seed(t *testing.T, store storage.Provider, files map[string]string) {
	t.Helper()
	for p, content := range files {
		if _, err := store.Put(context.Background(), p, []byte(content), "seed "+p, ""); err != nil {
			t.Fatalf("seed %s: %v", p, err)
		}
	}
}

// Generator is a scripted text generator.
type Generator struct {
	mu      sync.Mutex
	Text    string
	Err     error
	Prompts []string
}

// Complete records the prompt and returns the scripted response.
func (g *Generator) Complete(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Prompts = append(g.Prompts, prompt)
	return g.Text, g.Err
}
