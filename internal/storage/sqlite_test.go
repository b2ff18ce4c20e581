package storage

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/starford/blogsync/internal/apperr"
	"github.com/starford/blogsync/internal/checksum"
	"github.com/starford/blogsync/internal/models"
)

func testSQLite(t *testing.T) *SQLite {
	t.Helper()
	f, err := os.CreateTemp("", "blogsync-store-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	s, err := OpenSQLite(f.Name())
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLite_PutAndFetch(t *testing.T) {
	s := testSQLite(t)
	ctx := context.Background()

	v, err := s.Put(ctx, "data/md/a.md", []byte("hello\n"), "add a", "")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if v != checksum.BlobSHA([]byte("hello\n")) {
		t.Errorf("version = %s", v)
	}
	obj, err := s.Fetch(ctx, "data/md/a.md")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(obj.Content) != "hello\n" || obj.Version != v {
		t.Errorf("obj = %+v", obj)
	}
}

func TestSQLite_FetchMissing(t *testing.T) {
	s := testSQLite(t)
	_, err := s.Fetch(context.Background(), "nope.md")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSQLite_PutStaleVersionConflicts(t *testing.T) {
	s := testSQLite(t)
	ctx := context.Background()

	v1, _ := s.Put(ctx, "a.md", []byte("v1"), "create", "")
	if _, err := s.Put(ctx, "a.md", []byte("v2"), "first writer", v1); err != nil {
		t.Fatalf("first update: %v", err)
	}
	_, err := s.Put(ctx, "a.md", []byte("v3"), "second writer", v1)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	obj, _ := s.Fetch(ctx, "a.md")
	if string(obj.Content) != "v2" {
		t.Errorf("content = %q, want first writer's v2", obj.Content)
	}
}

func TestSQLite_CreateExistingConflicts(t *testing.T) {
	s := testSQLite(t)
	ctx := context.Background()
	_, _ = s.Put(ctx, "a.md", []byte("v1"), "create", "")
	if _, err := s.Put(ctx, "a.md", []byte("again"), "create", ""); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestSQLite_FetchDir(t *testing.T) {
	s := testSQLite(t)
	ctx := context.Background()
	for _, p := range []string{"data/md/b.md", "data/md/a.md", "data/md/img/x.png", "data/json/articles.json"} {
		if _, err := s.Put(ctx, p, []byte(p), "seed", ""); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := s.FetchDir(ctx, "data/md")
	if err != nil {
		t.Fatalf("FetchDir: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries = %+v, want 3", entries)
	}
	if entries[0].Path != "data/md/a.md" || entries[1].Path != "data/md/b.md" {
		t.Errorf("entries = %+v", entries)
	}
	if !entries[2].IsDir || entries[2].Name != "img" {
		t.Errorf("entries[2] = %+v, want img dir", entries[2])
	}

	if _, err := s.FetchDir(ctx, "data/md/a.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("FetchDir(file) err = %v, want ErrNotFound", err)
	}
	if _, err := s.FetchDir(ctx, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("FetchDir(missing) err = %v, want ErrNotFound", err)
	}
}

func TestSQLite_LatestChange(t *testing.T) {
	s := testSQLite(t)
	ctx := context.Background()

	clock := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return clock })

	if _, ok, err := s.LatestChange(ctx, "a.md"); err != nil || ok {
		t.Fatalf("LatestChange before history = ok %v err %v", ok, err)
	}

	v, _ := s.Put(ctx, "a.md", []byte("v1"), "create", "")
	clock = clock.Add(time.Hour)
	_, _ = s.Put(ctx, "a.md", []byte("v2"), "update", v)

	ts, ok, err := s.LatestChange(ctx, "a.md")
	if err != nil || !ok {
		t.Fatalf("LatestChange: ok %v err %v", ok, err)
	}
	if ts != "2024-01-01T11:00:00Z" {
		t.Errorf("ts = %s", ts)
	}
}

func TestSQLite_CommitIsAtomic(t *testing.T) {
	s := testSQLite(t)
	ctx := context.Background()
	idxV, _ := s.Put(ctx, "data/json/articles.json", []byte("[]"), "seed", "")

	// Index changed since the caller read it: nothing may be written.
	_, _ = s.Put(ctx, "data/json/articles.json", []byte("[{}]"), "concurrent", idxV)
	_, err := s.Commit(ctx, []models.Change{
		{Path: "data/md/new.md", Content: []byte("new"), MustNotExist: true},
		{Path: "data/json/articles.json", Content: []byte("[1]"), BaseVersion: idxV},
	}, "add post")
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	if _, err := s.Fetch(ctx, "data/md/new.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("orphaned markdown object after failed commit: %v", err)
	}

	cur, _ := s.Fetch(ctx, "data/json/articles.json")
	ref, err := s.Commit(ctx, []models.Change{
		{Path: "data/md/new.md", Content: []byte("new"), MustNotExist: true},
		{Path: "data/json/articles.json", Content: []byte("[1]"), BaseVersion: cur.Version},
	}, "add post")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if ref == "" {
		t.Error("empty ref")
	}
	obj, _ := s.Fetch(ctx, "data/json/articles.json")
	if string(obj.Content) != "[1]" {
		t.Errorf("index = %q", obj.Content)
	}
}
