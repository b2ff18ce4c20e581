package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/blogsync/internal/apperr"
	"github.com/starford/blogsync/internal/checksum"
	"github.com/starford/blogsync/internal/models"
)

const sqliteSchemaSQL = `
CREATE TABLE IF NOT EXISTS objects (
	path    TEXT PRIMARY KEY,
	content BLOB NOT NULL,
	version TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS commits (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	message      TEXT NOT NULL DEFAULT '',
	committed_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS changes (
	commit_id INTEGER NOT NULL REFERENCES commits(id),
	path      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_changes_path ON changes(path);
`

// SQLite implements Provider on a local SQLite database. Every write is a
// transaction, so Put is a real compare-and-swap and Commit is atomic.
type SQLite struct {
	conn *sql.DB
	now  func() time.Time
}

// OpenSQLite opens (or creates) the database at dsn and applies the schema.
func OpenSQLite(dsn string) (*SQLite, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("storage: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: ping: %w", err)
	}
	if _, err := conn.Exec(sqliteSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: apply schema: %w", err)
	}
	return &SQLite{conn: conn, now: time.Now}, nil
}

// SetClock overrides the commit timestamp source.
func (s *SQLite) SetClock(now func() time.Time) {
	s.now = now
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.conn.Close()
}

// Fetch returns the object at p.
func (s *SQLite) Fetch(ctx context.Context, p string) (*models.Object, error) {
	p = cleanPath(p)
	obj := &models.Object{Path: p}
	err := s.conn.QueryRowContext(ctx, `SELECT content, version FROM objects WHERE path = ?`, p).
		Scan(&obj.Content, &obj.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("storage: fetch %s: %w", p, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: fetch %s: %w: %w", p, apperr.ErrTransport, err)
	}
	return obj, nil
}

// FetchDir lists the direct children of dir, sorted by path.
func (s *SQLite) FetchDir(ctx context.Context, dir string) ([]models.DirEntry, error) {
	dir = cleanPath(dir)
	prefix := ""
	if dir != "" {
		prefix = dir + "/"
	}
	rows, err := s.conn.QueryContext(ctx,
		`SELECT path FROM objects WHERE substr(path, 1, ?) = ? ORDER BY path`, len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("storage: list %s: %w: %w", dir, apperr.ErrTransport, err)
	}
	defer rows.Close()

	seenDirs := make(map[string]struct{})
	var out []models.DirEntry
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("storage: list %s: %w: %w", dir, apperr.ErrTransport, err)
		}
		rest := p[len(prefix):]
		if name, _, nested := strings.Cut(rest, "/"); nested {
			if _, ok := seenDirs[name]; ok {
				continue
			}
			seenDirs[name] = struct{}{}
			out = append(out, models.DirEntry{Name: name, Path: prefix + name, IsDir: true})
			continue
		}
		out = append(out, models.DirEntry{Name: rest, Path: p})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: list %s: %w: %w", dir, apperr.ErrTransport, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("storage: list %s: %w", dir, apperr.ErrNotFound)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Put creates or compare-and-swaps a single object.
func (s *SQLite) Put(ctx context.Context, p string, content []byte, message, version string) (string, error) {
	p = cleanPath(p)
	change := models.Change{Path: p, Content: content, BaseVersion: version, MustNotExist: version == ""}
	var newVersion string
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := checkBase(ctx, tx, change); err != nil {
			return err
		}
		_, versions, err := s.apply(ctx, tx, []models.Change{change}, message)
		if err != nil {
			return err
		}
		newVersion = versions[0]
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("storage: put %s: %w", p, err)
	}
	return newVersion, nil
}

// LatestChange returns the timestamp of the newest commit touching p.
func (s *SQLite) LatestChange(ctx context.Context, p string) (string, bool, error) {
	p = cleanPath(p)
	var ts string
	err := s.conn.QueryRowContext(ctx, `
		SELECT c.committed_at
		FROM changes ch JOIN commits c ON c.id = ch.commit_id
		WHERE ch.path = ?
		ORDER BY c.id DESC
		LIMIT 1
	`, p).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("storage: history %s: %w: %w", p, apperr.ErrTransport, err)
	}
	return ts, true, nil
}

// Commit applies all changes in one transaction.
func (s *SQLite) Commit(ctx context.Context, changes []models.Change, message string) (string, error) {
	if len(changes) == 0 {
		return "", fmt.Errorf("storage: commit: no changes: %w", apperr.ErrInvalidInput)
	}
	var ref string
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for i := range changes {
			changes[i].Path = cleanPath(changes[i].Path)
			if err := checkBase(ctx, tx, changes[i]); err != nil {
				return err
			}
		}
		id, _, err := s.apply(ctx, tx, changes, message)
		if err != nil {
			return err
		}
		ref = strconv.FormatInt(id, 10)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("storage: commit: %w", err)
	}
	return ref, nil
}

func (s *SQLite) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %w", apperr.ErrTransport, err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx: %w", apperr.ErrTransport, err)
	}
	return nil
}

// checkBase enforces the change's expectations about the current object.
func checkBase(ctx context.Context, tx *sql.Tx, c models.Change) error {
	var current string
	err := tx.QueryRowContext(ctx, `SELECT version FROM objects WHERE path = ?`, c.Path).Scan(&current)
	exists := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %w", apperr.ErrTransport, err)
	}
	switch {
	case c.MustNotExist && exists:
		return fmt.Errorf("%s already exists: %w", c.Path, apperr.ErrConflict)
	case c.BaseVersion != "" && !exists:
		return fmt.Errorf("%s no longer exists: %w", c.Path, apperr.ErrConflict)
	case c.BaseVersion != "" && c.BaseVersion != current:
		return fmt.Errorf("%s version %s is stale: %w", c.Path, c.BaseVersion, apperr.ErrConflict)
	}
	return nil
}

// apply records one commit containing changes and returns its id and the
// new version of every changed object.
func (s *SQLite) apply(ctx context.Context, tx *sql.Tx, changes []models.Change, message string) (int64, []string, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO commits (message, committed_at) VALUES (?, ?)`,
		message, s.now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %w", apperr.ErrTransport, err)
	}
	commitID, err := res.LastInsertId()
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %w", apperr.ErrTransport, err)
	}

	versions := make([]string, len(changes))
	for i, c := range changes {
		content := c.Content
		if content == nil {
			content = []byte{}
		}
		versions[i] = checksum.BlobSHA(content)
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO objects (path, content, version) VALUES (?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET content = excluded.content, version = excluded.version
		`, c.Path, content, versions[i]); err != nil {
			return 0, nil, fmt.Errorf("%w: %w", apperr.ErrTransport, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO changes (commit_id, path) VALUES (?, ?)`, commitID, c.Path); err != nil {
			return 0, nil, fmt.Errorf("%w: %w", apperr.ErrTransport, err)
		}
	}
	return commitID, versions, nil
}

func cleanPath(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	return path.Clean(p)
}
