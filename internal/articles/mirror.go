package articles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/starford/blogsync/internal/models"
)

const mirrorLockRetry = 50 * time.Millisecond

// Mirror keeps a local copy of the committed index. Writers serialise on a
// sibling lock file so several processes can share one mirror path.
type Mirror struct {
	path string
	lock *flock.Flock
}

// NewMirror creates a mirror writing to path.
func NewMirror(path string) *Mirror {
	return &Mirror{path: path, lock: flock.New(path + ".lock")}
}

// Write atomically replaces the mirror: tmp file → fsync → rename.
func (m *Mirror) Write(ctx context.Context, content []byte) error {
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mirror: mkdir: %w", err)
	}

	locked, err := m.lock.TryLockContext(ctx, mirrorLockRetry)
	if err != nil {
		return fmt.Errorf("mirror: acquire lock: %w", err)
	}
	if !locked {
		return errors.New("mirror: lock not acquired")
	}
	defer m.lock.Unlock() //nolint:errcheck

	tmp, err := os.CreateTemp(dir, ".blogsync-tmp-*")
	if err != nil {
		return fmt.Errorf("mirror: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("mirror: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("mirror: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("mirror: close temp: %w", err)
	}
	if err := os.Rename(tmpName, m.path); err != nil {
		return fmt.Errorf("mirror: rename: %w", err)
	}
	success = true
	return nil
}

// Read decodes the mirrored index. A missing mirror yields os.ErrNotExist.
func (m *Mirror) Read() ([]models.Article, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return nil, fmt.Errorf("mirror: read: %w", err)
	}
	var list []models.Article
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("mirror: decode: %w", err)
	}
	return list, nil
}
