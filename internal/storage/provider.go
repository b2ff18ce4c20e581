// Package storage defines the content store abstraction: path-addressed
// objects with version tokens, directory listings, per-path change history
// and atomic multi-file commits.
package storage

import (
	"context"

	"github.com/starford/blogsync/internal/models"
)

// Provider is the interface for content store operations.
//
// Errors wrap apperr.ErrNotFound, apperr.ErrConflict or apperr.ErrTransport.
type Provider interface {
	// Fetch returns the object stored at path.
	Fetch(ctx context.Context, path string) (*models.Object, error)
	// FetchDir lists the direct children of the directory at path.
	FetchDir(ctx context.Context, path string) ([]models.DirEntry, error)
	// Put creates the object at path when version is empty, otherwise it
	// replaces it only if version is still current. Returns the new version.
	Put(ctx context.Context, path string, content []byte, message, version string) (string, error)
	// LatestChange returns the RFC 3339 timestamp of the most recent change
	// recorded for path. ok is false when no history is available.
	LatestChange(ctx context.Context, path string) (ts string, ok bool, err error)
	// Commit writes all changes in one atomic commit and returns the new
	// revision id. Either every change is applied or none is.
	Commit(ctx context.Context, changes []models.Change, message string) (string, error)
}
