// Package models defines the domain types for blogsync.
package models

// Article is one entry of the JSON article index.
type Article struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Date         string `json:"date"`
	LastModified string `json:"lastModified"`
	Path         string `json:"path"`
}

// ArticleUpdate is the payload accepted by the editor pipeline.
type ArticleUpdate struct {
	Path        string `json:"path"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Content     string `json:"content"`
}

// Object is a stored file together with its version token.
type Object struct {
	Path    string
	Content []byte
	Version string
}

// DirEntry is one item of a directory listing.
type DirEntry struct {
	Name  string
	Path  string
	IsDir bool
}

// Change is one file of a multi-file commit. BaseVersion, when set, must
// equal the path's version at the commit base or the whole commit fails.
type Change struct {
	Path        string
	Content     []byte
	BaseVersion string
	// MustNotExist rejects the commit when Path already exists.
	MustNotExist bool
}
