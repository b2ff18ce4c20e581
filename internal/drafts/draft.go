// Package drafts publishes local Markdown drafts to the content store through
// the editor pipeline.
package drafts

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/starford/blogsync/internal/frontmatter"
	"github.com/starford/blogsync/internal/models"
)

// Editor applies an article update.
type Editor interface {
	UpdateArticle(ctx context.Context, in models.ArticleUpdate) (*models.Article, error)
}

// Load reads the draft at file and turns it into an update for the article
// of the same name under markdownDir. The draft must carry a title and a
// description in its front matter.
func Load(file, markdownDir string) (models.ArticleUpdate, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return models.ArticleUpdate{}, fmt.Errorf("drafts: read %s: %w", file, err)
	}
	doc, err := frontmatter.Decode(data)
	if err != nil {
		return models.ArticleUpdate{}, fmt.Errorf("drafts: %s: %w", file, err)
	}
	if err := doc.Require("title", "description"); err != nil {
		return models.ArticleUpdate{}, fmt.Errorf("drafts: %s: %w", file, err)
	}
	return models.ArticleUpdate{
		Path:        path.Join(markdownDir, filepath.Base(file)),
		Title:       doc.String("title"),
		Description: doc.String("description"),
		Content:     doc.Body,
	}, nil
}

// Publish loads the draft at file and runs it through editor.
func Publish(ctx context.Context, editor Editor, file, markdownDir string) (*models.Article, error) {
	in, err := Load(file, markdownDir)
	if err != nil {
		return nil, err
	}
	return editor.UpdateArticle(ctx, in)
}
