package api

import (
	"github.com/starford/blogsync/internal/articles"
	"github.com/starford/blogsync/internal/models"
)

// Article is one record of the article index.
type Article = models.Article

// UpdateArticleRequest is the request body for editing an article.
type UpdateArticleRequest struct {
	Article *models.ArticleUpdate `json:"article" validate:"required"`
}

// MessageResponse is returned by write endpoints.
type MessageResponse struct {
	Message string `json:"message" example:"Article updated successfully" validate:"required"`
}

// RebuildResponse is returned after an index rebuild.
type RebuildResponse struct {
	Message string `json:"message" example:"Index rebuilt" validate:"required"`
	Count   int    `json:"count" example:"12" validate:"required"`
}

// GenerateResponse is returned after an article was generated.
type GenerateResponse struct {
	Message  string `json:"message" example:"Article generated and saved" validate:"required"`
	FilePath string `json:"filePath" example:"data/md/hello-world.md" validate:"required"`
	Title    string `json:"title,omitempty" example:"Hello, World!"`
}

// PreviewResponse is an article body rendered to HTML.
type PreviewResponse = articles.RenderedArticle
