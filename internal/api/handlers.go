package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/blogsync/internal/apperr"
	"github.com/starford/blogsync/internal/articles"
	"github.com/starford/blogsync/internal/models"
)

// Articles is the article workflow surface the handlers depend on.
type Articles interface {
	ListArticles(ctx context.Context) ([]models.Article, error)
	UpdateArticle(ctx context.Context, in models.ArticleUpdate) (*models.Article, error)
	RebuildIndex(ctx context.Context) ([]models.Article, error)
	RenderArticle(ctx context.Context, path string) (*articles.RenderedArticle, error)
	GenerateArticle(ctx context.Context) (*articles.GeneratedArticle, error)
}

// Handler holds API route handlers.
type Handler struct {
	svc Articles
}

// NewHandler creates a new Handler.
func NewHandler(svc Articles) *Handler {
	return &Handler{svc: svc}
}

// articlePath extracts the article path from the URL wildcard.
// Supports encoded slashes from OpenAPI clients (e.g. data%2Fmd%2Fa.md).
func articlePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListArticles handles GET /api/articles.
//
//	@Summary		List the article index
//	@Tags			articles
//	@Produce		json
//	@Success		200	{array}		Article
//	@Failure		502	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/articles [get]
func (h *Handler) ListArticles(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListArticles(r.Context())
	if err != nil {
		writeError(w, r, "failed to fetch articles", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// UpdateArticle handles POST /api/articles.
//
//	@Summary		Update an article and rebuild the index
//	@Tags			articles
//	@Accept			json
//	@Produce		json
//	@Param			body	body		UpdateArticleRequest	true	"Edited article"
//	@Success		200		{object}	MessageResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/articles [post]
func (h *Handler) UpdateArticle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req UpdateArticleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, "invalid JSON body", fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err))
		return
	}
	if req.Article == nil {
		writeError(w, r, "article is required", fmt.Errorf("%w: missing article object", apperr.ErrInvalidInput))
		return
	}
	if _, err := h.svc.UpdateArticle(r.Context(), *req.Article); err != nil {
		writeError(w, r, "failed to update article", err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Article updated successfully"})
}

// RebuildIndex handles POST /api/articles/rebuild.
//
//	@Summary		Rebuild the article index from the stored documents
//	@Tags			articles
//	@Produce		json
//	@Success		200	{object}	RebuildResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/articles/rebuild [post]
func (h *Handler) RebuildIndex(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.RebuildIndex(r.Context())
	if err != nil {
		writeError(w, r, "failed to rebuild index", err)
		return
	}
	writeJSON(w, http.StatusOK, RebuildResponse{Message: "Index rebuilt", Count: len(list)})
}

// PreviewArticle handles GET /api/articles/preview/*.
//
//	@Summary		Render an article body to HTML
//	@Tags			articles
//	@Produce		json
//	@Param			path	path		string	true	"Article path"
//	@Success		200		{object}	PreviewResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/articles/preview/{path} [get]
func (h *Handler) PreviewArticle(w http.ResponseWriter, r *http.Request) {
	p := articlePath(r)
	if p == "" {
		writeError(w, r, "path is required", fmt.Errorf("%w: empty path", apperr.ErrInvalidInput))
		return
	}
	out, err := h.svc.RenderArticle(r.Context(), p)
	if err != nil {
		writeError(w, r, "failed to render article", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// GenerateArticle handles POST /api/generate-article.
//
//	@Summary		Generate a new article with the text-generation service
//	@Tags			articles
//	@Produce		json
//	@Success		200	{object}	GenerateResponse
//	@Failure		502	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/generate-article [post]
func (h *Handler) GenerateArticle(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.GenerateArticle(r.Context())
	if err != nil {
		writeError(w, r, "failed to generate article", err)
		return
	}
	writeJSON(w, http.StatusOK, GenerateResponse{
		Message:  "Article generated and saved",
		FilePath: out.Path,
		Title:    out.Title,
	})
}
