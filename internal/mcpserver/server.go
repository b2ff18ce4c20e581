// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes blogsync tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/blogsync/internal/apperr"
	"github.com/starford/blogsync/internal/articles"
	"github.com/starford/blogsync/internal/models"
	"github.com/starford/blogsync/internal/storage"
)

// ArticleFormatURI identifies the article format resource.
const ArticleFormatURI = "blogsync://article-format"

// Articles is the article workflow surface exposed as tools.
type Articles interface {
	ListArticles(ctx context.Context) ([]models.Article, error)
	UpdateArticle(ctx context.Context, in models.ArticleUpdate) (*models.Article, error)
	RebuildIndex(ctx context.Context) ([]models.Article, error)
	GenerateArticle(ctx context.Context) (*articles.GeneratedArticle, error)
}

// Server wraps the MCP server with blogsync tools.
type Server struct {
	mcp   *server.MCPServer
	svc   Articles
	store storage.Provider
}

// New creates a new MCP server with all blogsync tools registered.
func New(svc Articles, store storage.Provider, version string) *Server {
	s := &Server{svc: svc, store: store}

	s.mcp = server.NewMCPServer(
		"blogsync",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_articles",
		mcp.WithDescription("List the article index: title, description, date, lastModified and path of every article."),
	), s.listArticles)

	s.mcp.AddTool(mcp.NewTool("read_article",
		mcp.WithDescription("Read the raw Markdown source, front matter included, of an article."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Store path of the article (e.g. data/md/hello.md)")),
	), s.readArticle)

	s.mcp.AddTool(mcp.NewTool("update_article",
		mcp.WithDescription("Replace the title, description and body of an existing article. "+
			"The article index is refreshed in the same commit. Read the contract first via "+
			"the get_article_contract tool or the "+ArticleFormatURI+" resource."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Store path of the article (must end with .md)")),
		mcp.WithString("title", mcp.Required(), mcp.Description("New title")),
		mcp.WithString("description", mcp.Required(), mcp.Description("New one-line description")),
		mcp.WithString("content", mcp.Required(), mcp.Description("New Markdown body without front matter")),
	), s.updateArticle)

	s.mcp.AddTool(mcp.NewTool("generate_article",
		mcp.WithDescription("Ask the configured text-generation service for a new article and publish it."),
	), s.generateArticle)

	s.mcp.AddTool(mcp.NewTool("rebuild_index",
		mcp.WithDescription("Rebuild the article index from every stored article."),
	), s.rebuildIndex)

	s.mcp.AddTool(mcp.NewTool("get_article_contract",
		mcp.WithDescription("Returns the article format contract. "+
			"Call this before updating articles to ensure correct structure."),
	), s.getArticleContract)

	s.mcp.AddResource(
		mcp.NewResource(ArticleFormatURI, "Article Format Contract",
			mcp.WithResourceDescription("Front matter and Markdown layout every article follows."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readArticleFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listArticles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.svc.ListArticles(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(list, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readArticle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	obj, err := s.store.Fetch(ctx, path)
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(obj.Content)), nil
}

func (s *Server) updateArticle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in models.ArticleUpdate
	for name, dst := range map[string]*string{
		"path":        &in.Path,
		"title":       &in.Title,
		"description": &in.Description,
		"content":     &in.Content,
	} {
		v, err := req.RequireString(name)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		*dst = v
	}

	rec, err := s.svc.UpdateArticle(ctx, in)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("updated: %s (lastModified %s)", rec.Path, rec.LastModified)), nil
}

func (s *Server) generateArticle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, err := s.svc.GenerateArticle(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("generated: %s (%s)", out.Path, out.Title)), nil
}

func (s *Server) rebuildIndex(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.svc.RebuildIndex(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("index rebuilt: %d articles", len(list))), nil
}

func (s *Server) getArticleContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ArticleFormatContract), nil
}

func (s *Server) readArticleFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ArticleFormatURI,
			MIMEType: "text/markdown",
			Text:     ArticleFormatContract,
		},
	}, nil
}
