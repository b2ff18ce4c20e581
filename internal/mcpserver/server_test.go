package mcpserver

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/blogsync/internal/articles"
	"github.com/starford/blogsync/internal/storage"
	"github.com/starford/blogsync/internal/testutil"
)

func testServer(t *testing.T) (*Server, *storage.SQLite) {
	t.Helper()
	store := testutil.TestStore(t)
	gen := &testutil.Generator{Text: "TITLE: From MCP\nDESCRIPTION: d\nBODY:\ntext\n"}
	svc := articles.NewService(store, gen, articles.Config{
		MarkdownDir: "data/md",
		IndexPath:   "data/json/articles.json",
	}, articles.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	return New(svc, store, "test"), store
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so the handlers are
	// invoked directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_articles":
		result, err = srv.listArticles(ctx, req)
	case "read_article":
		result, err = srv.readArticle(ctx, req)
	case "update_article":
		result, err = srv.updateArticle(ctx, req)
	case "generate_article":
		result, err = srv.generateArticle(ctx, req)
	case "rebuild_index":
		result, err = srv.rebuildIndex(ctx, req)
	case "get_article_contract":
		result, err = srv.getArticleContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestUpdateAndReadArticle(t *testing.T) {
	srv, store := testServer(t)
	testutil.Seed(t, store, map[string]string{"data/md/hello.md": "---\ntitle: Old\n---\nold"})

	r := callTool(t, srv, "update_article", map[string]interface{}{
		"path":        "data/md/hello.md",
		"title":       "Hello",
		"description": "Greeting",
		"content":     "Hi there",
	})
	if r.IsError {
		t.Fatalf("update failed: %s", resultText(r))
	}
	if !strings.HasPrefix(resultText(r), "updated: data/md/hello.md") {
		t.Errorf("update result = %q", resultText(r))
	}

	r = callTool(t, srv, "read_article", map[string]interface{}{"path": "data/md/hello.md"})
	text := resultText(r)
	if !strings.Contains(text, "title: Hello") || !strings.HasSuffix(text, "---\nHi there") {
		t.Errorf("read result = %q", text)
	}

	r = callTool(t, srv, "list_articles", map[string]interface{}{})
	if !strings.Contains(resultText(r), `"title": "Hello"`) {
		t.Errorf("list result = %q", resultText(r))
	}
}

func TestUpdateArticle_MissingArgument(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "update_article", map[string]interface{}{"path": "data/md/a.md"})
	if !r.IsError {
		t.Error("expected error for missing arguments")
	}
}

func TestReadArticleMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_article", map[string]interface{}{"path": "data/md/nope.md"})
	if !r.IsError {
		t.Error("expected error for missing article")
	}
	if resultText(r) != "not found: data/md/nope.md" {
		t.Errorf("error text = %q", resultText(r))
	}
}

func TestGenerateAndRebuild(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "generate_article", map[string]interface{}{})
	if r.IsError || resultText(r) != "generated: data/md/from-mcp.md (From MCP)" {
		t.Fatalf("generate result = %q", resultText(r))
	}

	r = callTool(t, srv, "rebuild_index", map[string]interface{}{})
	if resultText(r) != "index rebuilt: 1 articles" {
		t.Errorf("rebuild result = %q", resultText(r))
	}
}

func TestArticleContract(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_article_contract", nil)
	if !strings.Contains(resultText(r), "Article Format Contract") {
		t.Errorf("contract = %q", resultText(r))
	}

	contents, err := srv.readArticleFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if tc, ok := contents[0].(mcp.TextResourceContents); !ok || tc.URI != ArticleFormatURI {
		t.Errorf("resource = %+v", contents)
	}
}
