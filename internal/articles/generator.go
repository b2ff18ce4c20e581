package articles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/blogsync/internal/apperr"
	"github.com/starford/blogsync/internal/frontmatter"
	"github.com/starford/blogsync/internal/models"
)

// MaxIDLength bounds derived article identifiers.
const MaxIDLength = 50

const maxIDSuffix = 100

// DefaultPrompt asks for a labelled response that ParseGenerated understands.
const DefaultPrompt = `You are a professional technical blogger. Write a new blog post.

Requirements:
- Focus on one of: software development, web technologies, programming languages, developer tools, engineering best practices.
- 800 to 1200 words.
- Standard Markdown with section headings (##) and a short summary at the end.
- A compelling title and a description of at most 200 characters.

Reply in exactly this format:

TITLE: <post title>
DESCRIPTION: <post description>
BODY:
<markdown body>`

// GeneratedPost is a parsed text-generation response.
type GeneratedPost struct {
	Title       string
	Description string
	Body        string
}

// GeneratedArticle describes a committed generated article.
type GeneratedArticle struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Path        string `json:"filePath"`
}

// GenerateArticle asks the text generator for a new post, stores it under
// the markdown directory and appends it to the index in one commit.
func (s *Service) GenerateArticle(ctx context.Context) (*GeneratedArticle, error) {
	if s.gen == nil {
		return nil, fmt.Errorf("articles: generate: %w: no text generator configured", apperr.ErrGenerationFailure)
	}
	logger := s.logger.With(slog.String("run_id", uuid.NewString()))

	raw, err := s.gen.Complete(ctx, s.cfg.Prompt)
	if err != nil {
		return nil, err
	}
	post, err := ParseGenerated(raw)
	if err != nil {
		return nil, err
	}
	id := DeriveID(post.Title)
	if id == "" {
		return nil, fmt.Errorf("articles: generate: %w: title %q yields an empty identifier", apperr.ErrGenerationFailure, post.Title)
	}
	filePath, err := s.freePath(ctx, id)
	if err != nil {
		return nil, err
	}

	date, stamp := s.timestamp()
	encoded, err := frontmatter.Encode(&frontmatter.Document{
		FrontMatter: map[string]any{
			"title":       post.Title,
			"description": post.Description,
			"date":        date,
		},
		Body: post.Body,
	})
	if err != nil {
		return nil, fmt.Errorf("articles: encode %s: %w", filePath, err)
	}

	list, indexVersion, err := s.loadIndex(ctx)
	if err != nil {
		return nil, err
	}
	list = append(list, models.Article{
		Title:        post.Title,
		Description:  post.Description,
		Date:         date,
		LastModified: stamp,
		Path:         filePath,
	})
	index, err := encodeIndex(list)
	if err != nil {
		return nil, err
	}

	ref, err := s.store.Commit(ctx, []models.Change{
		{Path: filePath, Content: encoded, MustNotExist: true},
		s.indexChange(index, indexVersion),
	}, "Add new blog post: "+path.Base(filePath))
	if err != nil {
		return nil, err
	}

	logger.Info("article generated",
		slog.String("path", filePath),
		slog.String("title", post.Title),
		slog.String("ref", ref))
	s.afterIndexWrite(ctx, ChangeEvent{Kind: EventGenerated, Path: filePath, Title: post.Title, Articles: len(list)}, index)
	return &GeneratedArticle{Title: post.Title, Description: post.Description, Path: filePath}, nil
}

// freePath returns the first <dir>/<id>.md, <dir>/<id>-2.md, ... that does
// not exist yet.
func (s *Service) freePath(ctx context.Context, id string) (string, error) {
	dir := strings.Trim(s.cfg.MarkdownDir, "/")
	for n := 1; n <= maxIDSuffix; n++ {
		candidate := path.Join(dir, withSuffix(id, n)+".md")
		_, err := s.store.Fetch(ctx, candidate)
		if errors.Is(err, apperr.ErrNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("articles: generate: %w: identifier %q exhausted", apperr.ErrConflict, id)
}

func withSuffix(id string, n int) string {
	if n == 1 {
		return id
	}
	suffix := "-" + strconv.Itoa(n)
	if len(id)+len(suffix) > MaxIDLength {
		id = strings.TrimRight(id[:MaxIDLength-len(suffix)], "-")
	}
	return id + suffix
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// DeriveID turns a title into a path-safe identifier: lowercase ASCII
// letters and digits separated by single hyphens, at most MaxIDLength long.
func DeriveID(title string) string {
	id := strings.Trim(nonAlnum.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if len(id) > MaxIDLength {
		id = strings.TrimRight(id[:MaxIDLength], "-")
	}
	return id
}

// ParseGenerated extracts title, description and body from a generation
// response. It reads the labelled format of DefaultPrompt as well as the
// older positional one: a "# title" heading, a "Description:" line, then
// the body.
func ParseGenerated(raw string) (*GeneratedPost, error) {
	lines := strings.Split(stripFence(strings.ReplaceAll(raw, "\r\n", "\n")), "\n")

	var post GeneratedPost
	i := 0
header:
	for ; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			continue
		}
		if v, ok := label(trimmed, "title", "标题"); ok && post.Title == "" {
			post.Title = v
			continue
		}
		if v, ok := label(trimmed, "description", "描述"); ok && post.Description == "" {
			post.Description = v
			continue
		}
		if v, ok := label(trimmed, "body", "正文"); ok {
			lines[i] = v
			break header
		}
		if post.Title == "" && strings.HasPrefix(trimmed, "# ") {
			post.Title = unquote(strings.TrimSpace(trimmed[2:]))
			continue
		}
		break
	}
	if i < len(lines) {
		post.Body = strings.TrimSpace(strings.Join(lines[i:], "\n"))
	}

	var missing []string
	if post.Title == "" {
		missing = append(missing, "title")
	}
	if post.Description == "" {
		missing = append(missing, "description")
	}
	if post.Body == "" {
		missing = append(missing, "body")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("articles: parse generated text: %w: missing %s in %q",
			apperr.ErrGenerationFailure, strings.Join(missing, ", "), snippet(raw))
	}
	post.Body += "\n"
	return &post, nil
}

// label matches lines such as "TITLE: x", "**Title:** x", "## Title: x" or
// "描述：x" and returns the value.
func label(line string, names ...string) (string, bool) {
	line = strings.ReplaceAll(line, "**", "")
	line = strings.TrimSpace(strings.TrimLeft(line, "#>*_ "))
	for _, name := range names {
		if len(line) < len(name) || !strings.EqualFold(line[:len(name)], name) {
			continue
		}
		rest := strings.TrimSpace(line[len(name):])
		for _, sep := range []string{":", "："} {
			if v, ok := strings.CutPrefix(rest, sep); ok {
				return unquote(strings.TrimSpace(v)), true
			}
		}
	}
	return "", false
}

func unquote(v string) string {
	for _, pair := range [][2]string{{`"`, `"`}, {"'", "'"}, {"[", "]"}, {"“", "”"}} {
		if len(v) >= len(pair[0])+len(pair[1]) && strings.HasPrefix(v, pair[0]) && strings.HasSuffix(v, pair[1]) {
			return strings.TrimSpace(v[len(pair[0]) : len(v)-len(pair[1])])
		}
	}
	return v
}

// stripFence removes a code fence wrapping the whole response.
func stripFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return text
	}
	first, rest, ok := strings.Cut(trimmed, "\n")
	if !ok || strings.Contains(first[3:], "`") {
		return text
	}
	rest = strings.TrimSpace(rest)
	body, ok := strings.CutSuffix(rest, "```")
	if !ok {
		return text
	}
	return body
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > 80 {
		return string(r[:80]) + "..."
	}
	return s
}
