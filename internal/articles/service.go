// Package articles implements the article index workflows: listing, the
// editor pipeline with index rebuild, explicit reconciliation and the
// generator pipeline.
package articles

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/starford/blogsync/internal/apperr"
	"github.com/starford/blogsync/internal/models"
	"github.com/starford/blogsync/internal/storage"
)

// Index maintenance strategies for the editor pipeline.
const (
	StrategyRebuild     = "rebuild"
	StrategyIncremental = "incremental"
)

// Event kinds passed to the Notifier.
const (
	EventUpdated   = "article.updated"
	EventGenerated = "article.generated"
	EventRebuilt   = "index.rebuilt"
)

const defaultConcurrency = 8

// TextGenerator produces free-form text for a prompt.
type TextGenerator interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ChangeEvent describes a committed index change.
type ChangeEvent struct {
	Kind     string `json:"-"`
	Path     string `json:"path"`
	Title    string `json:"title,omitempty"`
	Articles int    `json:"articles"`
}

// Notifier is told about every successful index change.
type Notifier interface {
	Notify(ev ChangeEvent)
}

// Config holds the store layout and pipeline settings.
type Config struct {
	MarkdownDir   string
	IndexPath     string
	IndexStrategy string
	Prompt        string
	MirrorPath    string
	Concurrency   int
}

// Service runs the article pipelines against one content store.
type Service struct {
	store    storage.Provider
	gen      TextGenerator
	cfg      Config
	mirror   *Mirror
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
	md       goldmark.Markdown
	policy   *bluemonday.Policy
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithNotifier registers a change notifier.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service. gen may be nil when generation is disabled.
func NewService(store storage.Provider, gen TextGenerator, cfg Config, opts ...Option) *Service {
	if cfg.IndexStrategy == "" {
		cfg.IndexStrategy = StrategyRebuild
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.Prompt == "" {
		cfg.Prompt = DefaultPrompt
	}
	s := &Service{
		store:  store,
		gen:    gen,
		cfg:    cfg,
		logger: slog.Default(),
		now:    time.Now,
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
		policy: bluemonday.UGCPolicy(),
	}
	if cfg.MirrorPath != "" {
		s.mirror = NewMirror(cfg.MirrorPath)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListArticles returns the index as stored. A missing index is empty.
func (s *Service) ListArticles(ctx context.Context) ([]models.Article, error) {
	list, _, err := s.loadIndex(ctx)
	return list, err
}

// RenderedArticle is an article body rendered to sanitised HTML.
type RenderedArticle struct {
	Path  string `json:"path"`
	Title string `json:"title"`
	HTML  string `json:"html"`
}

// RenderArticle renders the Markdown body of the article at p.
func (s *Service) RenderArticle(ctx context.Context, p string) (*RenderedArticle, error) {
	doc, obj, err := s.fetchDocument(ctx, p)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := s.md.Convert([]byte(doc.Body), &buf); err != nil {
		return nil, fmt.Errorf("articles: render %s: %w", p, err)
	}
	return &RenderedArticle{
		Path:  obj.Path,
		Title: doc.String("title"),
		HTML:  string(s.policy.SanitizeBytes(buf.Bytes())),
	}, nil
}

// loadIndex fetches and decodes the index along with its version. A missing
// index yields an empty list and an empty version.
func (s *Service) loadIndex(ctx context.Context) ([]models.Article, string, error) {
	obj, err := s.store.Fetch(ctx, s.cfg.IndexPath)
	if errors.Is(err, apperr.ErrNotFound) {
		return []models.Article{}, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	list := []models.Article{}
	if len(bytes.TrimSpace(obj.Content)) > 0 {
		if err := json.Unmarshal(obj.Content, &list); err != nil {
			return nil, "", fmt.Errorf("articles: decode index %s: %w: %v", s.cfg.IndexPath, apperr.ErrMalformedDocument, err)
		}
	}
	return list, obj.Version, nil
}

// encodeIndex renders the index as two-space indented JSON.
func encodeIndex(list []models.Article) ([]byte, error) {
	if list == nil {
		list = []models.Article{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(list); err != nil {
		return nil, fmt.Errorf("articles: encode index: %w", err)
	}
	return buf.Bytes(), nil
}

// indexChange builds the commit entry replacing the index at version.
func (s *Service) indexChange(content []byte, version string) models.Change {
	return models.Change{
		Path:         s.cfg.IndexPath,
		Content:      content,
		BaseVersion:  version,
		MustNotExist: version == "",
	}
}

// afterIndexWrite mirrors the committed index locally and notifies listeners.
// The store is authoritative, so a failed mirror write is only logged.
func (s *Service) afterIndexWrite(ctx context.Context, ev ChangeEvent, index []byte) {
	if s.mirror != nil {
		if err := s.mirror.Write(ctx, index); err != nil {
			s.logger.Warn("index mirror write failed",
				slog.String("mirror_path", s.cfg.MirrorPath),
				slog.String("error", err.Error()))
		}
	}
	if s.notifier != nil {
		s.notifier.Notify(ev)
	}
}

func (s *Service) timestamp() (date, stamp string) {
	now := s.now().UTC()
	return now.Format(time.DateOnly), now.Format(time.RFC3339)
}
