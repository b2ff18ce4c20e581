package articles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"golang.org/x/sync/errgroup"

	"github.com/starford/blogsync/internal/apperr"
	"github.com/starford/blogsync/internal/frontmatter"
	"github.com/starford/blogsync/internal/models"
)

// UpdateArticle rewrites the front matter and body of an existing article
// and writes the refreshed index in the same commit.
func (s *Service) UpdateArticle(ctx context.Context, in models.ArticleUpdate) (*models.Article, error) {
	in.Path = strings.Trim(in.Path, "/")
	if err := s.validateUpdate(in); err != nil {
		return nil, err
	}

	doc, obj, err := s.fetchDocument(ctx, in.Path)
	if err != nil {
		return nil, err
	}

	_, stamp := s.timestamp()
	doc.FrontMatter["title"] = in.Title
	doc.FrontMatter["description"] = in.Description
	doc.FrontMatter["lastModified"] = stamp
	doc.Body = in.Content
	encoded, err := frontmatter.Encode(doc)
	if err != nil {
		return nil, fmt.Errorf("articles: encode %s: %w", in.Path, err)
	}

	edited := models.Article{
		Title:        in.Title,
		Description:  in.Description,
		Date:         doc.String("date"),
		LastModified: stamp,
		Path:         obj.Path,
	}

	var list []models.Article
	var indexVersion string
	if s.cfg.IndexStrategy == StrategyIncremental {
		list, indexVersion, err = s.loadIndex(ctx)
		if err != nil {
			return nil, err
		}
		list = upsert(list, edited)
	} else {
		list, err = s.collect(ctx, map[string]models.Article{obj.Path: edited})
		if err != nil {
			return nil, err
		}
		if indexVersion, err = s.indexVersion(ctx); err != nil {
			return nil, err
		}
	}

	index, err := encodeIndex(list)
	if err != nil {
		return nil, err
	}
	ref, err := s.store.Commit(ctx, []models.Change{
		{Path: obj.Path, Content: encoded, BaseVersion: obj.Version},
		s.indexChange(index, indexVersion),
	}, "Update article: "+in.Title)
	if err != nil {
		return nil, err
	}

	s.logger.Info("article updated",
		slog.String("path", obj.Path),
		slog.String("strategy", s.cfg.IndexStrategy),
		slog.Int("articles", len(list)),
		slog.String("ref", ref))
	s.afterIndexWrite(ctx, ChangeEvent{Kind: EventUpdated, Path: obj.Path, Title: in.Title, Articles: len(list)}, index)
	return &edited, nil
}

// RebuildIndex regenerates the index from every Markdown document in the
// store and overwrites it. It repairs any drift left by external edits.
func (s *Service) RebuildIndex(ctx context.Context) ([]models.Article, error) {
	list, err := s.collect(ctx, nil)
	if err != nil {
		return nil, err
	}
	index, err := encodeIndex(list)
	if err != nil {
		return nil, err
	}
	version, err := s.indexVersion(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Put(ctx, s.cfg.IndexPath, index, "Sync articles", version); err != nil {
		return nil, err
	}

	s.logger.Info("index rebuilt", slog.Int("articles", len(list)))
	s.afterIndexWrite(ctx, ChangeEvent{Kind: EventRebuilt, Path: s.cfg.IndexPath, Articles: len(list)}, index)
	return list, nil
}

// collect builds one index record per Markdown file directly under the
// markdown directory, in listing order. Records in overrides replace the
// stored document for their path.
func (s *Service) collect(ctx context.Context, overrides map[string]models.Article) ([]models.Article, error) {
	entries, err := s.store.FetchDir(ctx, s.cfg.MarkdownDir)
	if errors.Is(err, apperr.ErrNotFound) {
		return []models.Article{}, nil
	}
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, e := range entries {
		if !e.IsDir && strings.HasSuffix(e.Name, ".md") {
			paths = append(paths, e.Path)
		}
	}

	out := make([]models.Article, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, p := range paths {
		if a, ok := overrides[p]; ok {
			out[i] = a
			continue
		}
		g.Go(func() error {
			a, err := s.record(gctx, p)
			if err != nil {
				return err
			}
			out[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// record derives the index entry for the document at p.
func (s *Service) record(ctx context.Context, p string) (models.Article, error) {
	doc, obj, err := s.fetchDocument(ctx, p)
	if err != nil {
		return models.Article{}, err
	}
	if err := doc.Require("title", "description", "date"); err != nil {
		s.logger.Warn("article front matter incomplete",
			slog.String("path", p),
			slog.String("error", err.Error()))
	}

	modified, ok, err := s.store.LatestChange(ctx, p)
	if err != nil {
		return models.Article{}, err
	}
	if !ok {
		modified = obj.Version
	}
	return models.Article{
		Title:        doc.String("title"),
		Description:  doc.String("description"),
		Date:         doc.String("date"),
		LastModified: modified,
		Path:         obj.Path,
	}, nil
}

func (s *Service) fetchDocument(ctx context.Context, p string) (*frontmatter.Document, *models.Object, error) {
	obj, err := s.store.Fetch(ctx, p)
	if err != nil {
		return nil, nil, err
	}
	doc, err := frontmatter.Decode(obj.Content)
	if err != nil {
		return nil, nil, fmt.Errorf("articles: %s: %w", p, err)
	}
	return doc, obj, nil
}

// indexVersion returns the version of the stored index, or "" when there is
// none yet.
func (s *Service) indexVersion(ctx context.Context) (string, error) {
	obj, err := s.store.Fetch(ctx, s.cfg.IndexPath)
	if errors.Is(err, apperr.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return obj.Version, nil
}

func (s *Service) validateUpdate(in models.ArticleUpdate) error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Path, validation.Required, validation.By(s.underMarkdownDir)),
		validation.Field(&in.Title, validation.Required),
		validation.Field(&in.Description, validation.Required),
		validation.Field(&in.Content, validation.Required),
	)
	if err != nil {
		return fmt.Errorf("articles: %w: %v", apperr.ErrInvalidInput, err)
	}
	return nil
}

func (s *Service) underMarkdownDir(value interface{}) error {
	p, _ := value.(string)
	if path.Ext(p) != ".md" {
		return errors.New("must be a .md file")
	}
	if path.Dir(path.Clean(p)) != path.Clean(strings.Trim(s.cfg.MarkdownDir, "/")) {
		return fmt.Errorf("must be directly under %s", s.cfg.MarkdownDir)
	}
	return nil
}

// upsert replaces the entry with a's path or appends a.
func upsert(list []models.Article, a models.Article) []models.Article {
	for i := range list {
		if list[i].Path == a.Path {
			list[i] = a
			return list
		}
	}
	return append(list, a)
}
