package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"

	"github.com/starford/blogsync/internal/apperr"
	"github.com/starford/blogsync/internal/models"
)

// GitHubConfig addresses one branch of one repository.
type GitHubConfig struct {
	Token   string
	Owner   string
	Repo    string
	Branch  string
	BaseURL string // API root; empty means api.github.com
}

// GitHub implements Provider on the GitHub contents and git data APIs.
type GitHub struct {
	client *github.Client
	owner  string
	repo   string
	branch string
}

// NewGitHub creates a GitHub-backed provider. httpClient may be nil.
func NewGitHub(cfg GitHubConfig, httpClient *http.Client) (*GitHub, error) {
	client := github.NewClient(httpClient)
	if cfg.Token != "" {
		client = client.WithAuthToken(cfg.Token)
	}
	if cfg.BaseURL != "" {
		u, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("storage: github base url: %w", err)
		}
		client.BaseURL = u
	}
	branch := cfg.Branch
	if branch == "" {
		branch = "main"
	}
	return &GitHub{client: client, owner: cfg.Owner, repo: cfg.Repo, branch: branch}, nil
}

// Fetch returns the file at p on the configured branch.
func (g *GitHub) Fetch(ctx context.Context, p string) (*models.Object, error) {
	p = cleanPath(p)
	file, _, _, err := g.client.Repositories.GetContents(ctx, g.owner, g.repo, p,
		&github.RepositoryContentGetOptions{Ref: g.branch})
	if err != nil {
		return nil, g.wrap("fetch "+p, err, false)
	}
	if file == nil {
		return nil, fmt.Errorf("storage: fetch %s: is a directory: %w", p, apperr.ErrNotFound)
	}

	var content []byte
	if file.GetEncoding() == "none" {
		// Files over 1 MB come back without inline content.
		content, _, err = g.client.Git.GetBlobRaw(ctx, g.owner, g.repo, file.GetSHA())
		if err != nil {
			return nil, g.wrap("fetch blob "+p, err, false)
		}
	} else {
		text, err := file.GetContent()
		if err != nil {
			return nil, fmt.Errorf("storage: fetch %s: decode: %w: %w", p, apperr.ErrTransport, err)
		}
		content = []byte(text)
	}
	return &models.Object{Path: file.GetPath(), Content: content, Version: file.GetSHA()}, nil
}

// FetchDir lists the directory at p.
func (g *GitHub) FetchDir(ctx context.Context, p string) ([]models.DirEntry, error) {
	p = cleanPath(p)
	_, dir, _, err := g.client.Repositories.GetContents(ctx, g.owner, g.repo, p,
		&github.RepositoryContentGetOptions{Ref: g.branch})
	if err != nil {
		return nil, g.wrap("list "+p, err, false)
	}
	if dir == nil {
		return nil, fmt.Errorf("storage: list %s: not a directory: %w", p, apperr.ErrNotFound)
	}
	out := make([]models.DirEntry, 0, len(dir))
	for _, item := range dir {
		out = append(out, models.DirEntry{
			Name:  item.GetName(),
			Path:  item.GetPath(),
			IsDir: item.GetType() == "dir",
		})
	}
	return out, nil
}

// Put creates or updates a single file through the contents API.
func (g *GitHub) Put(ctx context.Context, p string, content []byte, message, version string) (string, error) {
	p = cleanPath(p)
	opts := &github.RepositoryContentFileOptions{
		Message: github.String(message),
		Content: content,
		Branch:  github.String(g.branch),
	}

	var (
		resp *github.RepositoryContentResponse
		err  error
	)
	if version == "" {
		resp, _, err = g.client.Repositories.CreateFile(ctx, g.owner, g.repo, p, opts)
	} else {
		opts.SHA = github.String(version)
		resp, _, err = g.client.Repositories.UpdateFile(ctx, g.owner, g.repo, p, opts)
	}
	if err != nil {
		return "", g.wrap("put "+p, err, true)
	}
	return resp.GetContent().GetSHA(), nil
}

// LatestChange returns the committer date of the newest commit touching p.
func (g *GitHub) LatestChange(ctx context.Context, p string) (string, bool, error) {
	p = cleanPath(p)
	commits, _, err := g.client.Repositories.ListCommits(ctx, g.owner, g.repo, &github.CommitsListOptions{
		SHA:         g.branch,
		Path:        p,
		ListOptions: github.ListOptions{PerPage: 1},
	})
	if err != nil {
		werr := g.wrap("history "+p, err, false)
		if errors.Is(werr, apperr.ErrNotFound) {
			return "", false, nil
		}
		return "", false, werr
	}
	if len(commits) == 0 {
		return "", false, nil
	}
	date := commits[0].GetCommit().GetCommitter().GetDate()
	if date.IsZero() {
		return "", false, nil
	}
	return date.UTC().Format(time.RFC3339), true, nil
}

// Commit writes all changes as one commit on top of the branch head and
// fast-forwards the branch to it. A branch that moved in the meantime makes
// the ref update fail, which is reported as a conflict.
func (g *GitHub) Commit(ctx context.Context, changes []models.Change, message string) (string, error) {
	if len(changes) == 0 {
		return "", fmt.Errorf("storage: commit: no changes: %w", apperr.ErrInvalidInput)
	}

	ref, _, err := g.client.Git.GetRef(ctx, g.owner, g.repo, "heads/"+g.branch)
	if err != nil {
		return "", g.wrap("commit: get ref", err, false)
	}
	baseSHA := ref.GetObject().GetSHA()
	base, _, err := g.client.Git.GetCommit(ctx, g.owner, g.repo, baseSHA)
	if err != nil {
		return "", g.wrap("commit: get base commit", err, false)
	}

	entries := make([]*github.TreeEntry, 0, len(changes))
	for _, c := range changes {
		c.Path = cleanPath(c.Path)
		if err := g.checkBase(ctx, c, baseSHA); err != nil {
			return "", fmt.Errorf("storage: commit: %w", err)
		}
		blob, _, err := g.client.Git.CreateBlob(ctx, g.owner, g.repo, &github.Blob{
			Content:  github.String(base64.StdEncoding.EncodeToString(c.Content)),
			Encoding: github.String("base64"),
		})
		if err != nil {
			return "", g.wrap("commit: create blob "+c.Path, err, false)
		}
		entries = append(entries, &github.TreeEntry{
			Path: github.String(c.Path),
			Mode: github.String("100644"),
			Type: github.String("blob"),
			SHA:  blob.SHA,
		})
	}

	tree, _, err := g.client.Git.CreateTree(ctx, g.owner, g.repo, base.GetTree().GetSHA(), entries)
	if err != nil {
		return "", g.wrap("commit: create tree", err, false)
	}
	commit, _, err := g.client.Git.CreateCommit(ctx, g.owner, g.repo, &github.Commit{
		Message: github.String(message),
		Tree:    tree,
		Parents: []*github.Commit{{SHA: github.String(baseSHA)}},
	}, nil)
	if err != nil {
		return "", g.wrap("commit: create commit", err, false)
	}
	_, _, err = g.client.Git.UpdateRef(ctx, g.owner, g.repo, &github.Reference{
		Ref:    github.String("refs/heads/" + g.branch),
		Object: &github.GitObject{SHA: commit.SHA},
	}, false)
	if err != nil {
		return "", g.wrap("commit: update ref", err, true)
	}
	return commit.GetSHA(), nil
}

// checkBase compares the change's expectations with the file at baseSHA.
func (g *GitHub) checkBase(ctx context.Context, c models.Change, baseSHA string) error {
	if c.BaseVersion == "" && !c.MustNotExist {
		return nil
	}
	file, _, _, err := g.client.Repositories.GetContents(ctx, g.owner, g.repo, c.Path,
		&github.RepositoryContentGetOptions{Ref: baseSHA})
	exists := err == nil && file != nil
	if err != nil {
		if werr := g.wrap("check "+c.Path, err, false); !errors.Is(werr, apperr.ErrNotFound) {
			return werr
		}
	}
	switch {
	case c.MustNotExist && exists:
		return fmt.Errorf("%s already exists: %w", c.Path, apperr.ErrConflict)
	case c.BaseVersion != "" && !exists:
		return fmt.Errorf("%s no longer exists: %w", c.Path, apperr.ErrConflict)
	case c.BaseVersion != "" && c.BaseVersion != file.GetSHA():
		return fmt.Errorf("%s version %s is stale: %w", c.Path, c.BaseVersion, apperr.ErrConflict)
	}
	return nil
}

// wrap maps GitHub API failures onto apperr kinds. For writes, 409 and 422
// mean the supplied sha or parent was not current.
func (g *GitHub) wrap(op string, err error, write bool) error {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		switch code := ghErr.Response.StatusCode; {
		case code == http.StatusNotFound:
			return fmt.Errorf("storage: %s: %w", op, apperr.ErrNotFound)
		case write && (code == http.StatusConflict || code == http.StatusUnprocessableEntity):
			return fmt.Errorf("storage: %s: %w: %s", op, apperr.ErrConflict, ghErr.Message)
		}
	}
	return fmt.Errorf("storage: %s: %w: %w", op, apperr.ErrTransport, err)
}
