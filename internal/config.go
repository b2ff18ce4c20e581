package internal

import (
	"fmt"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/blogsync/internal/articles"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Store backends.
const (
	BackendGitHub = "github"
	BackendSQLite = "sqlite"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Store     StoreConfig       `yaml:"store"`
	Generator GeneratorConfig   `yaml:"generator"`
	Editor    EditorConfig      `yaml:"editor"`
	Mirror    MirrorConfig      `yaml:"mirror"`
	Auth      AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := c.Editor.Validate(); err != nil {
		return fmt.Errorf("editor: %w", err)
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StoreConfig selects and addresses the content store.
type StoreConfig struct {
	Backend     string       `yaml:"backend"`
	MarkdownDir string       `yaml:"markdown_dir"`
	IndexPath   string       `yaml:"index_path"`
	GitHub      GitHubConfig `yaml:"github"`
	SQLite      SQLiteConfig `yaml:"sqlite"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	c.MarkdownDir = strings.Trim(c.MarkdownDir, "/")
	c.IndexPath = strings.Trim(c.IndexPath, "/")
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(BackendGitHub, BackendSQLite)),
		validation.Field(&c.MarkdownDir, validation.Required),
		validation.Field(&c.IndexPath, validation.Required),
	); err != nil {
		return err
	}
	if c.Backend == BackendGitHub {
		return c.GitHub.Validate()
	}
	return c.SQLite.Validate()
}

// GitHubConfig addresses the repository holding the blog content.
type GitHubConfig struct {
	Token   string `yaml:"token"`
	Owner   string `yaml:"owner"`
	Repo    string `yaml:"repo"`
	Branch  string `yaml:"branch"`
	BaseURL string `yaml:"base_url"`
}

// Validate validates the GitHub configuration.
func (c *GitHubConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Token, validation.Required),
		validation.Field(&c.Owner, validation.Required),
		validation.Field(&c.Repo, validation.Required),
		validation.Field(&c.Branch, validation.Required),
	)
}

// SQLiteConfig holds the local SQLite store configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// GeneratorConfig configures the text-generation client. Generation is
// disabled while APIKey is empty.
type GeneratorConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
	Prompt  string `yaml:"prompt"`
}

// Enabled reports whether a generation credential is configured.
func (c *GeneratorConfig) Enabled() bool {
	return c.APIKey != ""
}

// EditorConfig tunes the editor pipeline.
type EditorConfig struct {
	IndexStrategy string `yaml:"index_strategy"`
	Concurrency   int    `yaml:"concurrency"`
}

// Validate validates the editor configuration.
func (c *EditorConfig) Validate() error {
	if c.IndexStrategy == "" {
		c.IndexStrategy = articles.StrategyRebuild
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.IndexStrategy, validation.In(articles.StrategyRebuild, articles.StrategyIncremental)),
		validation.Field(&c.Concurrency, validation.Min(0), validation.Max(64)),
	)
}

// MirrorConfig enables the local copy of the committed index.
type MirrorConfig struct {
	IndexPath string `yaml:"index_path"`
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// ArticlesConfig derives the article service settings.
func (c *Config) ArticlesConfig() articles.Config {
	return articles.Config{
		MarkdownDir:   c.Store.MarkdownDir,
		IndexPath:     c.Store.IndexPath,
		IndexStrategy: c.Editor.IndexStrategy,
		Prompt:        c.Generator.Prompt,
		MirrorPath:    c.Mirror.IndexPath,
		Concurrency:   c.Editor.Concurrency,
	}
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Store: StoreConfig{
			Backend:     BackendGitHub,
			MarkdownDir: "data/md",
			IndexPath:   "data/json/articles.json",
			GitHub: GitHubConfig{
				Branch: "main",
			},
			SQLite: SQLiteConfig{
				Path: "./blogsync.db",
			},
		},
		Editor: EditorConfig{
			IndexStrategy: articles.StrategyRebuild,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
