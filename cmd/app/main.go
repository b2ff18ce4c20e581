package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/blogsync/internal"
	"github.com/starford/blogsync/internal/drafts"
	"github.com/starford/blogsync/internal/models"
	pkgconfig "github.com/starford/blogsync/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadWithDefaults(cmd.String("config"), "", cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// withApp loads the config, builds the application and hands it to fn.
// CLI commands log to stderr so their stdout can be piped.
func withApp(ctx context.Context, cmd *cli.Command, fn func(context.Context, *internal.App) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := internal.NewLogger(os.Stderr, cfg.App.LogLevel)
	slog.SetDefault(logger)

	app, err := internal.NewApp(cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(ctx, app)
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
		internal.WithDraftsDir(cmd.String("drafts")),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func list(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("mirror") {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		records, err := readMirror(cfg.Mirror.IndexPath)
		if err != nil {
			return err
		}
		return printArticles(cmd, records)
	}
	return withApp(ctx, cmd, func(ctx context.Context, app *internal.App) error {
		records, err := app.Articles.ListArticles(ctx)
		if err != nil {
			return err
		}
		return printArticles(cmd, records)
	})
}

func printArticles(cmd *cli.Command, records []models.Article) error {
	if cmd.Bool("json") || !isTerminal(os.Stdout) {
		return printJSON(os.Stdout, records)
	}
	fmt.Fprintln(os.Stdout, renderArticles(records))
	return nil
}

func rebuild(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, func(ctx context.Context, app *internal.App) error {
		records, err := app.Articles.RebuildIndex(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "index rebuilt: %d articles\n", len(records))
		return nil
	})
}

func generate(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, func(ctx context.Context, app *internal.App) error {
		out, err := app.Articles.GenerateArticle(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "generated: %s (%s)\n", out.Path, out.Title)
		return nil
	})
}

func update(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, func(ctx context.Context, app *internal.App) error {
		in := models.ArticleUpdate{Path: cmd.String("path")}
		if file := cmd.String("file"); file != "" {
			loaded, err := drafts.Load(file, app.Config.Store.MarkdownDir)
			if err != nil {
				return err
			}
			if in.Path == "" {
				in.Path = loaded.Path
			}
			in.Title, in.Description, in.Content = loaded.Title, loaded.Description, loaded.Content
		}
		if cmd.IsSet("title") {
			in.Title = cmd.String("title")
		}
		if cmd.IsSet("description") {
			in.Description = cmd.String("description")
		}
		if cmd.IsSet("content") {
			in.Content = cmd.String("content")
		}

		article, err := app.Articles.UpdateArticle(ctx, in)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "updated: %s (lastModified %s)\n", article.Path, article.LastModified)
		return nil
	})
}

func watch(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunWatch(ctx,
		internal.WithConfig(cfg),
		internal.WithDraftsDir(cmd.String("dir")),
	)
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx,
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	)
}

func main() {
	cmd := &cli.Command{
		Name:    "blogsync",
		Usage:   "Keep a Git-hosted blog's Markdown articles and JSON index in sync",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API",
				Action: serve,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "drafts",
						Usage:   "Publish Markdown drafts written to this directory",
						Sources: cli.EnvVars("BLOGSYNC_DRAFTS_DIR"),
					},
				},
			},
			{
				Name:   "list",
				Usage:  "Print the article index",
				Action: list,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Print JSON even on a terminal"},
					&cli.BoolFlag{Name: "mirror", Usage: "Read the local index mirror instead of the content store"},
				},
			},
			{
				Name:   "rebuild",
				Usage:  "Regenerate the index from every article",
				Action: rebuild,
			},
			{
				Name:   "generate",
				Usage:  "Generate a new article and commit it with its index record",
				Action: generate,
			},
			{
				Name:   "update",
				Usage:  "Update an article's metadata and body",
				Action: update,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Article path in the content store"},
					&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "New title"},
					&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "New description"},
					&cli.StringFlag{Name: "content", Usage: "New Markdown body"},
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Markdown draft with front matter to publish"},
				},
			},
			{
				Name:   "watch",
				Usage:  "Publish drafts as they are saved",
				Action: watch,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "dir",
						Usage:    "Drafts directory",
						Required: true,
						Sources:  cli.EnvVars("BLOGSYNC_DRAFTS_DIR"),
					},
				},
			},
			{
				Name:   "mcp",
				Usage:  "Serve the MCP tools over stdio",
				Action: mcp,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
