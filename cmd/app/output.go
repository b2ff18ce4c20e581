package main

import (
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/starford/blogsync/internal/articles"
	"github.com/starford/blogsync/internal/models"
)

func readMirror(path string) ([]models.Article, error) {
	if path == "" {
		return nil, errors.New("mirror.index_path is not configured")
	}
	return articles.NewMirror(path).Read()
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func renderArticles(list []models.Article) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Path", "Title", "Date", "Last modified"})
	for _, a := range list {
		tw.AppendRow(table.Row{a.Path, text.Trim(a.Title, 60), a.Date, a.LastModified})
	}
	tw.AppendFooter(table.Row{"", "", "Total", len(list)})
	return tw.Render()
}
