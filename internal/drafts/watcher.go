package drafts

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a draft must stay quiet before it is published.
const DefaultDebounce = 200 * time.Millisecond

// EventCallback is called after a draft was published. path is the store
// path of the updated article.
type EventCallback func(path string)

// Watch starts an fsnotify watcher on dir and publishes every .md draft that
// is created or written, once it has been quiet for debounce. It runs until
// ctx is cancelled. Failed publishes are logged and retried on the next write.
func Watch(ctx context.Context, dir, markdownDir string, editor Editor, debounce time.Duration, logger *slog.Logger, cb EventCallback) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("dir", dir), slog.String("markdown_dir", markdownDir))

	pending := make(map[string]struct{})
	var timer *time.Timer
	var timerCh <-chan time.Time

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerCh = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			files := make([]string, 0, len(pending))
			for f := range pending {
				files = append(files, f)
			}
			sort.Strings(files)
			clear(pending)

			for _, f := range files {
				rec, err := Publish(ctx, editor, f, markdownDir)
				if err != nil {
					logger.Warn("watcher: publish failed",
						slog.String("file", f),
						slog.String("error", err.Error()))
					continue
				}
				logger.Info("watcher: published",
					slog.String("file", f),
					slog.String("path", rec.Path))
				if cb != nil {
					cb(rec.Path)
				}
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(ev.Name, ".md") || strings.HasPrefix(filepath.Base(ev.Name), ".") {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				logger.Debug("watcher: ignored", slog.String("file", ev.Name), slog.String("op", ev.Op.String()))
				continue
			}
			pending[ev.Name] = struct{}{}
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
