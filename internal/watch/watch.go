// Package watch re-runs the aggregation when summary files under the
// source glob change on disk.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	xlog "github.com/nanoqc/nanoqc/internal/log"
	"github.com/nanoqc/nanoqc/internal/metrics"
)

// Watcher observes the directory behind a source glob and invokes a
// callback once per burst of matching file events.
type Watcher struct {
	pattern  string
	dir      string
	debounce time.Duration
	onChange func(context.Context)
	logger   zerolog.Logger

	mu    sync.Mutex
	timer *time.Timer
}

// New builds a Watcher for the given glob. The directory part of the
// glob must be a literal path; only the file part may carry wildcards.
func New(pattern string, debounce time.Duration, onChange func(context.Context)) (*Watcher, error) {
	if debounce <= 0 {
		return nil, fmt.Errorf("watch debounce must be > 0 (got %s)", debounce)
	}
	dir := filepath.Dir(pattern)
	if strings.ContainsAny(dir, "*?[") {
		return nil, fmt.Errorf("glob directory %q must not contain wildcards", dir)
	}
	return &Watcher{
		pattern:  pattern,
		dir:      dir,
		debounce: debounce,
		onChange: onChange,
		logger:   xlog.WithComponent("watch"),
	}, nil
}

// Run blocks watching the source directory until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close() //nolint:errcheck // close on shutdown

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	w.logger.Info().
		Str("event", "watch.started").
		Str(xlog.FieldSourceGlob, w.pattern).
		Dur("debounce", w.debounce).
		Msg("watching source files")

	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			w.logger.Info().Str("event", "watch.stopped").Msg("watcher stopped")
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			// Write and Create cover editors, copies and atomic renames.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if match, _ := filepath.Match(w.pattern, event.Name); !match {
				continue
			}
			metrics.IncWatchEvent()
			w.logger.Debug().
				Str("event", "watch.file_changed").
				Str(xlog.FieldPath, event.Name).
				Str("op", event.Op.String()).
				Msg("source file changed")
			w.resetTimer(ctx)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error().
				Err(err).
				Str("event", "watch.error").
				Msg("watcher error")
		}
	}
}

// resetTimer restarts the debounce window; the callback fires only after
// the burst of events has settled.
func (w *Watcher) resetTimer(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if ctx.Err() != nil {
			return
		}
		metrics.IncWatchRefresh()
		w.logger.Info().
			Str("event", "watch.refresh").
			Str(xlog.FieldSourceGlob, w.pattern).
			Msg("source files settled, refreshing")
		w.onChange(ctx)
	})
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}
