package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/alexjbarnes/pdf-site/internal/docname"
)

// Watch monitors the mirror directory and calls onChange once a burst of
// document changes has been quiet for debounce. It blocks until the
// context is cancelled. onChange runs on the watcher goroutine, so it
// never overlaps itself.
func (m *Mirror) Watch(ctx context.Context, debounce time.Duration, logger *slog.Logger, onChange func()) error {
	if err := os.MkdirAll(m.dir, mirrorDirPerm); err != nil {
		return fmt.Errorf("creating mirror directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(m.dir); err != nil {
		return fmt.Errorf("adding mirror to watcher: %w", err)
	}

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("fsnotify events channel closed")
			}

			if !m.relevant(event) {
				continue
			}

			logger.Debug("mirror changed",
				slog.String("file", filepath.Base(event.Name)),
				slog.String("op", event.Op.String()),
			)
			if timer == nil {
				timer = time.NewTimer(debounce)
				fire = timer.C
			} else {
				timer.Reset(debounce)
			}

		case <-fire:
			onChange()

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("fsnotify errors channel closed")
			}
			// Non-fatal (e.g. event queue overflow). The next event still
			// triggers a full re-render.
			logger.Warn("mirror watcher error", slog.String("error", err.Error()))
		}
	}
}

// relevant reports whether event touches a document file. Temp files from
// atomic writes are ignored; their rename shows up as a Create of the
// final name.
func (m *Mirror) relevant(event fsnotify.Event) bool {
	if filepath.Dir(event.Name) != m.dir {
		return false
	}

	name := filepath.Base(event.Name)
	if skipName(name) || !strings.HasSuffix(name, docname.Ext) {
		return false
	}

	return event.Has(fsnotify.Create) || event.Has(fsnotify.Write) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}
