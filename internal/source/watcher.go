package source

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/crmdesk/internal/fixtures"
)

// ReloadFunc is called after fixture files changed on disk. names lists the
// fixture files touched since the previous call.
type ReloadFunc func(ctx context.Context, names []string)

// WatchFixtures watches the fixture directory and calls reload, debounced,
// whenever a fixture file is created, written, removed or renamed. It
// blocks until ctx is cancelled.
func WatchFixtures(ctx context.Context, dir *fixtures.Dir, logger *slog.Logger, debounce time.Duration, reload ReloadFunc) error {
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir.Root()); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", dir.Root()))

	var timer *time.Timer
	var timerCh <-chan time.Time
	pending := make(map[string]struct{})

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
			names := make([]string, 0, len(pending))
			for n := range pending {
				names = append(names, n)
			}
			clear(pending)
			logger.Debug("watcher: reloading fixtures", slog.Int("files", len(names)))
			reload(ctx, names)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(ev.Name)
			if !fixtures.IsFixture(name) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			pending[name] = struct{}{}
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
