package vocab

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"fjacquet/notif-ledger/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce absorbs the burst of events editors emit for a single save.
const DefaultDebounce = 200 * time.Millisecond

// Watcher reloads a Cache when any of the vocabulary files changes.
// Parent directories are watched so atomic saves (write temp + rename) are seen.
type Watcher struct {
	cache    *Cache
	files    map[string]bool
	dirs     []string
	debounce time.Duration
	logger   logging.Logger

	wg sync.WaitGroup
}

// NewWatcher creates a Watcher for files.
func NewWatcher(cache *Cache, files []string, debounce time.Duration, logger logging.Logger) *Watcher {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w := &Watcher{cache: cache, files: map[string]bool{}, debounce: debounce, logger: logger}
	seen := map[string]bool{}
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			abs = f
		}
		w.files[abs] = true
		dir := filepath.Dir(abs)
		if !seen[dir] {
			seen[dir] = true
			w.dirs = append(w.dirs, dir)
		}
	}
	return w
}

// Start begins watching. The watcher stops when ctx is cancelled; Wait blocks until it has.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	for _, dir := range w.dirs {
		if err := fw.Add(dir); err != nil {
			w.logger.WithError(err).Warn("Failed to watch vocabulary directory", logging.F(logging.FieldFile, dir))
		}
	}

	w.wg.Add(1)
	go w.run(ctx, fw)
	return nil
}

// Wait blocks until the watcher goroutine has exited.
func (w *Watcher) Wait() {
	w.wg.Wait()
}

func (w *Watcher) run(ctx context.Context, fw *fsnotify.Watcher) {
	defer w.wg.Done()

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
		_ = fw.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !w.files[filepath.Clean(event.Name)] {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			name := event.Name
			debounceTimer = time.AfterFunc(w.debounce, func() {
				w.reload(name)
			})

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("Vocabulary watcher error")
		}
	}
}

func (w *Watcher) reload(changed string) {
	if _, err := w.cache.Reload(); err != nil {
		w.logger.WithError(err).Error("Failed to reload vocabulary; keeping previous snapshot",
			logging.F(logging.FieldFile, changed))
		return
	}
	w.logger.Info("Vocabulary reloaded after file change", logging.F(logging.FieldFile, changed))
}
