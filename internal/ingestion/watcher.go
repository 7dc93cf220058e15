package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

var (
	// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
	ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

	// ErrWatchRootMissing is returned by Run when the watched folder does
	// not exist.
	ErrWatchRootMissing = errors.New("watched folder does not exist")
)

// DefaultDebounce is the quiet period before a change triggers a run.
const DefaultDebounce = 2 * time.Second

// Watcher re-runs an action after a folder stops changing.
type Watcher struct {
	root     string
	debounce time.Duration
	action   func(ctx context.Context) error
	logger   *zap.Logger
}

// NewWatcher watches root and every subdirectory. action runs once per
// burst of events, after debounce of quiet.
func NewWatcher(root string, debounce time.Duration, action func(ctx context.Context) error, logger *zap.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{root: root, debounce: debounce, action: action, logger: logger}
}

// Run blocks until ctx is done. Action errors are logged, not returned.
func (w *Watcher) Run(ctx context.Context) error {
	if _, err := os.Stat(w.root); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrWatchRootMissing, w.root)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	defer fw.Close()

	if err := w.addTree(fw, w.root); err != nil {
		return fmt.Errorf("watching %s: %w", w.root, err)
	}
	w.logger.Info("watching folder", zap.String("root", w.root), zap.Duration("debounce", w.debounce))

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create == fsnotify.Create {
				_ = w.addTree(fw, event.Name)
			}
			if event.Op == fsnotify.Chmod {
				continue
			}
			w.logger.Debug("folder changed", zap.String("path", event.Name), zap.String("op", event.Op.String()))
			if pending && !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)
			pending = true

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", zap.Error(err))

		case <-timer.C:
			pending = false
			if err := w.action(ctx); err != nil {
				w.logger.Error("re-ingest failed", zap.Error(err))
			}
		}
	}
}

// addTree watches dir and its subdirectories; non-directories are ignored.
func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := fw.Add(path); err != nil {
			w.logger.Warn("cannot watch directory", zap.String("path", path), zap.Error(err))
		}
		return nil
	})
}
