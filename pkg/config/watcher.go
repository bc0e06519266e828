package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher watches the configuration file for changes and triggers
// reloads. It debounces rapid write sequences (editors commonly write a
// file several times in quick succession) to prevent reload storms.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	logger  *slog.Logger
	config  *FileWatcherConfig

	mu      sync.Mutex
	running bool
	timer   *time.Timer
	stopCh  chan struct{}
}

// FileWatcherConfig contains configuration for the file watcher.
type FileWatcherConfig struct {
	// Path is the configuration file to watch.
	Path string

	// DebounceInterval is the time to wait after the last detected
	// change before triggering a reload (default: 100ms).
	DebounceInterval time.Duration
}

// NewFileWatcher creates a new configuration file watcher.
func NewFileWatcher(config *FileWatcherConfig, logger *slog.Logger) (*FileWatcher, error) {
	if config == nil || config.Path == "" {
		return nil, fmt.Errorf("watcher path is required")
	}
	if config.DebounceInterval == 0 {
		config.DebounceInterval = 100 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &FileWatcher{
		watcher: watcher,
		logger:  logger.With("component", "config.watcher"),
		config:  config,
		stopCh:  make(chan struct{}),
	}, nil
}

// Watch starts watching for file changes and invokes onReload after
// each debounced change. This blocks until the context is cancelled or
// Stop is called. Reload errors are logged, not returned: a bad config
// write must not take the watcher down.
func (fw *FileWatcher) Watch(ctx context.Context, onReload func() error) error {
	fw.mu.Lock()
	if fw.running {
		fw.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	fw.running = true
	fw.mu.Unlock()

	defer func() {
		fw.mu.Lock()
		fw.running = false
		fw.mu.Unlock()
	}()

	// Watch the directory rather than the file itself: editors that
	// rename-and-replace would otherwise drop the watch.
	dir := filepath.Dir(fw.config.Path)
	if err := fw.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %q: %w", dir, err)
	}

	fw.logger.Info("config watcher started",
		"path", fw.config.Path,
		"debounce_ms", fw.config.DebounceInterval.Milliseconds(),
	)

	target := filepath.Clean(fw.config.Path)
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			fw.logger.Info("config watcher stopped (context cancelled)")
			return nil

		case <-fw.stopCh:
			fw.logger.Info("config watcher stopped")
			return nil

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			fw.scheduleReload(reload)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			fw.logger.Warn("config watcher error", "error", err)

		case <-reload:
			fw.logger.Info("config file changed, reloading", "path", fw.config.Path)
			if err := onReload(); err != nil {
				fw.logger.Error("config reload failed, keeping previous configuration",
					"path", fw.config.Path,
					"error", err,
				)
			}
		}
	}
}

// scheduleReload arms (or re-arms) the debounce timer.
func (fw *FileWatcher) scheduleReload(reload chan struct{}) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.timer != nil {
		fw.timer.Stop()
	}
	fw.timer = time.AfterFunc(fw.config.DebounceInterval, func() {
		select {
		case reload <- struct{}{}:
		default:
		}
	})
}

// Stop stops the watcher and releases the underlying fsnotify resources.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.running {
		close(fw.stopCh)
	}
	if fw.timer != nil {
		fw.timer.Stop()
	}
	return fw.watcher.Close()
}
