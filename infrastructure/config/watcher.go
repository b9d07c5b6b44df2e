package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"labsos-backend/domain/search"
)

// TuningWatcher reloads the tuning file when it changes
type TuningWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func(search.Tuning) error
	logger   *zap.Logger
	debounce time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// NewTuningWatcher creates a watcher for path. onChange receives every
// valid reload; invalid files are logged and ignored.
func NewTuningWatcher(path string, onChange func(search.Tuning) error, logger *zap.Logger) (*TuningWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Watch the directory so atomic saves (write then rename) are seen
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch tuning directory: %w", err)
	}

	return &TuningWatcher{
		path:     path,
		watcher:  watcher,
		onChange: onChange,
		logger:   logger,
		debounce: 100 * time.Millisecond,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching for changes
func (w *TuningWatcher) Start() {
	go w.watchLoop()
	w.logger.Info("Tuning watcher started", zap.String("path", w.path))
}

// Stop stops watching and waits for the loop to exit
func (w *TuningWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.watcher.Close()
		<-w.done
		w.logger.Info("Tuning watcher stopped")
	})
}

func (w *TuningWatcher) watchLoop() {
	defer close(w.done)

	// Debounce editors that write in several steps
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				timer.Reset(w.debounce)
			}

		case <-timer.C:
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", zap.Error(err))
		}
	}
}

func (w *TuningWatcher) reload() {
	tuning, err := LoadTuning(w.path)
	if err != nil {
		w.logger.Error("Invalid tuning file, keeping current", zap.String("path", w.path), zap.Error(err))
		return
	}
	if err := w.onChange(tuning); err != nil {
		w.logger.Error("Tuning update rejected", zap.Error(err))
		return
	}
	w.logger.Info("Tuning reloaded", zap.String("path", w.path))
}
