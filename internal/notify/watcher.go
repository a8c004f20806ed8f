// Package notify watches data directories and reports changes to matching
// files after they settle.
package notify

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultQuiet is how long a directory must stay unchanged before the
// callback runs.
const DefaultQuiet = 250 * time.Millisecond

// DirWatcher watches one directory and calls onChange once per burst of
// changes to files matching pattern.
type DirWatcher struct {
	dir      string
	pattern  string
	quiet    time.Duration
	onChange func()
	logger   *zap.Logger

	watcher *fsnotify.Watcher
	done    chan struct{}

	mu    sync.Mutex
	timer *time.Timer
}

// NewDirWatcher creates a watcher for dir. pattern is a filepath.Match
// pattern applied to base names, e.g. "*.yaml".
func NewDirWatcher(dir, pattern string, onChange func(), logger *zap.Logger) *DirWatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirWatcher{
		dir:      dir,
		pattern:  pattern,
		quiet:    DefaultQuiet,
		onChange: onChange,
		logger:   logger.Named("notify"),
		done:     make(chan struct{}),
	}
}

// SetQuiet overrides the settle period. Call before Start.
func (w *DirWatcher) SetQuiet(d time.Duration) {
	if d > 0 {
		w.quiet = d
	}
}

// Start begins watching. Call Stop() to clean up.
func (w *DirWatcher) Start() error {
	if _, err := os.Stat(w.dir); err != nil {
		return err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(w.dir); err != nil {
		_ = fw.Close()
		return err
	}
	w.watcher = fw

	go w.loop()
	w.logger.Info("watching directory", zap.String("dir", w.dir), zap.String("pattern", w.pattern))
	return nil
}

// Stop shuts down the watcher. A pending callback is dropped.
func (w *DirWatcher) Stop() {
	if w.watcher == nil {
		return
	}
	_ = w.watcher.Close()
	<-w.done

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
}

func (w *DirWatcher) loop() {
	defer close(w.done)
	for {
		select {
		case evt, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if evt.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if match, _ := filepath.Match(w.pattern, filepath.Base(evt.Name)); match {
				w.schedule()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

// schedule (re)arms the settle timer.
func (w *DirWatcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.quiet, w.onChange)
}
