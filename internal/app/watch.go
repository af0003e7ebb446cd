package app

import (
	"os"
	"sync"
	"time"
)

// SourceWatcher polls a file's modification time and calls back each time
// the file is rewritten, e.g. when a scanner overwrites the same output path.
type SourceWatcher struct {
	path          string
	baseline      time.Time
	checkInterval time.Duration

	mu       sync.Mutex
	stopCh   chan struct{}
	onChange func(path string) // Called from the watcher goroutine
}

// NewSourceWatcher creates a watcher for path. Returns nil if the file
// cannot be stat'ed.
func NewSourceWatcher(path string, checkInterval time.Duration) *SourceWatcher {
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	return &SourceWatcher{
		path:          path,
		baseline:      info.ModTime(),
		checkInterval: checkInterval,
	}
}

// OnChange sets the callback to invoke when the file changes.
func (w *SourceWatcher) OnChange(callback func(path string)) {
	w.mu.Lock()
	w.onChange = callback
	w.mu.Unlock()
}

// Start begins watching in a background goroutine.
func (w *SourceWatcher) Start() {
	w.mu.Lock()
	w.stopCh = make(chan struct{})
	stop := w.stopCh
	w.mu.Unlock()
	go w.watchLoop(stop)
}

// Stop stops the watcher goroutine.
func (w *SourceWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopCh != nil {
		close(w.stopCh)
		w.stopCh = nil
	}
}

func (w *SourceWatcher) watchLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(w.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !w.checkForUpdate() {
				continue
			}
			w.mu.Lock()
			callback := w.onChange
			w.mu.Unlock()
			if callback != nil {
				callback(w.path)
			}
		}
	}
}

// checkForUpdate reports a change once per new modification time.
func (w *SourceWatcher) checkForUpdate() bool {
	info, err := os.Stat(w.path)
	if err != nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if !info.ModTime().After(w.baseline) {
		return false
	}
	w.baseline = info.ModTime()
	return true
}

// Path returns the watched file.
func (w *SourceWatcher) Path() string {
	return w.path
}
