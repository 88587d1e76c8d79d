// Package watch ingests schedule images dropped into a local directory.
//
// Coordinators export the monthly scale as an image and drop it into a
// folder; the watcher picks the file up, encodes it as a data URI and adds
// it to the draft gallery. Ingested files are removed from the drop
// directory so the folder doubles as a queue.
package watch

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"louvor/internal/dataurl"

	"github.com/fsnotify/fsnotify"
)

// Sink receives ingested images. The sync engine implements it.
type Sink interface {
	AddScaleImage(url, date string) error
}

// DefaultSettleDelay is how long a file must stay quiet before ingestion.
// Export tools write large images in several chunks; ingesting on the first
// write event would read a truncated file.
const DefaultSettleDelay = 500 * time.Millisecond

// Config holds watcher configuration.
type Config struct {
	// Dir is the drop directory to watch. It is created if missing.
	Dir string

	// MaxImageBytes caps ingested file size. Zero uses the dataurl default.
	MaxImageBytes int64

	// SettleDelay overrides DefaultSettleDelay. Zero uses the default.
	SettleDelay time.Duration

	// Logger for watcher activity.
	Logger *log.Logger
}

// ImageWatcher watches a drop directory and feeds settled image files into
// a Sink.
type ImageWatcher struct {
	dir         string
	maxBytes    int64
	settleDelay time.Duration
	sink        Sink
	logger      *log.Logger

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup

	mu      sync.Mutex
	running bool
	pending map[string]*time.Timer
}

// NewImageWatcher creates a watcher. Start must be called before events are
// processed.
func NewImageWatcher(config *Config, sink Sink) (*ImageWatcher, error) {
	if config == nil || config.Dir == "" {
		return nil, fmt.Errorf("watch: drop directory is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("watch: sink is required")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	logger := config.Logger
	if logger == nil {
		logger = log.Default()
	}
	settle := config.SettleDelay
	if settle <= 0 {
		settle = DefaultSettleDelay
	}

	return &ImageWatcher{
		dir:         config.Dir,
		maxBytes:    config.MaxImageBytes,
		settleDelay: settle,
		sink:        sink,
		logger:      logger,
		watcher:     watcher,
		done:        make(chan struct{}),
		pending:     make(map[string]*time.Timer),
	}, nil
}

// Start begins watching the drop directory. Files already present when the
// watcher starts are ingested as well.
func (w *ImageWatcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("failed to create drop directory %s: %w", w.dir, err)
	}
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch drop directory %s: %w", w.dir, err)
	}

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("failed to list drop directory %s: %w", w.dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		w.scheduleLocked(filepath.Join(w.dir, entry.Name()))
	}

	w.running = true
	w.wg.Add(1)
	go w.processEvents()

	return nil
}

// Stop stops watching and cancels pending ingestions. It blocks until the
// event loop has exited.
func (w *ImageWatcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()

	close(w.done)

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	w.wg.Wait()
	return nil
}

// IsRunning returns true if the watcher is currently running.
func (w *ImageWatcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *ImageWatcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			w.mu.Lock()
			if w.running {
				w.scheduleLocked(event.Name)
			}
			w.mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Printf("watch error: %v", err)
		}
	}
}

// scheduleLocked arms the settle timer for a file. Another write before the
// timer fires restarts it, so a file is only ingested once it stops growing.
func (w *ImageWatcher) scheduleLocked(path string) {
	if _, err := dataurl.MimeType(path); err != nil {
		return
	}

	if timer, exists := w.pending[path]; exists {
		timer.Stop()
	}
	w.pending[path] = time.AfterFunc(w.settleDelay, func() {
		w.ingest(path)
	})
}

func (w *ImageWatcher) ingest(path string) {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	delete(w.pending, path)
	w.mu.Unlock()

	uri, err := dataurl.EncodeFile(path, w.maxBytes)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return // removed before it settled
		}
		w.logger.Printf("skipping %s: %v", filepath.Base(path), err)
		return
	}

	if err := w.sink.AddScaleImage(uri, ""); err != nil {
		w.logger.Printf("failed to add schedule image %s: %v", filepath.Base(path), err)
		return
	}

	if err := os.Remove(path); err != nil {
		w.logger.Printf("failed to remove ingested file %s: %v", path, err)
		return
	}
	w.logger.Printf("ingested schedule image %s", filepath.Base(path))
}
