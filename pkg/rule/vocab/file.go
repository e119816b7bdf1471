package vocab

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Load reads and validates a vocabulary from a YAML file.
func Load(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vocabulary file %q: %w", path, err)
	}

	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to parse vocabulary file %q: %w", path, err)
	}
	v.index()

	if err := v.Validate(); err != nil {
		return nil, fmt.Errorf("invalid vocabulary in %q: %w", path, err)
	}

	return &v, nil
}

// Watcher reloads a Registry whenever the vocabulary file changes on disk.
// Rapid successive writes are debounced so editors that write in several
// steps trigger a single reload.
type Watcher struct {
	path     string
	registry *Registry
	logger   *slog.Logger
	debounce time.Duration

	mu       sync.Mutex
	running  bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewWatcher creates a watcher for the given vocabulary file.
func NewWatcher(path string, registry *Registry, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		path:     path,
		registry: registry,
		logger:   logger.With("component", "vocab.watcher"),
		debounce: 100 * time.Millisecond,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Watch blocks, reloading the registry on every change to the vocabulary
// file, until the context is cancelled or Stop is called. A reload that
// fails validation keeps the previous vocabulary active.
func (w *Watcher) Watch(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("vocabulary watcher already running")
	}
	w.running = true
	w.mu.Unlock()
	defer close(w.doneCh)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory rather than the file: editors replace files by
	// rename, which drops a file-level watch.
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %q: %w", w.path, err)
	}

	w.logger.Info("vocabulary watcher started", "path", w.path)

	var timer *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("vocabulary watcher stopped (context cancelled)")
			return nil

		case <-w.stopCh:
			w.logger.Info("vocabulary watcher stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !w.shouldProcess(event) {
				continue
			}
			w.logger.Debug("vocabulary file event", "path", event.Name, "op", event.Op.String())

			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case <-reload:
			w.reload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("vocabulary watcher error", "error", err)
		}
	}
}

// Stop stops the watcher and waits for Watch to return.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	w.stopOnce.Do(func() { close(w.stopCh) })
	<-w.doneCh
}

func (w *Watcher) shouldProcess(event fsnotify.Event) bool {
	if event.Op&fsnotify.Chmod == fsnotify.Chmod {
		return false
	}
	return filepath.Clean(event.Name) == filepath.Clean(w.path) ||
		strings.EqualFold(filepath.Base(event.Name), filepath.Base(w.path))
}

func (w *Watcher) reload() {
	v, err := Load(w.path)
	if err != nil {
		w.logger.Error("vocabulary reload failed, keeping previous version",
			"path", w.path,
			"error", err,
		)
		return
	}

	if err := w.registry.Replace(v); err != nil {
		w.logger.Error("vocabulary reload rejected", "path", w.path, "error", err)
		return
	}

	w.logger.Info("vocabulary reloaded",
		"path", w.path,
		"version", v.Version,
		"events", len(v.Events),
		"fields", len(v.Fields),
	)
}
