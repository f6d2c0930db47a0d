package prompt

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Override file names inside the override directory.
const (
	extractionOverrideFile = "extraction.txt"
	chatOverrideFile       = "chat.txt"
)

const reloadDebounce = 250 * time.Millisecond

// OverrideWatcher watches a directory for prompt override files and
// loads them into the library as they change. Deleting an override
// restores the built-in prompt.
type OverrideWatcher struct {
	library *Library
	dir     string
	logger  *zap.Logger

	watcher  *fsnotify.Watcher
	debounce map[string]*time.Timer
	mu       sync.Mutex
	cancel   context.CancelFunc
}

// NewOverrideWatcher creates a watcher for the given directory. The
// directory must exist.
func NewOverrideWatcher(library *Library, dir string, logger *zap.Logger) (*OverrideWatcher, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("prompt override directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &OverrideWatcher{
		library:  library,
		dir:      dir,
		logger:   logger,
		watcher:  watcher,
		debounce: make(map[string]*time.Timer),
	}, nil
}

// Start loads any existing override files and begins watching.
func (w *OverrideWatcher) Start() error {
	w.reload(extractionOverrideFile)
	w.reload(chatOverrideFile)

	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	go w.watchLoop(ctx)

	w.logger.Info("Prompt override watcher started", zap.String("dir", w.dir))
	return nil
}

// Stop shuts the watcher down.
func (w *OverrideWatcher) Stop() error {
	if w.cancel != nil {
		w.cancel()
	}
	return w.watcher.Close()
}

func (w *OverrideWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Prompt watcher error", zap.Error(err))
		}
	}
}

func (w *OverrideWatcher) handleEvent(event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if name != extractionOverrideFile && name != chatOverrideFile {
		return
	}

	// Editors fire bursts of events per save, collapse them.
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, exists := w.debounce[name]; exists {
		timer.Stop()
	}
	w.debounce[name] = time.AfterFunc(reloadDebounce, func() {
		w.reload(name)
		w.mu.Lock()
		delete(w.debounce, name)
		w.mu.Unlock()
	})
}

func (w *OverrideWatcher) reload(name string) {
	data, err := os.ReadFile(filepath.Join(w.dir, name))
	if err != nil {
		if !os.IsNotExist(err) {
			w.logger.Warn("Failed to read prompt override", zap.String("file", name), zap.Error(err))
			return
		}
		data = nil
	}

	text := string(data)
	switch name {
	case extractionOverrideFile:
		w.library.SetExtraction(text)
	case chatOverrideFile:
		w.library.SetChat(text)
	}

	if len(data) == 0 {
		w.logger.Info("Prompt restored to built-in", zap.String("file", name))
	} else {
		w.logger.Info("Prompt override loaded", zap.String("file", name), zap.Int("bytes", len(data)))
	}
}
