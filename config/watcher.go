package config

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/agentdeck/agentdeck/logging"
	"github.com/agentdeck/agentdeck/pkg/paths"
	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher watches the config directory and reloads agentdeck.yml on change.
type Watcher struct {
	watcher    *fsnotify.Watcher
	debounceMs int
	lastChange time.Time
	mu         sync.Mutex
	logger     *logrus.Entry
	onReload   func(*Config)
}

// NewWatcher creates a Watcher over the agentdeck config directory. The
// debounceMs parameter controls how long to wait before processing rapid
// changes. The onReload callback receives the freshly loaded configuration.
func NewWatcher(debounceMs int, onReload func(*Config)) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	configDir := paths.ConfigDir()
	if err := watcher.Add(configDir); err != nil {
		watcher.Close()
		return nil, err
	}

	if debounceMs <= 0 {
		debounceMs = 100
	}

	return &Watcher{
		watcher:    watcher,
		debounceMs: debounceMs,
		logger:     logging.NewLogger("config-watcher"),
		onReload:   onReload,
	}, nil
}

// Start begins watching for config changes. It blocks until the context is
// cancelled.
func (w *Watcher) Start(ctx context.Context) {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !strings.HasSuffix(event.Name, ".yml") && !strings.HasSuffix(event.Name, ".yaml") {
				continue
			}
			w.handleChange(event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Errorf("Watcher error: %v", err)
		case <-ctx.Done():
			w.watcher.Close()
			return
		}
	}
}

// handleChange processes a config file change with debouncing.
func (w *Watcher) handleChange(file string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	elapsed := time.Since(w.lastChange)
	if elapsed < time.Duration(w.debounceMs)*time.Millisecond {
		w.logger.Debugf("Debounced: %s (only %v since last change)", filepath.Base(file), elapsed)
		return
	}
	w.lastChange = time.Now()

	w.logger.Infof("Config changed: %s", filepath.Base(file))

	cfg, err := LoadDefault()
	if err != nil {
		w.logger.WithError(err).Error("Failed to reload config, keeping the previous one")
		return
	}

	if w.onReload != nil {
		w.onReload(cfg)
	}
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
