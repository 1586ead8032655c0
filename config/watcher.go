package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// debounceInterval coalesces editor write bursts into one reload.
const debounceInterval = 500 * time.Millisecond

// Reloader watches a config file and re-loads it on change.
type Reloader struct {
	watcher  *fsnotify.Watcher
	path     string
	onChange func(Config)
	logger   *zap.Logger
	debounce time.Duration
}

// NewReloader creates a file watcher for the given config path. onChange
// runs with the freshly loaded configuration after each debounced change.
func NewReloader(path string, logger *zap.Logger, onChange func(Config)) (*Reloader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config: watch %q: %w", path, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create file watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("config: watch %q: %w", path, err)
	}

	return &Reloader{
		watcher:  watcher,
		path:     path,
		onChange: onChange,
		logger:   logger,
		debounce: debounceInterval,
	}, nil
}

// Run watches for file changes and reloads the configuration. Blocks until
// ctx is cancelled.
func (r *Reloader) Run(ctx context.Context) error {
	defer r.watcher.Close()

	var debounce *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case event, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(r.debounce, r.reload)
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}

func (r *Reloader) reload() {
	cfg, err := Load(r.path)
	if err != nil {
		r.logger.Warn("config reload failed", zap.String("path", r.path), zap.Error(err))
		return
	}
	r.logger.Info("config reloaded", zap.String("path", r.path))
	r.onChange(cfg)
}
