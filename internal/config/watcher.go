package config

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher reloads the configuration when the file changes on disk and
// invokes a callback with the new value. Invalid files are logged and
// skipped; the previous configuration stays in effect.
type Watcher struct {
	loader   *Loader
	watcher  *fsnotify.Watcher
	onChange func(*Config)
	logger   zerolog.Logger
	done     chan struct{}
}

// NewWatcher creates a watcher for the loader's config file.
func NewWatcher(loader *Loader, onChange func(*Config), logger zerolog.Logger) (*Watcher, error) {
	if onChange == nil {
		return nil, fmt.Errorf("onChange callback is required")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &Watcher{
		loader:   loader,
		watcher:  fw,
		onChange: onChange,
		logger:   logger.With().Str("component", "config_watcher").Logger(),
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching. The config file's directory is watched so that
// atomic rename-into-place saves are seen too.
func (w *Watcher) Start() error {
	path := w.loader.Path()
	if path == "" {
		return fmt.Errorf("failed to resolve config path")
	}
	if err := w.watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	go w.run(path)

	w.logger.Info().Str("path", path).Msg("Watching config file")
	return nil
}

// Stop stops watching.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *Watcher) run(path string) {
	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, err := w.loader.Load()
			if err != nil {
				w.logger.Warn().Err(err).Msg("Ignoring invalid config change")
				continue
			}
			w.logger.Info().Msg("Config reloaded")
			w.onChange(cfg)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Config watcher error")
		}
	}
}
