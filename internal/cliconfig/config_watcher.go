package cliconfig

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// ConfigWatcher monitors a config file for changes via fsnotify and
// reports reloaded contents through a callback. Events are debounced
// because editors typically emit several writes per save.
type ConfigWatcher struct {
	path     string
	log      zerolog.Logger
	onChange func(FileConfig)

	mu       sync.Mutex
	debounce *time.Timer
}

func NewConfigWatcher(path string, log zerolog.Logger, onChange func(FileConfig)) *ConfigWatcher {
	return &ConfigWatcher{
		path:     path,
		log:      log,
		onChange: onChange,
	}
}

// Run watches the directory containing the config file until the
// context is cancelled. The directory is watched rather than the file
// itself so rename-based saves keep working.
func (w *ConfigWatcher) Run(ctx context.Context) {
	if w.path == "" {
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.log.Error().Err(err).Msg("config watcher: failed to create watcher")
		return
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		w.log.Error().Err(err).Str("dir", dir).Msg("config watcher: failed to watch")
		return
	}

	name := filepath.Base(w.path)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.debounceReload(100 * time.Millisecond)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.log.Error().Err(err).Msg("config watcher: error")
		}
	}
}

func (w *ConfigWatcher) debounceReload(delay time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(delay, w.reload)
}

func (w *ConfigWatcher) reload() {
	fc, err := LoadFileConfig(w.path)
	if err != nil {
		w.log.Error().Err(err).Str("path", w.path).Msg("config watcher: reload failed")
		return
	}
	w.log.Info().Str("path", w.path).Msg("config watcher: configuration reloaded")
	if w.onChange != nil {
		w.onChange(fc)
	}
}
