package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/speedctl/logging"
)

// DefaultWatchDebounce is how long a config file must stay quiet before it is re-read. Editors
// often write a file in several steps.
const DefaultWatchDebounce = 200 * time.Millisecond

// Watcher re-reads a config file whenever it changes on disk and hands every valid result to a
// callback. Invalid files are logged and skipped so the last good config stays in effect.
type Watcher struct {
	path     string
	onChange func(*Config)
	logger   logging.Logger

	fsWatcher *fsnotify.Watcher
	debounced func(func())
	workers   *utils.StoppableWorkers

	mu     sync.Mutex
	closed bool
}

// NewWatcher starts watching path. The directory holding the file is watched rather than the
// file itself so that editors which replace the file by renaming are still seen.
func NewWatcher(path string, debounceFor time.Duration, onChange func(*Config), logger logging.Logger) (*Watcher, error) {
	if onChange == nil {
		return nil, errors.New("config watcher requires a callback")
	}
	if debounceFor <= 0 {
		debounceFor = DefaultWatchDebounce
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create config watcher")
	}
	if err := fsWatcher.Add(filepath.Dir(absPath)); err != nil {
		return nil, multierr.Combine(errors.Wrapf(err, "failed to watch %q", absPath), fsWatcher.Close())
	}

	w := &Watcher{
		path:      absPath,
		onChange:  onChange,
		logger:    logger,
		fsWatcher: fsWatcher,
		debounced: debounce.New(debounceFor),
	}
	w.workers = utils.NewBackgroundStoppableWorkers(w.watch)
	return w, nil
}

func (w *Watcher) watch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.debounced(w.reload)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warnw("config watcher error", "path", w.path, "error", err)
		}
	}
}

func (w *Watcher) reload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	cfg, err := Read(w.path)
	if err != nil {
		w.logger.Warnw("failed to reload config, keeping the previous one", "path", w.path, "error", err)
		return
	}
	w.logger.Infow("config file changed", "path", w.path)
	w.onChange(cfg)
}

// Close stops watching. No callback runs once Close returns.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	w.workers.Stop()
	return w.fsWatcher.Close()
}
