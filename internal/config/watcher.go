package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/777genius/agent-toast/internal/logging"
)

// Watcher keeps the latest valid Config for a settings file and reloads it
// when the file changes. Readers never block on disk.
type Watcher struct {
	path    string
	current atomic.Pointer[Config]
	reloads chan struct{}
}

// NewWatcher loads path once. An unreadable or invalid file falls back to
// defaults with a warning; the server must still start.
func NewWatcher(path string) *Watcher {
	w := &Watcher{path: filepath.Clean(path), reloads: make(chan struct{}, 1)}
	w.reload()
	return w
}

// Current returns a copy of the active snapshot.
func (w *Watcher) Current() Config {
	return *w.current.Load()
}

// Reloaded signals after each reload attempt. Used by tests and the tray.
func (w *Watcher) Reloaded() <-chan struct{} {
	return w.reloads
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		logging.Warn("keeping previous settings: %v", err)
		if w.current.Load() == nil {
			w.current.Store(DefaultConfig())
		}
	} else {
		w.current.Store(cfg)
	}

	select {
	case w.reloads <- struct{}{}:
	default:
	}
}

// Run watches the settings directory until ctx is done. Editors often
// replace files by rename, so the parent directory is watched rather than
// the file itself.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create settings watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				logging.Debug("settings changed (%s), reloading", ev.Op)
				w.reload()
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logging.Warn("settings watcher: %v", err)
		}
	}
}
