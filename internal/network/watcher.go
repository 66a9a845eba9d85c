package network

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"mediationd/internal/config"
)

const defaultDebounce = 50 * time.Millisecond

// SettingsWatcher reloads a network's settings file when it changes and
// applies the new settings to the network.
type SettingsWatcher struct {
	path     string
	net      *Network
	watcher  *fsnotify.Watcher
	debounce time.Duration
	log      zerolog.Logger

	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	onApply  func(settings map[string]string, reinit bool, err error)
}

// WatchSettings loads path once into n and then watches it. The parent
// directory is watched so editors that replace the file are picked up.
func WatchSettings(ctx context.Context, path string, n *Network, log zerolog.Logger) (*SettingsWatcher, error) {
	return watchSettings(ctx, path, n, log, nil)
}

func watchSettings(ctx context.Context, path string, n *Network, log zerolog.Logger, onApply func(map[string]string, bool, error)) (*SettingsWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	settings, err := config.LoadSettings(abs)
	if err != nil {
		return nil, err
	}
	n.ApplySettings(ctx, settings)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, err
	}
	w := &SettingsWatcher{
		path:     abs,
		net:      n,
		watcher:  fw,
		debounce: defaultDebounce,
		log:      log.With().Str("network", n.Name()).Str("settings_file", abs).Logger(),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
		onApply:  onApply,
	}
	go w.loop(ctx)
	return w, nil
}

// Stop ends the watch loop and releases the watcher.
func (w *SettingsWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		_ = w.watcher.Close()
	})
	<-w.done
}

func (w *SettingsWatcher) loop(ctx context.Context) {
	defer close(w.done)
	timer := time.NewTimer(0)
	<-timer.C
	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(w.debounce)
		case <-timer.C:
			w.reload(ctx)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("settings watch error")
		}
	}
}

func (w *SettingsWatcher) reload(ctx context.Context) {
	settings, err := config.LoadSettings(w.path)
	if err != nil {
		// A half-written file is retried on the next event.
		w.log.Warn().Err(err).Msg("settings reload failed")
		if w.onApply != nil {
			w.onApply(nil, false, err)
		}
		return
	}
	reinit := w.net.ApplySettings(ctx, settings)
	w.log.Info().Int("keys", len(settings)).Bool("reinit", reinit).Msg("settings applied")
	if w.onApply != nil {
		w.onApply(settings, reinit, nil)
	}
}
