// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/knadh/koanf/providers/file"
)

// Watcher reloads the configuration when its base or profile file changes.
// File events come from the koanf file provider and are coalesced over a
// debounce window, so an editor's write-rename sequence causes one reload.
type Watcher struct {
	opts     LoadOptions
	debounce time.Duration
	logger   *slog.Logger

	mu        sync.RWMutex
	config    *Config
	listeners []func(*Config)

	providers []*file.File
	events    chan string
	stopOnce  sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// WatcherOption configures the watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets how long the watcher waits for writes to settle.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithWatchLogger sets the logger for the watcher.
func WithWatchLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWatcher loads the configuration described by opts. Watching starts
// with Start.
func NewWatcher(opts LoadOptions, wopts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		opts:     opts,
		debounce: 200 * time.Millisecond,
		logger:   slog.Default(),
		events:   make(chan string, 1),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range wopts {
		opt(w)
	}

	cfg, err := LoadWith(opts)
	if err != nil {
		return nil, err
	}
	w.config = cfg
	return w, nil
}

// Paths lists the files the watcher follows: the base file and, when a
// profile is set, its profile file.
func (w *Watcher) Paths() []string {
	if w.opts.Path == "" {
		return nil
	}
	paths := []string{w.opts.Path}
	if p := profileConfigPath(w.opts.Path, w.opts.Profile); p != "" {
		paths = append(paths, p)
	}
	return paths
}

// OnChange registers a callback run after each successful reload.
func (w *Watcher) OnChange(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

// Config returns the current configuration.
func (w *Watcher) Config() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}

// Start subscribes to file events and runs the reload loop until ctx ends
// or Stop is called. Files that cannot be watched are logged and skipped.
func (w *Watcher) Start(ctx context.Context) {
	for _, path := range w.Paths() {
		fp := file.Provider(path)
		err := fp.Watch(func(_ any, err error) {
			if err != nil {
				w.logger.Warn("config.watch.error", "path", path, "error", err)
				return
			}
			select {
			case w.events <- path:
			default:
			}
		})
		if err != nil {
			w.logger.Warn("config.watch.skipped", "path", path, "error", err)
			continue
		}
		w.providers = append(w.providers, fp)
	}
	go w.loop(ctx)
}

// Stop ends watching and waits for the reload loop to exit. Start must have
// been called.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	<-w.doneCh
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.doneCh)
	defer func() {
		for _, fp := range w.providers {
			_ = fp.Unwatch()
		}
	}()

	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-w.events:
			settle = time.After(w.debounce)
		case <-settle:
			settle = nil
			w.reload()
		}
	}
}

// reload swaps in the new configuration only if it loads and validates.
func (w *Watcher) reload() {
	cfg, err := LoadWith(w.opts)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		w.logger.Error("config.reload.failed", "error", err)
		return
	}

	w.mu.Lock()
	w.config = cfg
	listeners := slices.Clone(w.listeners)
	w.mu.Unlock()

	w.logger.Info("config.reloaded", "paths", w.Paths())
	for _, fn := range listeners {
		fn(cfg)
	}
}
