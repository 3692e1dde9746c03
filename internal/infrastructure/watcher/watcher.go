// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package watcher reports files that appear, fully written, in a directory.
package watcher

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/logging"
)

const (
	defaultEventBuffer  = 64
	defaultPollInterval = time.Second
)

// ErrAlreadyStarted is returned when Start is called twice.
var ErrAlreadyStarted = errors.New("watcher already started")

// Event is a file that finished being written (closed after write or renamed in).
type Event struct {
	Name string
	Path string
}

// MatchFunc selects which file names produce events.
type MatchFunc func(name string) bool

// Option configures a Watcher.
type Option func(*Watcher)

// WithPollInterval sets the scan interval on platforms without inotify.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// Watcher emits an Event for every matching file that lands in dir.
type Watcher struct {
	dir          string
	match        MatchFunc
	pollInterval time.Duration

	events  chan Event
	stop    chan struct{}
	done    chan struct{}
	mu      sync.Mutex
	started bool
	once    sync.Once
}

// New creates a watcher for dir. A nil match accepts every name.
func New(dir string, match MatchFunc, opts ...Option) *Watcher {
	if match == nil {
		match = func(string) bool { return true }
	}
	w := &Watcher{
		dir:          dir,
		match:        match,
		pollInterval: defaultPollInterval,
		events:       make(chan Event, defaultEventBuffer),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Start installs the watch and begins emitting events. Files already present
// are not reported.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return ErrAlreadyStarted
	}

	loop, err := w.install()
	if err != nil {
		return err
	}
	w.started = true

	ctx = logging.AppendCtx(ctx, slog.String("watch_dir", w.dir))
	go func() {
		defer close(w.done)
		defer close(w.events)
		loop(ctx)
	}()

	slog.InfoContext(ctx, "directory watcher started")
	return nil
}

// Events returns the event stream. It is closed after Stop.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Stop ends the watch and waits for the loop to exit. Safe to call more than once.
func (w *Watcher) Stop() {
	w.once.Do(func() {
		close(w.stop)
	})

	w.mu.Lock()
	started := w.started
	w.mu.Unlock()
	if started {
		<-w.done
	}
}

// emit delivers an event unless the watcher is stopping.
func (w *Watcher) emit(ctx context.Context, name string) bool {
	if !w.match(name) {
		slog.DebugContext(ctx, "ignoring file", "file", name)
		return true
	}

	event := Event{Name: name, Path: filepath.Join(w.dir, name)}
	select {
	case w.events <- event:
		return true
	case <-w.stop:
		return false
	case <-ctx.Done():
		return false
	}
}

func (w *Watcher) stopped(ctx context.Context) bool {
	select {
	case <-w.stop:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
