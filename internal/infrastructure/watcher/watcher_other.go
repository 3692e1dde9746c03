// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

//go:build !linux

package watcher

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/logging"
)

// install falls back to scanning the directory. A file is reported once its
// size and modification time are unchanged across two scans.
func (w *Watcher) install() (func(context.Context), error) {
	seen, err := w.scan()
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context) {
		pending := make(map[string]fileState)
		ticker := time.NewTicker(w.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-w.stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			current, err := w.scan()
			if err != nil {
				slog.ErrorContext(ctx, "directory scan failed", logging.ErrKey, err)
				continue
			}

			for name, state := range current {
				if previous, ok := seen[name]; ok && previous == state {
					continue
				}
				if previous, ok := pending[name]; ok && previous == state {
					delete(pending, name)
					seen[name] = state
					if !w.emit(ctx, name) {
						return
					}
					continue
				}
				pending[name] = state
			}
			for name := range seen {
				if _, ok := current[name]; !ok {
					delete(seen, name)
				}
			}
		}
	}, nil
}

type fileState struct {
	size    int64
	modTime time.Time
}

func (w *Watcher) scan() (map[string]fileState, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, err
	}

	states := make(map[string]fileState, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		states[entry.Name()] = fileState{size: info.Size(), modTime: info.ModTime()}
	}
	return states, nil
}
