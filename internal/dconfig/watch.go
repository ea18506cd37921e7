// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dconfig

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads config.yaml whenever it changes on disk and pushes the
// new value to every subscriber. It lets an operator add or remove a
// project from the registry without restarting the dispatcher.
type Watcher struct {
	path    string
	logger  *slog.Logger
	watcher *fsnotify.Watcher
	subs    []chan<- *Config
}

// NewWatcher creates a Watcher for the config file at path (or the
// default path when empty).
func NewWatcher(path string, logger *slog.Logger) (*Watcher, error) {
	if path == "" {
		var err error
		path, err = Path()
		if err != nil {
			return nil, err
		}
	}
	if logger == nil {
		logger = slog.Default()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the containing directory rather than the file itself: editors
	// and atomic-rename writers routinely replace the inode, which would
	// otherwise silently stop delivering events for the original watch.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}

	return &Watcher{path: path, logger: logger, watcher: fw}, nil
}

// Subscribe registers ch to receive every successfully reloaded Config.
// The channel must be buffered or drained promptly; Run drops an update
// rather than block a slow subscriber.
func (w *Watcher) Subscribe(ch chan<- *Config) {
	w.subs = append(w.subs, ch)
}

// Run watches for changes until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, err := Load(w.path)
			if err != nil {
				w.logger.Warn("config reload failed, keeping previous configuration", "error", err, "path", w.path)
				continue
			}
			w.logger.Info("config reloaded", "path", w.path)
			w.publish(cfg)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) publish(cfg *Config) {
	for _, ch := range w.subs {
		select {
		case ch <- cfg:
		default:
			w.logger.Warn("dropped config reload, subscriber channel full")
		}
	}
}
