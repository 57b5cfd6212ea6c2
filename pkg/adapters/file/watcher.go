package file

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aretw0/intentflow/internal/logging"
	"github.com/aretw0/intentflow/pkg/domain"
	"github.com/aretw0/intentflow/pkg/ports"
	"github.com/aretw0/intentflow/pkg/snapshot"
	"github.com/fsnotify/fsnotify"
)

// Watcher implements ports.Replicator on top of a snapshot directory.
//
// Publishing is a no-op: the atomic file write performed by the store is the
// signal, the way a storage event follows a write to browser storage. Subscribers
// watch the directory and re-read the key's file through the loader on change.
type Watcher struct {
	dir    string
	loader ports.SnapshotStore
	logger *slog.Logger
}

// WatcherOption configures the Watcher.
type WatcherOption func(*Watcher)

// WithWatcherLogger configures a logger for the Watcher.
func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// NewWatcher watches dir and loads changed keys through loader.
// loader is usually the (possibly wrapped) store that writes into dir.
func NewWatcher(dir string, loader ports.SnapshotStore, opts ...WatcherOption) *Watcher {
	w := &Watcher{dir: dir, loader: loader, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Publish does nothing; the file write already notifies watchers.
func (w *Watcher) Publish(ctx context.Context, key string, payload []byte) error {
	return nil
}

// Subscribe emits the encoded snapshot of key every time its file is written.
func (w *Watcher) Subscribe(ctx context.Context, key string) (<-chan []byte, error) {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to ensure watch directory: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fw.Add(w.dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}

	out := make(chan []byte, 16)
	target := key + ext

	go func() {
		defer close(out)
		defer fw.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != target || ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}
				payload, ok := w.read(ctx, key)
				if !ok {
					continue
				}
				select {
				case out <- payload:
				case <-ctx.Done():
					return
				}
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				w.logger.Warn("Snapshot watcher error", "dir", w.dir, "err", err)
			}
		}
	}()
	return out, nil
}

func (w *Watcher) read(ctx context.Context, key string) ([]byte, bool) {
	snap, err := w.loader.Load(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrSnapshotNotFound) {
			w.logger.Warn("Failed to load changed snapshot", "key", key, "err", err)
		}
		return nil, false
	}
	payload, err := snapshot.Encode(snap)
	if err != nil {
		w.logger.Warn("Failed to encode changed snapshot", "key", key, "err", err)
		return nil, false
	}
	return payload, true
}
