package lifecycle

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aretw0/intentflow/pkg/domain"
)

// Change is delivered to watchers after every committed or replayed snapshot.
type Change struct {
	Action   domain.Action     `json:"action"`
	Snapshot *domain.Snapshot  `json:"snapshot"`
	Diff     *domain.StateDiff `json:"diff,omitempty"`
	// Remote is true when the snapshot came from another replica.
	Remote bool `json:"remote"`
}

func newChange(action domain.Action, prev, next *domain.Snapshot, remote bool) Change {
	diff := domain.Diff(&prev.State, &next.State)
	if diff != nil {
		diff.Seq = next.Seq
	}
	return Change{Action: action, Snapshot: next.Clone(), Diff: diff, Remote: remote}
}

const watchBuffer = 16

type watchers struct {
	mu     sync.RWMutex
	subs   map[chan Change]struct{}
	logger *slog.Logger
}

func newWatchers(logger *slog.Logger) *watchers {
	return &watchers{subs: make(map[chan Change]struct{}), logger: logger}
}

func (w *watchers) subscribe() (chan Change, func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	ch := make(chan Change, watchBuffer)
	w.subs[ch] = struct{}{}

	return ch, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if _, ok := w.subs[ch]; ok {
			delete(w.subs, ch)
			close(ch)
		}
	}
}

func (w *watchers) broadcast(c Change) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	for ch := range w.subs {
		select {
		case ch <- c:
		default:
			// Slow watcher
			w.logger.Warn("Watcher buffer full, dropping change", "action", c.Action, "seq", c.Snapshot.Seq)
		}
	}
}

// Watch returns a feed of local and replayed changes. The channel is closed
// when ctx is canceled. Slow readers miss changes rather than block writers.
func (s *Store) Watch(ctx context.Context) <-chan Change {
	ch, cancel := s.watchers.subscribe()
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return ch
}
