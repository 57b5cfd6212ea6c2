package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"sync"

	"github.com/aretw0/intentflow/internal/logging"
	"github.com/aretw0/intentflow/pkg/adapters/memory"
	"github.com/aretw0/intentflow/pkg/lifecycle"
	"github.com/aretw0/intentflow/pkg/ports"
)

var (
	// ErrInvalidWorkspace is returned for names outside [A-Za-z0-9_.-].
	ErrInvalidWorkspace = errors.New("invalid workspace name")
	// ErrClosed is returned by Open after Close.
	ErrClosed = errors.New("session manager closed")
)

var workspaceName = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// workspace is an open lifecycle and its replay follower.
type workspace struct {
	store  *lifecycle.Store
	cancel context.CancelFunc
	done   <-chan struct{}
}

// Manager orchestrates workspace access, ensuring safe concurrent operations.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	store      ports.SnapshotStore
	replicator ports.Replicator
	locker     ports.DistributedLocker
	storeOpts  []lifecycle.Option

	mu         sync.Mutex            // Global lock for the maps
	locks      map[string]*lockEntry // Map of active locks
	workspaces map[string]*workspace
	closed     bool

	logger *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithReplicator makes every opened workspace publish and follow snapshots.
func WithReplicator(r ports.Replicator) Option {
	return func(m *Manager) {
		m.replicator = r
	}
}

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithStoreOptions appends options applied to every opened lifecycle.
func WithStoreOptions(opts ...lifecycle.Option) Option {
	return func(m *Manager) {
		m.storeOpts = append(m.storeOpts, opts...)
	}
}

// NewManager creates a workspace Manager over the given snapshot store.
// A nil store keeps snapshots in memory.
func NewManager(store ports.SnapshotStore, opts ...Option) *Manager {
	if store == nil {
		store = memory.NewStore()
	}
	m := &Manager{
		store:      store,
		locks:      make(map[string]*lockEntry),
		workspaces: make(map[string]*workspace),
		logger:     logging.NewNop(), // Default to no-op
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ValidName reports whether name can be used as a workspace key.
func ValidName(name string) bool {
	return workspaceName.MatchString(name)
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(name) after unlocking.
func (m *Manager) acquire(name string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[name]
	if !exists {
		entry = &lockEntry{}
		m.locks[name] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[name]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, name)
	}
}

// Open returns the lifecycle of the named workspace, creating, hydrating and
// following it on first use.
func (m *Manager) Open(ctx context.Context, name string) (*lifecycle.Store, error) {
	if !ValidName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidWorkspace, name)
	}
	if st, ok := m.Get(name); ok {
		return st, nil
	}

	var st *lifecycle.Store
	err := m.withLocalLock(name, func() error {
		// Another caller may have opened it while we waited.
		if existing, ok := m.Get(name); ok {
			st = existing
			return nil
		}

		opts := []lifecycle.Option{
			lifecycle.WithStore(m.store),
			lifecycle.WithLogger(m.logger.With("workspace", name)),
		}
		if m.replicator != nil {
			opts = append(opts, lifecycle.WithReplicator(m.replicator))
		}
		if m.locker != nil {
			opts = append(opts, lifecycle.WithLocker(m.locker))
		}
		opts = append(opts, m.storeOpts...)
		created := lifecycle.New(name, opts...)

		if err := created.Hydrate(ctx); err != nil {
			return err
		}

		followCtx, cancel := context.WithCancel(context.Background())
		done, err := created.Follow(followCtx)
		if err != nil {
			cancel()
			return err
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		if m.closed {
			cancel()
			return ErrClosed
		}
		m.workspaces[name] = &workspace{store: created, cancel: cancel, done: done}
		st = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.logger.Debug("Opened workspace", "workspace", name, "seq", st.Seq())
	return st, nil
}

// Get returns an already opened workspace.
func (m *Manager) Get(name string) (*lifecycle.Store, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws, ok := m.workspaces[name]
	if !ok {
		return nil, false
	}
	return ws.store, true
}

// List returns the persisted and the opened workspace names, sorted.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	names, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	for name := range m.workspaces {
		names = append(names, name)
	}
	m.mu.Unlock()

	slices.Sort(names)
	return slices.Compact(names), nil
}

// Delete stops following the workspace and removes its persisted snapshot.
func (m *Manager) Delete(ctx context.Context, name string) error {
	if !ValidName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidWorkspace, name)
	}
	return m.WithLock(ctx, name, func(ctx context.Context) error {
		m.mu.Lock()
		ws, ok := m.workspaces[name]
		delete(m.workspaces, name)
		m.mu.Unlock()

		if ok {
			ws.stop()
		}
		return m.store.Delete(ctx, name)
	})
}

// Store returns the underlying snapshot store.
func (m *Manager) Store() ports.SnapshotStore {
	return m.store
}

// Close stops every follower. Opened lifecycles stay usable but no longer replay.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	open := m.workspaces
	m.workspaces = make(map[string]*workspace)
	m.mu.Unlock()

	for _, ws := range open {
		ws.stop()
	}
	return nil
}

func (ws *workspace) stop() {
	ws.cancel()
	<-ws.done
}

// WithLock executes a function while holding the lock for the workspace.
// The distributed lock key is distinct from the one lifecycle actions take,
// so fn may run actions on the workspace.
func (m *Manager) WithLock(ctx context.Context, name string, fn func(context.Context) error) error {
	return m.withLocalLock(name, func() error {
		// Distributed Locking
		if m.locker != nil {
			unlock, err := m.locker.Lock(ctx, "workspace:"+name, lifecycle.DefaultLockTTL)
			if err != nil {
				return fmt.Errorf("failed to acquire distributed lock: %w", err)
			}
			defer func() {
				if err := unlock(ctx); err != nil {
					m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
						"workspace", name,
						"err", err,
					)
				}
			}()
		}
		return fn(ctx)
	})
}

func (m *Manager) withLocalLock(name string, fn func() error) error {
	entry := m.acquire(name)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(name)
	}()
	return fn()
}
