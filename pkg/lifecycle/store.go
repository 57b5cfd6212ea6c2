package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/intentflow/internal/logging"
	"github.com/aretw0/intentflow/pkg/domain"
	"github.com/aretw0/intentflow/pkg/ports"
	"github.com/aretw0/intentflow/pkg/snapshot"
	"github.com/google/uuid"
)

// DefaultLockTTL bounds how long a crashed replica can hold the workspace lock.
const DefaultLockTTL = 30 * time.Second

// errNoop marks an action that matched nothing and must not be written.
var errNoop = errors.New("no-op")

// Store is the intent lifecycle state container for one workspace key.
// It is safe for concurrent use.
type Store struct {
	key    string
	origin string

	mu   sync.Mutex
	snap *domain.Snapshot

	store      ports.SnapshotStore
	replicator ports.Replicator
	locker     ports.DistributedLocker
	lockTTL    time.Duration

	templates []domain.StepTemplate
	strict    bool
	clock     func() time.Time
	logger    *slog.Logger
	hooks     domain.LifecycleHooks

	watchers *watchers
}

// Option configures the Store.
type Option func(*Store)

// WithStore persists every committed action to the given SnapshotStore.
func WithStore(store ports.SnapshotStore) Option {
	return func(s *Store) {
		s.store = store
	}
}

// WithReplicator publishes committed snapshots and enables Follow.
func WithReplicator(r ports.Replicator) Option {
	return func(s *Store) {
		s.replicator = r
	}
}

// WithLocker serializes actions across replicas sharing the same store.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(s *Store) {
		s.locker = locker
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.lockTTL = ttl
	}
}

// WithTemplates sets the steps created by StartExecution.
func WithTemplates(templates []domain.StepTemplate) Option {
	return func(s *Store) {
		s.templates = append([]domain.StepTemplate(nil), templates...)
	}
}

// WithStrictStepOrder rejects completing a step before all earlier steps are completed.
func WithStrictStepOrder(strict bool) Option {
	return func(s *Store) {
		s.strict = strict
	}
}

// WithClock sets the time source used for step timestamps and snapshot times.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		s.clock = clock
	}
}

// WithLogger configures a logger for the Store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithHooks registers observability callbacks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(s *Store) {
		s.hooks = hooks
	}
}

// WithOrigin sets the replica identity. It defaults to a random UUID.
func WithOrigin(origin string) Option {
	return func(s *Store) {
		s.origin = origin
	}
}

// New creates a Store for key holding the initial state.
func New(key string, opts ...Option) *Store {
	if key == "" {
		key = domain.DefaultKey
	}
	s := &Store{
		key:       key,
		origin:    uuid.NewString(),
		snap:      &domain.Snapshot{State: *domain.NewState(), Version: domain.SchemaVersion},
		lockTTL:   DefaultLockTTL,
		templates: domain.DefaultStepTemplates(),
		clock:     func() time.Time { return time.Now().UTC() },
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.watchers = newWatchers(s.logger)
	return s
}

// Key returns the workspace key.
func (s *Store) Key() string { return s.key }

// Origin returns the replica identity stamped on every write.
func (s *Store) Origin() string { return s.origin }

// State returns a deep copy of the current state.
func (s *Store) State() *domain.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.State.Clone()
}

// Snapshot returns a deep copy of the current envelope.
func (s *Store) Snapshot() *domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Clone()
}

// Seq returns the sequence number of the current snapshot.
func (s *Store) Seq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Seq
}

// Epoch returns the number of resets the current snapshot has seen.
func (s *Store) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Epoch
}

// Templates returns the configured step templates.
func (s *Store) Templates() []domain.StepTemplate {
	return append([]domain.StepTemplate(nil), s.templates...)
}

// apply runs one action: lock, catch up, validate, persist, commit, publish, notify.
// mutate receives a private copy of the current snapshot and may edit State and Epoch.
func (s *Store) apply(ctx context.Context, action domain.Action, mutate func(next *domain.Snapshot) error) error {
	var changes []Change
	err := s.applyLocked(ctx, action, mutate, &changes)

	for _, c := range changes {
		s.watchers.broadcast(c)
	}
	if errors.Is(err, errNoop) {
		return nil
	}
	if s.hooks.OnAction != nil {
		ev := &domain.ActionEvent{
			Timestamp: s.clock(),
			Key:       s.key,
			Action:    action,
			Err:       err,
		}
		if n := len(changes); n > 0 {
			ev.Seq = changes[n-1].Snapshot.Seq
			ev.Epoch = changes[n-1].Snapshot.Epoch
		}
		s.hooks.OnAction(ctx, ev)
	}
	return err
}

func (s *Store) applyLocked(ctx context.Context, action domain.Action, mutate func(*domain.Snapshot) error, changes *[]Change) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locker != nil {
		unlock, err := s.locker.Lock(ctx, s.key, s.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire workspace lock: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("Failed to release workspace lock (will expire via TTL)",
					"key", s.key,
					"err", err,
				)
			}
		}()
		if c, ok := s.catchUp(ctx); ok {
			*changes = append(*changes, c)
		}
	}

	if epoch, ok := epochFrom(ctx); ok && epoch != s.snap.Epoch {
		return fmt.Errorf("%s: %w (context epoch %d, store epoch %d)", action, domain.ErrStaleEpoch, epoch, s.snap.Epoch)
	}

	prev := s.snap
	next := prev.Clone()
	if err := mutate(next); err != nil {
		if errors.Is(err, errNoop) {
			return err
		}
		return fmt.Errorf("%s: %w", action, err)
	}
	next.Version = domain.SchemaVersion
	next.Seq = prev.Seq + 1
	next.Origin = s.origin
	next.UpdatedAt = s.clock()

	if s.store != nil {
		if err := s.store.Save(ctx, s.key, next); err != nil {
			return fmt.Errorf("%s: failed to persist snapshot: %w", action, err)
		}
	}
	s.snap = next

	s.publish(ctx, next)

	*changes = append(*changes, newChange(action, prev, next, false))
	s.logger.Debug("Action applied", "key", s.key, "action", action, "seq", next.Seq)
	return nil
}

// catchUp adopts a newer persisted snapshot. Called with s.mu held.
func (s *Store) catchUp(ctx context.Context) (Change, bool) {
	if s.store == nil {
		return Change{}, false
	}
	persisted, err := s.store.Load(ctx, s.key)
	if err != nil {
		if !errors.Is(err, domain.ErrSnapshotNotFound) {
			s.logger.Warn("Catch-up load failed", "key", s.key, "err", err)
		}
		return Change{}, false
	}
	if !persisted.NewerThan(s.snap.Seq, s.snap.Origin) {
		return Change{}, false
	}
	prev := s.snap
	persisted.State.Normalize()
	s.snap = persisted
	s.logger.Debug("Caught up with persisted snapshot", "key", s.key, "seq", persisted.Seq, "origin", persisted.Origin)
	return newChange(domain.ActionReplay, prev, persisted, true), true
}

func (s *Store) publish(ctx context.Context, snap *domain.Snapshot) {
	if s.replicator == nil {
		return
	}
	payload, err := snapshot.Encode(snap)
	if err != nil {
		s.logger.Error("Failed to encode snapshot for replication", "key", s.key, "err", err)
		return
	}
	if err := s.replicator.Publish(ctx, s.key, payload); err != nil {
		s.logger.Warn("Failed to publish snapshot", "key", s.key, "seq", snap.Seq, "err", err)
	}
}
