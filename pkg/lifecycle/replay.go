package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/intentflow/pkg/domain"
	"github.com/aretw0/intentflow/pkg/snapshot"
)

// ReplayRaw decodes an encoded snapshot and replays it.
// A malformed payload is logged and rejected with domain.ErrMalformedSnapshot;
// the local state is left untouched.
func (s *Store) ReplayRaw(ctx context.Context, payload []byte) (bool, error) {
	snap, err := snapshot.Decode(payload)
	if err != nil {
		s.logger.Warn("Rejected malformed replay payload", "key", s.key, "size", len(payload), "err", err)
		s.replayed(ctx, &domain.ReplayEvent{Reason: "malformed"})
		return false, err
	}
	return s.Replay(ctx, snap)
}

// Replay adopts snap as the full state if it was written by another replica and
// its (seq, origin) is strictly after the local position. A legacy snapshot,
// one without ordering metadata, always replaces the state and takes the next
// local seq so later local writes order after it. It reports whether the
// snapshot was applied.
func (s *Store) Replay(ctx context.Context, snap *domain.Snapshot) (bool, error) {
	if snap == nil {
		return false, fmt.Errorf("%w: nil snapshot", domain.ErrMalformedSnapshot)
	}
	ev := &domain.ReplayEvent{Origin: snap.Origin, Seq: snap.Seq}

	if snap.Origin == s.origin {
		ev.Reason = "own origin"
		s.replayed(ctx, ev)
		return false, nil
	}

	s.mu.Lock()
	if snap.Legacy() {
		prev := s.snap
		next := snap.Clone()
		next.State.Normalize()
		next.Seq = prev.Seq + 1
		next.Epoch = prev.Epoch
		next.Origin = ""
		s.snap = next
		change := newChange(domain.ActionReplay, prev, next, true)
		s.mu.Unlock()

		s.logger.Debug("Replayed legacy snapshot", "key", s.key, "seq", next.Seq)
		s.watchers.broadcast(change)
		ev.Seq = next.Seq
		ev.Applied = true
		s.replayed(ctx, ev)
		return true, nil
	}
	if !snap.NewerThan(s.snap.Seq, s.snap.Origin) {
		local := s.snap.Seq
		s.mu.Unlock()
		s.logger.Debug("Dropping stale snapshot", "key", s.key, "seq", snap.Seq, "local_seq", local, "origin", snap.Origin)
		ev.Reason = "stale"
		s.replayed(ctx, ev)
		return false, nil
	}
	prev := s.snap
	next := snap.Clone()
	next.State.Normalize()
	s.snap = next
	change := newChange(domain.ActionReplay, prev, next, true)
	s.mu.Unlock()

	s.logger.Debug("Replayed snapshot", "key", s.key, "seq", next.Seq, "origin", next.Origin)
	s.watchers.broadcast(change)
	ev.Applied = true
	s.replayed(ctx, ev)
	return true, nil
}

func (s *Store) replayed(ctx context.Context, ev *domain.ReplayEvent) {
	if s.hooks.OnReplay == nil {
		return
	}
	ev.Key = s.key
	ev.Timestamp = s.clock()
	s.hooks.OnReplay(ctx, ev)
}

// Hydrate adopts the persisted snapshot, if any. It is meant to run once at
// startup, before the replica starts acting; a pristine store adopts even a
// legacy snapshot that carries no sequence number.
func (s *Store) Hydrate(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	persisted, err := s.store.Load(ctx, s.key)
	if err != nil {
		if errors.Is(err, domain.ErrSnapshotNotFound) {
			return nil
		}
		return fmt.Errorf("failed to hydrate %q: %w", s.key, err)
	}

	s.mu.Lock()
	pristine := s.snap.Seq == 0 && s.snap.Origin == ""
	if !pristine && !persisted.NewerThan(s.snap.Seq, s.snap.Origin) {
		s.mu.Unlock()
		return nil
	}
	prev := s.snap
	persisted.State.Normalize()
	s.snap = persisted
	change := newChange(domain.ActionHydrate, prev, persisted, true)
	s.mu.Unlock()

	s.logger.Debug("Hydrated from persisted snapshot", "key", s.key, "seq", persisted.Seq)
	s.watchers.broadcast(change)
	return nil
}

// Follow subscribes to the replicator and replays every payload it delivers.
// It returns once the subscription is active; the returned channel is closed
// when following stops because ctx was canceled or the transport closed.
func (s *Store) Follow(ctx context.Context) (<-chan struct{}, error) {
	done := make(chan struct{})
	if s.replicator == nil {
		close(done)
		return done, nil
	}
	payloads, err := s.replicator.Subscribe(ctx, s.key)
	if err != nil {
		close(done)
		return done, fmt.Errorf("failed to follow %q: %w", s.key, err)
	}

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case payload, ok := <-payloads:
				if !ok {
					return
				}
				// Malformed payloads are already logged.
				_, _ = s.ReplayRaw(ctx, payload)
			}
		}
	}()
	return done, nil
}
