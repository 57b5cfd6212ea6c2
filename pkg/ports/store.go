package ports

import (
	"context"

	"github.com/aretw0/intentflow/pkg/domain"
)

// SnapshotStore defines the interface for persisting lifecycle snapshots.
// It is the durable slot that replicas rehydrate from.
type SnapshotStore interface {
	// Save persists the snapshot for a given key, replacing any previous one.
	Save(ctx context.Context, key string, snap *domain.Snapshot) error

	// Load retrieves the snapshot for a given key.
	// Returns domain.ErrSnapshotNotFound if the key does not exist.
	Load(ctx context.Context, key string) (*domain.Snapshot, error)

	// Delete removes the snapshot for a given key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns the keys that currently hold a snapshot.
	List(ctx context.Context) ([]string, error)
}
