package ports

import "context"

// Replicator carries encoded snapshots between replicas of the same key.
//
// Delivery is at-most-once and unordered; receivers order payloads by the
// snapshot's (seq, origin) and must tolerate duplicates and their own writes.
type Replicator interface {
	// Publish broadcasts an encoded snapshot for key.
	Publish(ctx context.Context, key string, payload []byte) error

	// Subscribe returns a channel of payloads published for key.
	// The channel is closed when ctx is canceled or the transport shuts down.
	// Subscribe returns only after the subscription is active.
	Subscribe(ctx context.Context, key string) (<-chan []byte, error)
}
