package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/intentflow/internal/logging"
	backend "github.com/redis/go-redis/v9"
)

// Replicator implements ports.Replicator over Redis pub/sub.
// Each key maps to the channel "<prefix>events:<key>".
type Replicator struct {
	client *backend.Client
	prefix string
	logger *slog.Logger
}

// NewReplicator creates a pub/sub replicator sharing client.
func NewReplicator(client *backend.Client, prefix string, logger *slog.Logger) *Replicator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Replicator{client: client, prefix: prefix, logger: logger}
}

// Channel returns the pub/sub channel used for key.
func (r *Replicator) Channel(key string) string {
	return r.prefix + "events:" + key
}

// Publish sends payload to every subscriber of key.
func (r *Replicator) Publish(ctx context.Context, key string, payload []byte) error {
	if err := r.client.Publish(ctx, r.Channel(key), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}
	return nil
}

// Subscribe waits for the subscription to be confirmed before returning.
func (r *Replicator) Subscribe(ctx context.Context, key string) (<-chan []byte, error) {
	ps := r.client.Subscribe(ctx, r.Channel(key))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", r.Channel(key), err)
	}

	out := make(chan []byte, 16)
	msgs := ps.Channel()

	go func() {
		defer close(out)
		defer ps.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
