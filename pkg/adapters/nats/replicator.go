// Package nats replicates lifecycle snapshots over core NATS subjects.
package nats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/intentflow/internal/logging"
	"github.com/nats-io/nats.go"
)

// DefaultPrefix is the subject prefix used when none is configured.
const DefaultPrefix = "intentflow"

// Replicator implements ports.Replicator over core NATS.
// Each key maps to the subject "<prefix>.<key>".
type Replicator struct {
	conn   *nats.Conn
	prefix string
	logger *slog.Logger
}

// Connect dials url with reconnects enabled and wraps the connection.
func Connect(url, prefix string, logger *slog.Logger) (*Replicator, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	conn, err := nats.Connect(url,
		nats.Name("intentflow"),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return New(conn, prefix, logger), nil
}

// New wraps an existing connection.
func New(conn *nats.Conn, prefix string, logger *slog.Logger) *Replicator {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Replicator{conn: conn, prefix: prefix, logger: logger}
}

// Subject returns the subject used for key.
func (r *Replicator) Subject(key string) string {
	return r.prefix + "." + key
}

// Publish sends payload on the key's subject.
func (r *Replicator) Publish(ctx context.Context, key string, payload []byte) error {
	if err := r.conn.Publish(r.Subject(key), payload); err != nil {
		return fmt.Errorf("failed to publish to NATS: %w", err)
	}
	return nil
}

// Subscribe flushes the subscription to the server before returning.
func (r *Replicator) Subscribe(ctx context.Context, key string) (<-chan []byte, error) {
	msgs := make(chan *nats.Msg, 64)
	sub, err := r.conn.ChanSubscribe(r.Subject(key), msgs)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", r.Subject(key), err)
	}
	if err := r.conn.FlushWithContext(ctx); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("failed to flush subscription: %w", err)
	}

	out := make(chan []byte, 16)
	go func() {
		defer close(out)
		defer func() {
			if err := sub.Unsubscribe(); err != nil && r.conn.IsConnected() {
				r.logger.Debug("NATS unsubscribe failed", "subject", sub.Subject, "err", err)
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-msgs:
				select {
				case out <- msg.Data:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close drains and closes the connection.
func (r *Replicator) Close() error {
	return r.conn.Drain()
}
