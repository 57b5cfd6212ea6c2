package intentflow

import (
	"context"

	"github.com/aretw0/intentflow/pkg/lifecycle"
)

// Version is the release of the module, overridden at build time with
// -ldflags "-X github.com/aretw0/intentflow.Version=...".
var Version = "0.4.0-dev"

// Open creates a lifecycle store for key and adopts the snapshot already
// persisted under it, if any. Without lifecycle.WithStore the state lives in
// memory only.
func Open(ctx context.Context, key string, opts ...lifecycle.Option) (*lifecycle.Store, error) {
	st := lifecycle.New(key, opts...)
	if err := st.Hydrate(ctx); err != nil {
		return nil, err
	}
	return st, nil
}
