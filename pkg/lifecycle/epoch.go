package lifecycle

import (
	"context"
	"fmt"

	"github.com/aretw0/intentflow/pkg/domain"
)

type epochKey struct{}

// WithEpoch binds ctx to a lifecycle epoch. Actions called with the returned
// context fail with domain.ErrStaleEpoch once a reset has advanced the epoch.
// Delayed callbacks should capture Store.Epoch when they are scheduled.
func WithEpoch(ctx context.Context, epoch uint64) context.Context {
	return context.WithValue(ctx, epochKey{}, epoch)
}

func epochFrom(ctx context.Context) (uint64, bool) {
	e, ok := ctx.Value(epochKey{}).(uint64)
	return e, ok
}

// CheckEpoch returns domain.ErrStaleEpoch if ctx is bound to an epoch a reset
// has superseded. Unbound contexts always pass.
func (s *Store) CheckEpoch(ctx context.Context) error {
	epoch, ok := epochFrom(ctx)
	if !ok {
		return nil
	}
	if current := s.Epoch(); epoch != current {
		return fmt.Errorf("%w (context epoch %d, store epoch %d)", domain.ErrStaleEpoch, epoch, current)
	}
	return nil
}
