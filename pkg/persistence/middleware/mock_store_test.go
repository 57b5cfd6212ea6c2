package middleware_test

import (
	"context"

	"github.com/aretw0/intentflow/pkg/domain"
	"github.com/aretw0/intentflow/pkg/ports"
)

// MockStore is a simple map-based store for testing middleware.
type MockStore struct {
	data map[string]*domain.Snapshot
}

func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[string]*domain.Snapshot),
	}
}

func (s *MockStore) Save(ctx context.Context, key string, snap *domain.Snapshot) error {
	s.data[key] = snap.Clone()
	return nil
}

func (s *MockStore) Load(ctx context.Context, key string) (*domain.Snapshot, error) {
	snap, ok := s.data[key]
	if !ok {
		return nil, domain.ErrSnapshotNotFound
	}
	return snap.Clone(), nil
}

func (s *MockStore) Delete(ctx context.Context, key string) error {
	delete(s.data, key)
	return nil
}

func (s *MockStore) List(ctx context.Context) ([]string, error) {
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys, nil
}

var _ ports.SnapshotStore = (*MockStore)(nil)

func strp(s string) *string { return &s }

func secretSnapshot() *domain.Snapshot {
	st := domain.NewState()
	st.IntentID = strp("0xabc")
	st.OriginalText = strp("move my savings to the best yield")
	st.EncryptedPayload = strp("0xdeadbeef")
	st.ParsedIntent = &domain.ParsedIntent{
		Goal:   "maximize_yield",
		Assets: []domain.Asset{{Chain: "Arbitrum", Token: "USDC", Amount: "250"}},
	}
	return &domain.Snapshot{State: *st, Seq: 4, Epoch: 1, Origin: "tab-a"}
}
