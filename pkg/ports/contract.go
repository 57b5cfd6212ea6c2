package ports

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/intentflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contractSnapshot(seq uint64) *domain.Snapshot {
	s := domain.NewState()
	id := fmt.Sprintf("0x%04d", seq)
	s.IntentID = &id
	s.AuctionStatus = domain.PhasePending
	s.ParsedIntent = &domain.ParsedIntent{
		Goal:   "swap",
		Assets: []domain.Asset{{Chain: "Arbitrum", Token: "USDC", Amount: "100"}},
	}
	s.ZkProofs = []domain.ZkProof{{Type: "Intent Commitment Proof", Status: domain.ProofVerified}}
	return &domain.Snapshot{
		State:     *s,
		Version:   domain.SchemaVersion,
		Seq:       seq,
		Epoch:     1,
		Origin:    "contract",
		UpdatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// RunSnapshotStoreContract runs a suite of tests to verify that a SnapshotStore
// implementation adheres to the defined interface contract.
func RunSnapshotStoreContract(t *testing.T, store SnapshotStore) {
	ctx := context.Background()
	key := "contract-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		snap := contractSnapshot(1)
		require.NoError(t, store.Save(ctx, key, snap), "Save should not return error")

		loaded, err := store.Load(ctx, key)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, snap, loaded)
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, key, contractSnapshot(2)))
		loaded, err := store.Load(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), loaded.Seq)
		assert.Equal(t, "0x0002", *loaded.State.IntentID)
	})

	t.Run("Load Isolation", func(t *testing.T) {
		loaded, err := store.Load(ctx, key)
		require.NoError(t, err)
		loaded.State.ZkProofs[0].Type = "mutated"

		again, err := store.Load(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "Intent Commitment Proof", again.State.ZkProofs[0].Type)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+key)
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, key, contractSnapshot(3)))
		require.NoError(t, store.Delete(ctx, key), "Delete should not return error")

		_, err := store.Load(ctx, key)
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound, "Load after Delete should return ErrSnapshotNotFound")

		assert.NoError(t, store.Delete(ctx, key), "Delete of a missing key is not an error")
	})

	t.Run("List", func(t *testing.T) {
		k1, k2 := key+"-1", key+"-2"
		require.NoError(t, store.Save(ctx, k1, contractSnapshot(1)))
		require.NoError(t, store.Save(ctx, k2, contractSnapshot(1)))
		defer func() {
			_ = store.Delete(ctx, k1)
			_ = store.Delete(ctx, k2)
		}()

		keys, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, keys, k1)
		assert.Contains(t, keys, k2)
	})
}

// RunReplicatorContract verifies a Replicator. The publisher and subscriber may be
// the same value or two values sharing one transport.
func RunReplicatorContract(t *testing.T, pub, sub Replicator) {
	key := "contract-" + time.Now().Format("20060102150405")

	t.Run("Publish Reaches Subscriber", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		ch, err := sub.Subscribe(ctx, key)
		require.NoError(t, err)

		require.NoError(t, pub.Publish(ctx, key, []byte(`{"state":{}}`)))

		select {
		case got := <-ch:
			assert.JSONEq(t, `{"state":{}}`, string(got))
		case <-time.After(2 * time.Second):
			t.Fatal("payload not delivered")
		}
	})

	t.Run("Keys Are Isolated", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		ch, err := sub.Subscribe(ctx, key+"-a")
		require.NoError(t, err)

		require.NoError(t, pub.Publish(ctx, key+"-b", []byte(`{"state":{"b":1}}`)))
		require.NoError(t, pub.Publish(ctx, key+"-a", []byte(`{"state":{"a":1}}`)))

		select {
		case got := <-ch:
			assert.JSONEq(t, `{"state":{"a":1}}`, string(got))
		case <-time.After(2 * time.Second):
			t.Fatal("payload not delivered")
		}
	})

	t.Run("Fan Out", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		ch1, err := sub.Subscribe(ctx, key+"-fan")
		require.NoError(t, err)
		ch2, err := sub.Subscribe(ctx, key+"-fan")
		require.NoError(t, err)

		require.NoError(t, pub.Publish(ctx, key+"-fan", []byte(`{"state":{}}`)))

		var wg sync.WaitGroup
		for _, ch := range []<-chan []byte{ch1, ch2} {
			wg.Add(1)
			go func(ch <-chan []byte) {
				defer wg.Done()
				select {
				case <-ch:
				case <-time.After(2 * time.Second):
					t.Error("subscriber missed payload")
				}
			}(ch)
		}
		wg.Wait()
	})

	t.Run("Cancel Closes Channel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		ch, err := sub.Subscribe(ctx, key+"-cancel")
		require.NoError(t, err)
		cancel()

		deadline := time.After(2 * time.Second)
		for {
			select {
			case _, ok := <-ch:
				if !ok {
					return
				}
			case <-deadline:
				t.Fatal("channel not closed after cancel")
			}
		}
	})
}
