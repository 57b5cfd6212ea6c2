package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/intentflow/pkg/adapters/redis"
	"github.com/aretw0/intentflow/pkg/domain"
	"github.com/aretw0/intentflow/pkg/lifecycle"
	"github.com/aretw0/intentflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisReplicator_Contract(t *testing.T) {
	_, client := newClient(t)
	r := redis.NewReplicator(client, redis.DefaultPrefix, nil)
	ports.RunReplicatorContract(t, r, r)
}

func TestRedisReplicator_Channel(t *testing.T) {
	_, client := newClient(t)
	r := redis.NewReplicator(client, "app:", nil)
	assert.Equal(t, "app:events:intent-storage", r.Channel(domain.DefaultKey))
}

// Replicas in different processes share a Redis instance for storage, locking and signalling.
func TestRedis_ReplicasConverge(t *testing.T) {
	_, client := newClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	newReplica := func(origin string) *lifecycle.Store {
		return lifecycle.New("ws",
			lifecycle.WithStore(redis.NewFromClient(client)),
			lifecycle.WithLocker(redis.NewLocker(client, redis.DefaultPrefix)),
			lifecycle.WithReplicator(redis.NewReplicator(client, redis.DefaultPrefix, nil)),
			lifecycle.WithOrigin(origin),
		)
	}
	a := newReplica("a")
	b := newReplica("b")
	_, err := b.Follow(ctx)
	require.NoError(t, err)

	require.NoError(t, a.SetIntent(ctx, domain.Intent{IntentID: "0x1"}))
	require.NoError(t, b.StartExecution(ctx))
	require.NoError(t, a.UpdateExecutionStep(ctx, 1, domain.StepCompleted, nil))

	st := a.State()
	assert.Equal(t, "0x1", *st.IntentID, "b's write must build on a's intent")
	assert.Equal(t, domain.ExecutionInProgress, st.ExecutionStatus)
	assert.Equal(t, domain.StepCompleted, st.ExecutionSteps[0].Status)

	require.Eventually(t, func() bool { return b.Seq() == 3 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, a.State(), b.State())
}
