package cli

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/intentflow/internal/config"
	"github.com/aretw0/intentflow/internal/logging"
	"github.com/aretw0/intentflow/pkg/domain"
	"github.com/aretw0/intentflow/pkg/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bootstrap(t *testing.T, mutate func(*config.Config)) *Runtime {
	t.Helper()
	cfg := config.Default()
	cfg.Simulate.Delay = 0
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, cfg.Validate())
	rt, err := Bootstrap(cfg, logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	return rt
}

func intent(text string) domain.Intent {
	return domain.Intent{IntentID: "0xabc", Commitment: "0xabc", OriginalText: text}
}

func TestBootstrap_MemoryDefault(t *testing.T) {
	rt := bootstrap(t, nil)
	ctx := context.Background()

	st, err := rt.Open(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "intent-storage", st.Key())
	require.NoError(t, st.SetIntent(ctx, intent("hello")))

	snap, err := rt.Backend.Load(ctx, "intent-storage")
	require.NoError(t, err)
	assert.Equal(t, "hello", *snap.State.OriginalText)
}

func TestBootstrap_EncryptionAndPII(t *testing.T) {
	key := base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))
	rt := bootstrap(t, func(c *config.Config) {
		c.Security.EncryptionKey = key
		c.Security.MaskPII = true
	})
	ctx := context.Background()

	st, err := rt.Open(ctx, "secure")
	require.NoError(t, err)
	require.NoError(t, st.SetIntent(ctx, intent("my secret plan")))

	raw, err := rt.Backend.Load(ctx, "secure")
	require.NoError(t, err)
	assert.NotEmpty(t, raw.Sealed)
	assert.Nil(t, raw.State.IntentID, "plaintext state must not reach the backend")
	assert.Equal(t, uint64(1), raw.Seq)

	opened, err := rt.Manager.Store().Load(ctx, "secure")
	require.NoError(t, err)
	assert.Equal(t, "***", *opened.State.OriginalText)
	assert.Equal(t, "0xabc", *opened.State.IntentID)

	// The live state keeps the real text.
	assert.Equal(t, "my secret plan", *st.State().OriginalText)
}

func TestBootstrap_PIIMaskedSlotIsLossy(t *testing.T) {
	dir := t.TempDir()
	cfg := func(c *config.Config) {
		c.Store.Backend = config.BackendFile
		c.Store.Dir = dir
		c.Security.MaskPII = true
	}
	ctx := context.Background()

	writer, err := bootstrap(t, cfg).Open(ctx, "masked")
	require.NoError(t, err)
	require.NoError(t, writer.SetIntent(ctx, intent("my secret plan")))

	// A fresh runtime hydrates the placeholder, not the original text.
	reader, err := bootstrap(t, cfg).Open(ctx, "masked")
	require.NoError(t, err)
	assert.Equal(t, "***", *reader.State().OriginalText)
	assert.Equal(t, "0xabc", *reader.State().IntentID)
	assert.Equal(t, writer.Seq(), reader.Seq())
}

func TestBootstrap_LifecycleOptions(t *testing.T) {
	rt := bootstrap(t, func(c *config.Config) {
		c.Lifecycle.StrictStepOrder = true
		c.Lifecycle.Templates = []domain.StepTemplate{{Description: "Only step"}, {Description: "Second"}}
	})
	ctx := context.Background()

	st, err := rt.Open(ctx, "opts")
	require.NoError(t, err)
	require.NoError(t, st.StartExecution(ctx))
	assert.Len(t, st.State().ExecutionSteps, 2)

	err = st.UpdateExecutionStep(ctx, 2, domain.StepCompleted, nil)
	assert.ErrorIs(t, err, domain.ErrStepOutOfOrder)
}

func TestBootstrap_RedisReplicas(t *testing.T) {
	mr := miniredis.RunT(t)
	redisCfg := func(c *config.Config) {
		c.Store.Backend = config.BackendRedis
		c.Store.Redis.Addr = mr.Addr()
		c.Replication.Backend = config.BackendRedis
		c.Lock.Backend = config.BackendRedis
		c.Lock.TTL = 5 * time.Second
	}
	a := bootstrap(t, redisCfg)
	b := bootstrap(t, redisCfg)
	ctx := context.Background()

	stA, err := a.Open(ctx, "shared")
	require.NoError(t, err)
	stB, err := b.Open(ctx, "shared")
	require.NoError(t, err)

	require.NoError(t, stA.SetIntent(ctx, intent("from a")))
	assert.Eventually(t, func() bool {
		s := stB.State()
		return s.IntentID != nil && *s.OriginalText == "from a"
	}, 2*time.Second, 10*time.Millisecond)

	// B writes on top of A's write without losing it.
	require.NoError(t, stB.SetAuthorization(ctx, "0xauth"))
	assert.Eventually(t, func() bool {
		s := stA.State()
		return s.AuthorizationTx != nil && s.IntentID != nil
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, uint64(2), stB.Seq())

	names, err := a.Manager.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, "shared")
}

func TestBootstrap_BadKey(t *testing.T) {
	cfg := config.Default()
	cfg.Security.EncryptionKey = "0x01"
	_, err := Bootstrap(cfg, logging.NewNop())
	assert.Error(t, err)
}

func TestRuntime_Pipeline(t *testing.T) {
	rt := bootstrap(t, func(c *config.Config) { c.Simulate.Strategy = "lowest_gas" })
	ctx := context.Background()

	st, err := rt.Open(ctx, "sim")
	require.NoError(t, err)
	p, err := rt.Pipeline(st)
	require.NoError(t, err)
	require.NoError(t, p.Run(ctx, "Supply my USDC for 3 months with max 3% gas"))

	state := st.State()
	require.NotNil(t, state.Winner)
	assert.Equal(t, "solver_b", state.Winner.SolverID)
	assert.Equal(t, domain.ExecutionCompleted, state.ExecutionStatus)
}

func TestSummarize(t *testing.T) {
	prev := &domain.Snapshot{State: *domain.NewState()}
	next := prev.Clone()
	next.Seq = 4
	next.Origin = "tab-b"
	next.State.ZkProofs = append(next.State.ZkProofs, domain.ZkProof{Type: "x", Status: domain.ProofVerified})
	diff := domain.Diff(&prev.State, &next.State)

	line := Summarize(lifecycle.Change{Action: domain.ActionAddZkProof, Snapshot: next, Diff: diff, Remote: true})
	assert.Contains(t, line, "seq=4")
	assert.Contains(t, line, "remote tab-b")
	assert.Contains(t, line, "[proofs]")
}
