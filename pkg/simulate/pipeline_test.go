package simulate_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/intentflow/pkg/auction"
	"github.com/aretw0/intentflow/pkg/domain"
	"github.com/aretw0/intentflow/pkg/lifecycle"
	"github.com/aretw0/intentflow/pkg/simulate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const demoText = "Use all my stablecoins for 3 months, highest APY, tolerate 3% gas"

func TestPipeline_Run(t *testing.T) {
	store := lifecycle.New("demo")
	var stages []simulate.Stage
	p := simulate.New(store,
		simulate.WithDelay(0),
		simulate.WithStageHook(func(s simulate.Stage) { stages = append(stages, s) }),
	)

	require.NoError(t, p.Run(context.Background(), demoText))

	st := store.State()
	assert.Equal(t, demoText, *st.OriginalText)
	assert.Equal(t, domain.PhaseCompleted, st.AuctionStatus)
	assert.Equal(t, domain.PhaseCompleted, st.AuthorizationStatus)
	assert.Equal(t, domain.ExecutionCompleted, st.ExecutionStatus)

	require.NotNil(t, st.Winner)
	assert.Equal(t, "solver_a", st.Winner.SolverID)
	require.Len(t, st.SolverBids, 3)
	assert.False(t, st.SolverBids[2].Qualified)

	require.Len(t, st.ExecutionSteps, 4)
	for _, step := range st.ExecutionSteps {
		assert.Equal(t, domain.StepCompleted, step.Status)
		assert.NotNil(t, step.Timestamp)
	}
	assert.Equal(t, "$3.50", st.ExecutionSteps[0].Fee)
	assert.Equal(t, simulate.DemoResult(), *st.FinalResult)

	require.Len(t, st.ZkProofs, 4)
	assert.Equal(t, "Execution Proof", st.ZkProofs[3].Type)
	assert.Contains(t, st.ZkProofs[3].Hash, "0xexec_")

	assert.Equal(t, []simulate.Stage{
		simulate.StageIntent, simulate.StageAuction, simulate.StageAuthorization,
		simulate.StageExecution, simulate.StageDone,
	}, stages)
}

func TestPipeline_Strategy(t *testing.T) {
	store := lifecycle.New("demo")
	p := simulate.New(store,
		simulate.WithDelay(0),
		simulate.WithAuctioneer(auction.New(auction.WithStrategy(auction.LowestGas))),
	)
	require.NoError(t, p.Run(context.Background(), demoText))
	assert.Equal(t, "solver_b", store.State().Winner.SolverID)
}

func TestPipeline_TightGasBudget(t *testing.T) {
	store := lifecycle.New("demo")
	p := simulate.New(store, simulate.WithDelay(0))

	require.NoError(t, p.Run(context.Background(), "swap 100 USDC for 1 month, 2% gas"))

	st := store.State()
	require.NotNil(t, st.Winner)
	assert.Equal(t, "solver_a", st.Winner.SolverID)
	assert.InDelta(t, 10.0, st.Winner.EstimatedGas, 0.001)
	assert.InDelta(t, 2.0, st.Winner.GasPercentage, 0.001)
	assert.True(t, strings.HasPrefix(st.Winner.Strategy, "optimized: "))

	charlie := st.SolverBids[1]
	assert.Equal(t, "solver_b", charlie.SolverID)
	assert.False(t, charlie.Qualified)
	assert.Contains(t, charlie.RejectionReason, "gas")
	assert.InDelta(t, 11.0, charlie.EstimatedGas, 0.001)
	assert.Equal(t, domain.ExecutionCompleted, st.ExecutionStatus)
}

func TestPipeline_GasWithinBudgetIsUntouched(t *testing.T) {
	store := lifecycle.New("demo")
	p := simulate.New(store, simulate.WithDelay(0))

	require.NoError(t, p.Run(context.Background(), demoText))
	winner := store.State().Winner
	assert.InDelta(t, 12.5, winner.EstimatedGas, 0.001)
	assert.Equal(t, "Supply to Morpho (Optimism)", winner.Strategy)
}

func TestPipeline_ResetStopsRun(t *testing.T) {
	store := lifecycle.New("demo")
	p := simulate.New(store,
		simulate.WithDelay(0),
		simulate.WithStageHook(func(s simulate.Stage) {
			if s == simulate.StageExecution {
				require.NoError(t, store.Reset(context.Background()))
			}
		}),
	)

	err := p.Run(context.Background(), demoText)
	assert.ErrorIs(t, err, domain.ErrStaleEpoch)
	assert.Equal(t, domain.NewState(), store.State())
}

func TestPipeline_Cancel(t *testing.T) {
	store := lifecycle.New("demo")
	p := simulate.New(store, simulate.WithDelay(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, demoText) }()

	assert.Eventually(t, func() bool {
		return store.State().AuctionStatus == domain.PhasePending
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("pipeline did not stop")
	}
}

func TestPipeline_StagesNeedPrerequisites(t *testing.T) {
	store := lifecycle.New("demo")
	p := simulate.New(store, simulate.WithDelay(0))
	ctx := context.Background()

	_, err := p.Auction(ctx)
	assert.ErrorIs(t, err, simulate.ErrNoIntent)
	assert.ErrorIs(t, p.Authorize(ctx), simulate.ErrNoIntent)

	_, err = p.Submit(ctx, "swap 100 USDC")
	require.NoError(t, err)
	assert.ErrorIs(t, p.Execute(ctx), simulate.ErrNoWinner)
}
