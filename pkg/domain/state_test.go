package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewState_SerializesNullsAndEmptyLists(t *testing.T) {
	b, err := json.Marshal(NewState())
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))

	for _, k := range []string{"intentId", "commitment", "encryptedPayload", "originalText", "parsedIntent", "winner", "authorizationTx", "finalResult"} {
		v, ok := m[k]
		assert.True(t, ok, k)
		assert.Nil(t, v, k)
	}
	for _, k := range []string{"solverBids", "executionSteps", "zkProofs"} {
		assert.Equal(t, []any{}, m[k], k)
	}
	assert.Equal(t, "idle", m["auctionStatus"])
	assert.Equal(t, "idle", m["authorizationStatus"])
	assert.Equal(t, "idle", m["executionStatus"])
}

func TestState_CloneIsDeep(t *testing.T) {
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	s := NewState()
	s.IntentID = strp("0x1")
	s.ParsedIntent = &ParsedIntent{Goal: "swap", Assets: []Asset{{Chain: "Arbitrum", Token: "USDC", Amount: "100"}}}
	s.SolverBids = []SolverBid{{SolverID: "solver_a", Route: []string{"a", "b"}, Qualified: true}}
	s.Winner = &SolverBid{SolverID: "solver_a", Route: []string{"a"}}
	s.ExecutionSteps = []ExecutionStep{{StepNumber: 1, Status: StepCompleted, Timestamp: &ts}}

	c := s.Clone()
	require.Equal(t, s, c)

	*c.IntentID = "0x2"
	c.ParsedIntent.Assets[0].Amount = "1"
	c.SolverBids[0].Route[0] = "z"
	c.Winner.Route[0] = "z"
	*c.ExecutionSteps[0].Timestamp = ts.Add(time.Hour)

	assert.Equal(t, "0x1", *s.IntentID)
	assert.Equal(t, "100", s.ParsedIntent.Assets[0].Amount)
	assert.Equal(t, "a", s.SolverBids[0].Route[0])
	assert.Equal(t, "a", s.Winner.Route[0])
	assert.Equal(t, ts, *s.ExecutionSteps[0].Timestamp)
}

func TestStepStatus_Regresses(t *testing.T) {
	assert.False(t, StepPending.Regresses(StepInProgress))
	assert.False(t, StepPending.Regresses(StepCompleted))
	assert.False(t, StepInProgress.Regresses(StepFailed))
	assert.False(t, StepCompleted.Regresses(StepCompleted))
	assert.True(t, StepCompleted.Regresses(StepPending))
	assert.True(t, StepInProgress.Regresses(StepPending))
	assert.True(t, StepCompleted.Regresses(StepFailed))
	assert.False(t, StepStatus("bogus").Valid())
}

func TestSnapshot_NewerThan(t *testing.T) {
	s := &Snapshot{Seq: 3, Origin: "b"}
	assert.True(t, s.NewerThan(2, "z"))
	assert.True(t, s.NewerThan(3, "a"))
	assert.False(t, s.NewerThan(3, "b"))
	assert.False(t, s.NewerThan(3, "c"))
	assert.False(t, s.NewerThan(4, ""))
}

func TestStepsFromTemplates(t *testing.T) {
	steps := StepsFromTemplates(DefaultStepTemplates())
	require.Len(t, steps, 4)
	for i, s := range steps {
		assert.Equal(t, i+1, s.StepNumber)
		assert.Equal(t, StepPending, s.Status)
		assert.Nil(t, s.Timestamp)
	}
	assert.Equal(t, "Avail Nexus", steps[0].Via)
	assert.Equal(t, "Uniswap V3", steps[2].Via)
}

func TestStepPatch_Apply(t *testing.T) {
	step := ExecutionStep{StepNumber: 1, Amount: "1", Fee: "f"}
	StepPatch{Amount: strp("100 USDC")}.Apply(&step)
	assert.Equal(t, "100 USDC", step.Amount)
	assert.Equal(t, "f", step.Fee)
}
