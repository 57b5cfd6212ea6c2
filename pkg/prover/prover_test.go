package prover_test

import (
	"strings"
	"testing"
	"time"

	"github.com/aretw0/intentflow/pkg/domain"
	"github.com/aretw0/intentflow/pkg/prover"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bob() domain.SolverBid {
	return domain.SolverBid{
		SolverID:      "solver_a",
		SolverAddress: "0xBob1234567890123456789012345678901234",
		ExpectedAPY:   12.5,
		EstimatedGas:  12.5,
		Protocol:      "Morpho",
	}
}

func TestCommit(t *testing.T) {
	a := prover.Commit("yield_farm", 500, 90)
	assert.True(t, prover.ValidCommitment(a))
	assert.Equal(t, a, prover.Commit("yield_farm", 500, 90))
	assert.NotEqual(t, a, prover.Commit("yield_farm", 500, 91))
}

func TestValidCommitment(t *testing.T) {
	assert.False(t, prover.ValidCommitment(""))
	assert.False(t, prover.ValidCommitment("0x1234"))
	assert.False(t, prover.ValidCommitment("af"+strings.Repeat("0", 62)))
	assert.False(t, prover.ValidCommitment("0x"+strings.Repeat("z", 64)))
	assert.True(t, prover.ValidCommitment("0x"+strings.Repeat("ab", 32)))
}

func TestSolverProof(t *testing.T) {
	commitment := prover.Commit("intent")

	proof, err := prover.SolverProof(commitment, bob(), 0)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(proof, "0xproof_901234_"))
	assert.Len(t, proof, len("0xproof_901234_")+8)
	assert.True(t, prover.VerifySolverProof(proof))

	again, err := prover.SolverProof(commitment, bob(), 0)
	require.NoError(t, err)
	assert.Equal(t, proof, again)
}

func TestSolverProof_Constraints(t *testing.T) {
	commitment := prover.Commit("intent")
	tests := []struct {
		name   string
		mutate func(*domain.SolverBid)
		maxGas float64
		want   error
	}{
		{"gas over budget", func(b *domain.SolverBid) {}, 10, prover.ErrGasOverBudget},
		{"zero apy", func(b *domain.SolverBid) { b.ExpectedAPY = 0 }, 0, prover.ErrNonPositiveAPY},
		{"unrealistic apy", func(b *domain.SolverBid) { b.ExpectedAPY = 900 }, 0, prover.ErrUnrealisticAPY},
		{"unknown protocol", func(b *domain.SolverBid) { b.Protocol = "1inch" }, 0, prover.ErrProtocolNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bid := bob()
			tt.mutate(&bid)
			_, err := prover.SolverProof(commitment, bid, tt.maxGas)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	bid := bob()
	bid.Protocol = "Aave V3"
	assert.NoError(t, prover.CheckBid(bid, 0))

	_, err := prover.SolverProof("", bob(), 0)
	assert.ErrorIs(t, err, prover.ErrInvalidCommitment)
}

func TestVerifySolverProof(t *testing.T) {
	assert.False(t, prover.VerifySolverProof(""))
	assert.False(t, prover.VerifySolverProof("0xinvalid_proof_olverC"))
	assert.False(t, prover.VerifySolverProof("0xproof_short"))
	assert.False(t, prover.VerifySolverProof("0x8f3c2e9b4d1a6f8c5e2d7b3f9a1c6e8d"))
}

func TestExecutionProof(t *testing.T) {
	commitment := prover.Commit("intent")
	result := domain.FinalResult{FinalPosition: "499.5 USDC @ Morpho (Optimism)", TotalGasFees: "$15.00"}
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	proof, balance := prover.ExecutionProof(commitment, result, 4, "solver_a", at)
	assert.True(t, strings.HasPrefix(proof, "0xexec_"))
	assert.Len(t, proof, len("0xexec_")+16)
	assert.True(t, prover.ValidCommitment(balance))
	assert.True(t, prover.VerifyExecutionProof(proof, commitment, balance))
	assert.False(t, prover.VerifyExecutionProof(proof, "", balance))
	assert.False(t, prover.VerifyExecutionProof("0xproof_x", commitment, balance))
}
