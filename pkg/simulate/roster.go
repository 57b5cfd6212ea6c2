package simulate

import (
	"math"

	"github.com/aretw0/intentflow/pkg/domain"
)

// gasOptimizers are the solvers that re-route to fit a gas budget. The others
// bid their plan as is and drop out when it is over budget.
var gasOptimizers = map[string]bool{"solver_a": true}

// fitGasBudget trims the gas of an over-budget bid from a solver that can
// re-route: 5% off, capped at the budget. A zero budget means no budget.
func fitGasBudget(bid *domain.SolverBid, maxGas float64) {
	if maxGas <= 0 || bid.EstimatedGas <= maxGas || !gasOptimizers[bid.SolverID] {
		return
	}
	gas := math.Min(bid.EstimatedGas*0.95, maxGas)
	bid.GasPercentage *= gas / bid.EstimatedGas
	bid.EstimatedGas = gas
	bid.Strategy = "optimized: " + bid.Strategy
}

// Roster returns the demo solvers. Bob and Charlie are registered solvers;
// Solver C is not and bids blind.
func Roster() []domain.SolverBid {
	return []domain.SolverBid{
		{
			SolverID:      "solver_a",
			SolverName:    "Bob",
			SolverAddress: "0xBob1234567890123456789012345678901234",
			Strategy:      "Supply to Morpho (Optimism)",
			ExpectedAPY:   12.5,
			EstimatedGas:  12.5,
			GasPercentage: 2.5,
			Protocol:      "Morpho",
			TargetChain:   "Optimism",
			Route: []string{
				"Bridge USDC (Arb → Opt) via Nexus",
				"Bridge USDT (Poly → Opt) via Nexus",
				"Swap USDT → USDC on Optimism",
				"Supply 499.5 USDC to Morpho",
			},
			Qualified: true,
		},
		{
			SolverID:      "solver_b",
			SolverName:    "Charlie",
			SolverAddress: "0xCharlie567890123456789012345678905678",
			Strategy:      "Supply to Aave V3 (Optimism)",
			ExpectedAPY:   12.1,
			EstimatedGas:  11.0,
			GasPercentage: 2.2,
			Protocol:      "Aave V3",
			TargetChain:   "Optimism",
			Route: []string{
				"Withdraw from Polygon",
				"Bridge to Arbitrum via optimized route",
				"Swap USDT to USDC on Arbitrum",
				"Supply USDC to Aave v3",
			},
			Qualified: true,
		},
		{
			SolverID:        "solver_c",
			SolverName:      "Unqualified Solver C",
			SolverAddress:   "0xSolverC",
			Strategy:        "guessed route without intent details",
			ExpectedAPY:     14.0,
			EstimatedGas:    8.0,
			GasPercentage:   1.6,
			Protocol:        "Compound",
			TargetChain:     "Optimism",
			Route:           []string{"guessed step 1", "guessed step 2"},
			ZkProof:         "0xinvalid_proof_olverC",
			Qualified:       false,
			RejectionReason: "Not qualified (failed zkTLS verification)",
		},
	}
}

func ptr(s string) *string { return &s }

// stepResults are the receipts of the default four-step route.
var stepResults = []domain.StepPatch{
	{SourceTx: ptr("0xabc123...def456 (Arbitrum)"), DestTx: ptr("0x123456...789012 (Optimism)"), Amount: ptr("250 USDC"), Fee: ptr("$3.50")},
	{SourceTx: ptr("0xghi789...jkl012 (Polygon)"), DestTx: ptr("0x789012...345678 (Optimism)"), Amount: ptr("250 USDT"), Fee: ptr("$3.00")},
	{SourceTx: ptr("0xmno345...pqr678 (Optimism)"), Amount: ptr("250 USDT → 249.5 USDC"), Fee: ptr("$2.00")},
	{SourceTx: ptr("0xstu901...vwx234 (Optimism)"), Amount: ptr("499.5 USDC"), Fee: ptr("$6.50")},
}

// DemoResult is the outcome of the default route.
func DemoResult() domain.FinalResult {
	return domain.FinalResult{
		InitialAssets:        "500 USD (250 USDC + 250 USDT)",
		TotalGasFees:         "$15.00",
		FinalPosition:        "499.5 USDC @ Morpho (Optimism)",
		ExpectedMonthlyYield: "~$5.47",
		NetReturn:            "~$1.41 profit (3 months)",
	}
}
