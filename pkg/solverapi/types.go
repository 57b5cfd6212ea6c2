package solverapi

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/intentflow/pkg/domain"
)

// Plan is a solver execution plan.
type Plan struct {
	Solver            string   `json:"solver"`
	Protocol          string   `json:"protocol"`
	Route             string   `json:"route"`
	APYBps10          int      `json:"apy_bps10"`
	GasUSD            float64  `json:"gas_usd"`
	EstimatedDuration int      `json:"estimated_duration"`
	Steps             []string `json:"steps"`
}

// Bid is a solver bid as the backend reports it. APY is in tenths of a percent.
type Bid struct {
	Solver          string  `json:"solver"`
	Proof           string  `json:"proof"`
	ClaimedAPYBps10 int     `json:"claimed_apy_bps10"`
	ClaimedGasUSD   float64 `json:"claimed_gas_usd"`
	Valid           bool    `json:"valid"`
	Plan            *Plan   `json:"plan,omitempty"`
	Timestamp       int64   `json:"timestamp,omitempty"`
}

// SolverBid converts b to the lifecycle bid form.
func (b Bid) SolverBid() domain.SolverBid {
	out := domain.SolverBid{
		SolverID:      b.Solver,
		SolverName:    b.Solver,
		SolverAddress: b.Solver,
		ExpectedAPY:   float64(b.ClaimedAPYBps10) / 10,
		EstimatedGas:  b.ClaimedGasUSD,
		ZkProof:       b.Proof,
		Qualified:     b.Valid,
		Route:         []string{},
	}
	if b.Plan != nil {
		out.Protocol = b.Plan.Protocol
		out.Strategy = b.Plan.Route
		out.Route = append(out.Route, b.Plan.Steps...)
	}
	if !b.Valid {
		out.RejectionReason = "rejected by solver backend"
	}
	return out
}

// Token is one asset of a backend intent.
type Token struct {
	Symbol  string          `json:"symbol"`
	Chain   string          `json:"chain"`
	Address string          `json:"address,omitempty"`
	Amount  json.RawMessage `json:"amount,omitempty"`
}

// BackendIntent is the structured intent the backend stores.
type BackendIntent struct {
	User          string  `json:"user"`
	Action        string  `json:"action"`
	Tokens        []Token `json:"tokens"`
	TotalValueUSD float64 `json:"total_value_usd"`
	DurationDays  int     `json:"duration_days"`
	Strategy      string  `json:"strategy"`
	MaxGasUSD     float64 `json:"max_gas_usd"`
	Timestamp     int64   `json:"timestamp"`
	Commitment    string  `json:"commitment"`
}

// ParsedIntent converts the backend intent to the lifecycle form.
func (in BackendIntent) ParsedIntent() domain.ParsedIntent {
	assets := make([]domain.Asset, len(in.Tokens))
	for i, t := range in.Tokens {
		amount := string(t.Amount)
		var s string
		if json.Unmarshal(t.Amount, &s) == nil {
			amount = s
		}
		assets[i] = domain.Asset{Chain: t.Chain, Token: t.Symbol, Amount: amount}
	}
	return domain.ParsedIntent{
		Goal:   in.Action,
		Assets: assets,
		Constraints: domain.Constraints{
			Duration:        fmt.Sprintf("%dd", in.DurationDays),
			MaxGasTolerance: fmt.Sprintf("$%.2f", in.MaxGasUSD),
		},
	}
}

// PublicMetadata is the part of an intent safe to display.
type PublicMetadata struct {
	Action         string `json:"action"`
	Strategy       string `json:"strategy"`
	Duration       string `json:"duration"`
	EstimatedTotal string `json:"estimated_total"`
	MaxGas         string `json:"max_gas"`
	Timestamp      int64  `json:"timestamp"`
}

// ParsedIntentResponse is the reply of /parse-intent.
type ParsedIntentResponse struct {
	Intent         BackendIntent  `json:"intent"`
	PublicMetadata PublicMetadata `json:"public_metadata"`
	Status         string         `json:"status"`
}

// Auction is an auction round as the backend reports it.
type Auction struct {
	IntentCommitment string          `json:"intent_commitment"`
	Bids             []Bid           `json:"bids"`
	Winner           Bid             `json:"winner"`
	Stats            json.RawMessage `json:"stats,omitempty"`
}

// SolverBids converts every bid and the winner to the lifecycle form.
func (a Auction) SolverBids() ([]domain.SolverBid, domain.SolverBid) {
	bids := make([]domain.SolverBid, len(a.Bids))
	for i, b := range a.Bids {
		bids[i] = b.SolverBid()
	}
	return bids, a.Winner.SolverBid()
}

// AuctionResponse is the reply of /run-auction.
type AuctionResponse struct {
	IntentCommitment string  `json:"intent_commitment"`
	Auction          Auction `json:"auction"`
	Status           string  `json:"status"`
}

// IntentResponse is the reply of /submit-intent.
type IntentResponse struct {
	IntentCommitment string         `json:"intent_commitment"`
	ParsedIntent     *BackendIntent `json:"parsed_intent,omitempty"`
	PublicMetadata   PublicMetadata `json:"public_metadata"`
	Auction          Auction        `json:"auction"`
	Status           string         `json:"status"`
}

// AuthResponse is the reply of /authorize.
type AuthResponse struct {
	OK               bool   `json:"ok"`
	IntentCommitment string `json:"intent_commitment"`
	AuthorizedSolver string `json:"authorized_solver"`
	Message          string `json:"message"`
}

// FinalPosition is where the funds ended up.
type FinalPosition struct {
	Protocol     string  `json:"protocol"`
	Chain        string  `json:"chain"`
	Amount       string  `json:"amount"`
	AmountUSD    float64 `json:"amount_usd"`
	PositionType string  `json:"position_type"`
	APY          float64 `json:"apy"`
	Timestamp    int64   `json:"timestamp"`
}

// ExecutionResponse is the reply of /execute.
type ExecutionResponse struct {
	IntentCommitment       string        `json:"intent_commitment"`
	Txs                    []string      `json:"txs"`
	TotalGas               float64       `json:"totalGas"`
	FinalPosition          FinalPosition `json:"finalPosition"`
	Proof                  string        `json:"proof"`
	FinalBalanceCommitment string        `json:"finalBalanceCommitment"`
	ProofTx                string        `json:"proofTx"`
	Status                 string        `json:"status"`
}
