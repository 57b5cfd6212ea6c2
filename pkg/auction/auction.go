// Package auction qualifies solver bids and selects a winner.
package auction

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/aretw0/intentflow/internal/logging"
	"github.com/aretw0/intentflow/pkg/domain"
	"github.com/aretw0/intentflow/pkg/prover"
)

// Strategy selects the winner among qualified bids.
type Strategy string

const (
	// HighestAPY picks the best yield, breaking ties on lower gas.
	HighestAPY Strategy = "highest_apy"
	// LowestGas picks the cheapest route, breaking ties on higher yield.
	LowestGas Strategy = "lowest_gas"
	// Balanced picks the best yield per dollar of gas.
	Balanced Strategy = "balanced"
)

// ErrNoQualifiedBids is returned when no bid survives qualification.
var ErrNoQualifiedBids = errors.New("no qualified bids in auction")

// ErrUnknownStrategy is returned by ParseStrategy.
var ErrUnknownStrategy = errors.New("unknown auction strategy")

// RejectedProof is the rejection reason of bids whose proof does not verify.
const RejectedProof = "invalid solver proof"

// ParseStrategy parses a strategy name. The empty name means HighestAPY.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "":
		return HighestAPY, nil
	case HighestAPY, LowestGas, Balanced:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
}

// Result is the outcome of one auction round. Bids holds every bid, including
// the rejected ones.
type Result struct {
	Bids   []domain.SolverBid
	Winner domain.SolverBid
	Stats  Stats
	At     time.Time
}

// Range summarises a metric over the qualified bids.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
}

// Stats describes an auction round.
type Stats struct {
	TotalBids     int    `json:"total_bids"`
	QualifiedBids int    `json:"valid_bids"`
	Winner        string `json:"winner,omitempty"`
	APY           *Range `json:"apy_range,omitempty"`
	Gas           *Range `json:"gas_range,omitempty"`
}

// Auctioneer runs auction rounds.
type Auctioneer struct {
	strategy Strategy
	verify   func(proof string) bool
	clock    func() time.Time
	logger   *slog.Logger
}

// Option configures the Auctioneer.
type Option func(*Auctioneer)

// WithStrategy sets the winner selection strategy.
func WithStrategy(s Strategy) Option {
	return func(a *Auctioneer) {
		a.strategy = s
	}
}

// WithVerifier replaces the solver proof check.
func WithVerifier(verify func(proof string) bool) Option {
	return func(a *Auctioneer) {
		a.verify = verify
	}
}

// WithClock sets the time source stamped on results.
func WithClock(clock func() time.Time) Option {
	return func(a *Auctioneer) {
		a.clock = clock
	}
}

// WithLogger configures a logger for the Auctioneer.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Auctioneer) {
		a.logger = logger
	}
}

// New creates an Auctioneer using HighestAPY and prover.VerifySolverProof.
func New(opts ...Option) *Auctioneer {
	a := &Auctioneer{
		strategy: HighestAPY,
		verify:   prover.VerifySolverProof,
		clock:    func() time.Time { return time.Now().UTC() },
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run qualifies every bid and selects the winner among the qualified ones.
// A bid stays qualified only if it arrived qualified and its proof verifies.
func (a *Auctioneer) Run(bids []domain.SolverBid) (*Result, error) {
	out := make([]domain.SolverBid, len(bids))
	var qualified []domain.SolverBid
	for i, bid := range bids {
		b := bid.Clone()
		if b.Qualified && !a.verify(b.ZkProof) {
			b.Qualified = false
			if b.RejectionReason == "" {
				b.RejectionReason = RejectedProof
			}
		}
		if !b.Qualified {
			a.logger.Debug("Rejected bid", "solver", b.SolverID, "reason", b.RejectionReason)
		} else {
			qualified = append(qualified, b)
		}
		out[i] = b
	}

	winner, err := SelectWinner(qualified, a.strategy)
	if err != nil {
		return nil, err
	}
	a.logger.Info("Auction settled", "winner", winner.SolverID, "strategy", a.strategy, "bids", len(out), "qualified", len(qualified))

	return &Result{
		Bids:   out,
		Winner: winner,
		Stats:  ComputeStats(out, winner.SolverID),
		At:     a.clock(),
	}, nil
}

// SelectWinner picks the winner among already qualified bids. Unknown
// strategies fall back to HighestAPY.
func SelectWinner(bids []domain.SolverBid, strategy Strategy) (domain.SolverBid, error) {
	if len(bids) == 0 {
		return domain.SolverBid{}, ErrNoQualifiedBids
	}

	var cmp func(a, b domain.SolverBid) int
	switch strategy {
	case LowestGas:
		cmp = func(a, b domain.SolverBid) int {
			if c := compare(a.EstimatedGas, b.EstimatedGas); c != 0 {
				return c
			}
			return compare(b.ExpectedAPY, a.ExpectedAPY)
		}
	case Balanced:
		cmp = func(a, b domain.SolverBid) int {
			return compare(efficiency(b), efficiency(a))
		}
	default:
		cmp = func(a, b domain.SolverBid) int {
			if c := compare(b.ExpectedAPY, a.ExpectedAPY); c != 0 {
				return c
			}
			return compare(a.EstimatedGas, b.EstimatedGas)
		}
	}

	sorted := slices.Clone(bids)
	// Stable so equal bids keep submission order.
	slices.SortStableFunc(sorted, cmp)
	return sorted[0].Clone(), nil
}

func efficiency(b domain.SolverBid) float64 {
	if b.EstimatedGas == 0 {
		return math.Inf(1)
	}
	return b.ExpectedAPY / b.EstimatedGas
}

func compare(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// ComputeStats summarises bids; ranges cover the qualified bids only.
func ComputeStats(bids []domain.SolverBid, winner string) Stats {
	stats := Stats{TotalBids: len(bids)}
	var apy, gas []float64
	for _, b := range bids {
		if b.Qualified {
			apy = append(apy, b.ExpectedAPY)
			gas = append(gas, b.EstimatedGas)
		}
	}
	stats.QualifiedBids = len(apy)
	if len(apy) == 0 {
		return stats
	}
	stats.Winner = winner
	stats.APY = rangeOf(apy)
	stats.Gas = rangeOf(gas)
	return stats
}

func rangeOf(values []float64) *Range {
	r := &Range{Min: slices.Min(values), Max: slices.Max(values)}
	var sum float64
	for _, v := range values {
		sum += v
	}
	r.Avg = sum / float64(len(values))
	return r
}
