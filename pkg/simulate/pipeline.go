// Package simulate drives a lifecycle through the whole demo: intent, auction,
// authorization, execution and proofs, with delays between stages.
package simulate

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aretw0/intentflow/internal/logging"
	"github.com/aretw0/intentflow/pkg/auction"
	"github.com/aretw0/intentflow/pkg/domain"
	"github.com/aretw0/intentflow/pkg/lifecycle"
	"github.com/aretw0/intentflow/pkg/parser"
	"github.com/aretw0/intentflow/pkg/prover"
)

// DefaultDelay separates two simulated events.
const DefaultDelay = 100 * time.Millisecond

// DefaultUser submits intents when no user is configured.
const DefaultUser = "0xAlice"

var (
	// ErrNoIntent is returned when a stage needs an intent and none is set.
	ErrNoIntent = errors.New("no intent submitted")
	// ErrNoWinner is returned when a stage needs an auction winner.
	ErrNoWinner = errors.New("auction has no winner")
)

// Stage names a pipeline stage.
type Stage string

const (
	StageIntent        Stage = "intent"
	StageAuction       Stage = "auction"
	StageAuthorization Stage = "authorization"
	StageExecution     Stage = "execution"
	StageDone          Stage = "done"
)

// Pipeline runs the demo against one lifecycle store.
type Pipeline struct {
	store      *lifecycle.Store
	auctioneer *auction.Auctioneer
	delay      time.Duration
	user       string
	clock      func() time.Time
	logger     *slog.Logger
	onStage    func(Stage)
}

// Option configures the Pipeline.
type Option func(*Pipeline)

// WithDelay sets the pause between simulated events. Zero runs without pauses.
func WithDelay(d time.Duration) Option {
	return func(p *Pipeline) {
		p.delay = d
	}
}

// WithAuctioneer replaces the default highest-APY auctioneer.
func WithAuctioneer(a *auction.Auctioneer) Option {
	return func(p *Pipeline) {
		p.auctioneer = a
	}
}

// WithUser sets the submitting wallet address.
func WithUser(user string) Option {
	return func(p *Pipeline) {
		p.user = user
	}
}

// WithClock sets the time source used for commitments.
func WithClock(clock func() time.Time) Option {
	return func(p *Pipeline) {
		p.clock = clock
	}
}

// WithLogger configures a logger for the Pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithStageHook is called when each stage starts.
func WithStageHook(fn func(Stage)) Option {
	return func(p *Pipeline) {
		p.onStage = fn
	}
}

// New creates a Pipeline for store.
func New(store *lifecycle.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:      store,
		auctioneer: auction.New(),
		delay:      DefaultDelay,
		user:       DefaultUser,
		clock:      func() time.Time { return time.Now().UTC() },
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run submits text and drives every stage. It is bound to the epoch current
// when it starts: a reset, local or replayed, stops it with domain.ErrStaleEpoch.
func (p *Pipeline) Run(ctx context.Context, text string) error {
	ctx = lifecycle.WithEpoch(ctx, p.store.Epoch())

	if _, err := p.Submit(ctx, text); err != nil {
		return err
	}
	if _, err := p.Auction(ctx); err != nil {
		return err
	}
	if err := p.Authorize(ctx); err != nil {
		return err
	}
	if err := p.Execute(ctx); err != nil {
		return err
	}
	return p.stage(ctx, StageDone)
}

// stage announces s and fails if a reset superseded the epoch of ctx.
func (p *Pipeline) stage(ctx context.Context, s Stage) error {
	p.logger.Info("Pipeline stage", "stage", s, "key", p.store.Key())
	if p.onStage != nil {
		p.onStage(s)
	}
	return p.store.CheckEpoch(ctx)
}

// Submit parses text and sets the intent.
func (p *Pipeline) Submit(ctx context.Context, text string) (*parser.Result, error) {
	if err := p.stage(ctx, StageIntent); err != nil {
		return nil, err
	}
	parsed, err := parser.Parse(text)
	if err != nil {
		return nil, err
	}
	in, err := parsed.Intent(p.user, p.clock())
	if err != nil {
		return nil, err
	}
	if err := p.store.SetIntent(ctx, in); err != nil {
		return nil, err
	}
	return parsed, nil
}

// Auction collects the roster bids, proves the qualified ones, settles the
// auction and records the auction proofs.
func (p *Pipeline) Auction(ctx context.Context) (*auction.Result, error) {
	if err := p.stage(ctx, StageAuction); err != nil {
		return nil, err
	}
	st := p.store.State()
	if st.Commitment == nil || st.ParsedIntent == nil {
		return nil, ErrNoIntent
	}
	commitment := *st.Commitment
	maxGas := parser.MaxGasUSD(st.ParsedIntent.Constraints.MaxGasTolerance)

	bids := Roster()
	for i := range bids {
		if !bids[i].Qualified {
			continue
		}
		fitGasBudget(&bids[i], maxGas)
		proof, err := prover.SolverProof(commitment, bids[i], maxGas)
		if err != nil {
			bids[i].Qualified = false
			bids[i].RejectionReason = err.Error()
			continue
		}
		bids[i].ZkProof = proof
	}

	if err := p.sleep(ctx, p.delay); err != nil {
		return nil, err
	}
	res, err := p.auctioneer.Run(bids)
	if err != nil {
		return nil, err
	}
	if err := p.store.SetAuctionResults(ctx, res.Bids, res.Winner); err != nil {
		return nil, err
	}

	proofs := []domain.ZkProof{
		{
			Type:     "zkTLS Proof (Winner Qualification)",
			Hash:     "0xzktls_" + middle(res.Winner.ZkProof, 2, 20),
			Verifier: "SolverRegistry",
			Block:    "12345678",
		},
		{Type: "Intent Commitment Proof", Hash: commitment, Verifier: "IntentVerifier", Block: "12345679"},
		{
			Type:     "Auction Result Proof",
			Hash:     prover.Commit("auction", commitment, res.Winner.SolverID),
			Verifier: "AuctionContract",
			Block:    "12345680",
		},
	}
	for _, proof := range proofs {
		if err := p.sleep(ctx, p.delay); err != nil {
			return nil, err
		}
		proof.Tx = txHash(proof.Type, commitment)
		proof.Status = domain.ProofVerified
		if err := p.store.AddZkProof(ctx, proof); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// Authorize records the user's authorization of the winner.
func (p *Pipeline) Authorize(ctx context.Context) error {
	if err := p.stage(ctx, StageAuthorization); err != nil {
		return err
	}
	st := p.store.State()
	if st.Commitment == nil {
		return ErrNoIntent
	}
	if st.Winner == nil {
		return ErrNoWinner
	}
	if err := p.sleep(ctx, p.delay); err != nil {
		return err
	}
	return p.store.SetAuthorization(ctx, txHash("authorize", *st.Commitment, st.Winner.SolverAddress))
}

// Execute starts execution, completes every step in order, sets the final
// result and records the execution proof.
func (p *Pipeline) Execute(ctx context.Context) error {
	if err := p.stage(ctx, StageExecution); err != nil {
		return err
	}
	st := p.store.State()
	if st.Commitment == nil {
		return ErrNoIntent
	}
	if st.Winner == nil {
		return ErrNoWinner
	}
	if err := p.store.StartExecution(ctx); err != nil {
		return err
	}

	steps := p.store.State().ExecutionSteps
	for _, step := range steps {
		n := step.StepNumber
		if err := p.store.UpdateExecutionStep(ctx, n, domain.StepInProgress, nil); err != nil {
			return err
		}
		if err := p.sleep(ctx, p.delay); err != nil {
			return err
		}
		var patch domain.StepPatch
		if n <= len(stepResults) {
			patch = stepResults[n-1]
		}
		if err := p.store.UpdateExecutionStep(ctx, n, domain.StepCompleted, &patch); err != nil {
			return err
		}
	}

	if err := p.sleep(ctx, 2*p.delay); err != nil {
		return err
	}
	result := DemoResult()
	if err := p.store.SetFinalResult(ctx, &result); err != nil {
		return err
	}

	if err := p.sleep(ctx, 3*p.delay); err != nil {
		return err
	}
	proof, balance := prover.ExecutionProof(*st.Commitment, result, len(steps), st.Winner.SolverID, p.clock())
	p.logger.Debug("Execution proven", "proof", proof, "balance", balance)
	return p.store.AddZkProof(ctx, domain.ZkProof{
		Type:     "Execution Proof",
		Hash:     proof,
		Tx:       txHash("verify", proof),
		Verifier: "IntentVerifier",
		Status:   domain.ProofVerified,
		Block:    "12345690",
	})
}

// sleep waits d or until ctx is done.
func (p *Pipeline) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// txHash derives a placeholder 16-byte transaction reference.
func txHash(parts ...any) string {
	return prover.Commit(parts...)[:34]
}

func middle(s string, from, to int) string {
	if to > len(s) {
		to = len(s)
	}
	if from >= to {
		return "proof_hash"
	}
	return s[from:to]
}
