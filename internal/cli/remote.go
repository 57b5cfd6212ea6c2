package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/intentflow/pkg/domain"
	"github.com/aretw0/intentflow/pkg/lifecycle"
	"github.com/aretw0/intentflow/pkg/prover"
	"github.com/aretw0/intentflow/pkg/solverapi"
)

// ErrNoWinner is returned when the backend auction produced no usable winner.
var ErrNoWinner = errors.New("backend auction has no winner")

// RemoteOptions controls how far SubmitRemote drives the backend.
type RemoteOptions struct {
	User      string
	Signature string
	Authorize bool
	Execute   bool
}

// SubmitRemote sends text to the solver backend and mirrors every answer into
// st. Execute implies Authorize.
func SubmitRemote(ctx context.Context, client *solverapi.Client, st *lifecycle.Store, text string, opts RemoteOptions) error {
	resp, err := client.SubmitIntent(ctx, text, opts.User)
	if err != nil {
		return fmt.Errorf("submit intent: %w", err)
	}
	commitment := resp.IntentCommitment

	intent := domain.Intent{
		IntentID:         commitment,
		Commitment:       commitment,
		EncryptedPayload: "encrypted:" + commitment,
		OriginalText:     text,
	}
	if resp.ParsedIntent != nil {
		intent.ParsedIntent = resp.ParsedIntent.ParsedIntent()
	}
	if err := st.SetIntent(ctx, intent); err != nil {
		return err
	}

	bids, winner := resp.Auction.SolverBids()
	if winner.SolverID == "" {
		return ErrNoWinner
	}
	if err := st.SetAuctionResults(ctx, bids, winner); err != nil {
		return err
	}

	if !opts.Authorize && !opts.Execute {
		return nil
	}
	signature := opts.Signature
	if signature == "" {
		signature = "0xsig"
	}
	auth, err := client.Authorize(ctx, commitment, signature)
	if err != nil {
		return fmt.Errorf("authorize: %w", err)
	}
	if err := st.SetAuthorization(ctx, prover.Commit("authorize", commitment, auth.AuthorizedSolver)[:34]); err != nil {
		return err
	}

	if !opts.Execute {
		return nil
	}
	if err := st.StartExecution(ctx); err != nil {
		return err
	}
	exec, err := client.Execute(ctx, commitment)
	if err != nil {
		n := firstOpenStep(st.State())
		if n > 0 {
			_ = st.UpdateExecutionStep(ctx, n, domain.StepFailed, nil)
		}
		return fmt.Errorf("execute: %w", err)
	}
	return mirrorExecution(ctx, st, exec)
}

// mirrorExecution completes one step per backend transaction, then records the
// result and the execution proof.
func mirrorExecution(ctx context.Context, st *lifecycle.Store, exec *solverapi.ExecutionResponse) error {
	for _, step := range st.State().ExecutionSteps {
		var patch domain.StepPatch
		if i := step.StepNumber - 1; i < len(exec.Txs) {
			tx := exec.Txs[i]
			patch.SourceTx = &tx
		}
		if err := st.UpdateExecutionStep(ctx, step.StepNumber, domain.StepCompleted, &patch); err != nil {
			return err
		}
	}

	pos := exec.FinalPosition
	result := domain.FinalResult{
		InitialAssets:        pos.Amount,
		TotalGasFees:         fmt.Sprintf("$%.2f", exec.TotalGas),
		FinalPosition:        fmt.Sprintf("%s %s on %s", pos.Amount, pos.Protocol, pos.Chain),
		ExpectedMonthlyYield: fmt.Sprintf("$%.2f", pos.AmountUSD*pos.APY/100/12),
		NetReturn:            fmt.Sprintf("%.2f%% APY", pos.APY),
	}
	if err := st.SetFinalResult(ctx, &result); err != nil {
		return err
	}

	status := domain.ProofPending
	if prover.VerifyExecutionProof(exec.Proof, exec.IntentCommitment, exec.FinalBalanceCommitment) {
		status = domain.ProofVerified
	}
	return st.AddZkProof(ctx, domain.ZkProof{
		Type:     "Execution Proof",
		Hash:     exec.Proof,
		Tx:       exec.ProofTx,
		Verifier: "IntentVerifier",
		Status:   status,
	})
}

func firstOpenStep(s *domain.State) int {
	for _, step := range s.ExecutionSteps {
		if step.Status != domain.StepCompleted {
			return step.StepNumber
		}
	}
	return 0
}
