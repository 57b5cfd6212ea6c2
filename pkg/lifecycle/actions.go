package lifecycle

import (
	"context"
	"fmt"

	"github.com/aretw0/intentflow/pkg/domain"
)

// SetIntent stores the intent verbatim and moves the auction to pending,
// whatever its previous status.
func (s *Store) SetIntent(ctx context.Context, in domain.Intent) error {
	return s.apply(ctx, domain.ActionSetIntent, func(next *domain.Snapshot) error {
		if in.IntentID == "" {
			return fmt.Errorf("%w: empty intent id", domain.ErrInvalidIntent)
		}
		st := &next.State
		st.IntentID = &in.IntentID
		st.Commitment = &in.Commitment
		st.EncryptedPayload = &in.EncryptedPayload
		st.OriginalText = &in.OriginalText
		parsed := in.ParsedIntent.Clone()
		st.ParsedIntent = &parsed
		st.AuctionStatus = domain.PhasePending
		return nil
	})
}

// SetAuctionResults stores the bids and the winner unchanged and completes the auction.
// The winner must be a qualified member of bids, matched by solver id.
func (s *Store) SetAuctionResults(ctx context.Context, bids []domain.SolverBid, winner domain.SolverBid) error {
	return s.apply(ctx, domain.ActionSetAuctionResults, func(next *domain.Snapshot) error {
		i := domain.FindBid(bids, winner.SolverID)
		if i < 0 {
			return fmt.Errorf("%w: %q", domain.ErrWinnerNotInBids, winner.SolverID)
		}
		if !bids[i].Qualified || !winner.Qualified {
			return fmt.Errorf("%w: %q", domain.ErrWinnerNotQualified, winner.SolverID)
		}
		st := &next.State
		st.SolverBids = make([]domain.SolverBid, len(bids))
		for j, b := range bids {
			st.SolverBids[j] = b.Clone()
		}
		w := winner.Clone()
		st.Winner = &w
		st.AuctionStatus = domain.PhaseCompleted
		return nil
	})
}

// SetAuthorization stores the transaction reference and completes authorization.
// The reference is opaque and not validated.
func (s *Store) SetAuthorization(ctx context.Context, tx string) error {
	return s.apply(ctx, domain.ActionSetAuthorization, func(next *domain.Snapshot) error {
		next.State.AuthorizationTx = &tx
		next.State.AuthorizationStatus = domain.PhaseCompleted
		return nil
	})
}

// StartExecution creates one pending step per template and moves execution
// to in-progress. It fails once execution has started.
func (s *Store) StartExecution(ctx context.Context) error {
	return s.apply(ctx, domain.ActionStartExecution, func(next *domain.Snapshot) error {
		st := &next.State
		if !st.ExecutionStatus.Startable() {
			return fmt.Errorf("%w (status %s)", domain.ErrExecutionAlreadyStarted, st.ExecutionStatus)
		}
		st.ExecutionSteps = domain.StepsFromTemplates(s.templates)
		st.ExecutionStatus = domain.ExecutionInProgress
		return nil
	})
}

// UpdateExecutionStep merges status and patch into step n and stamps its timestamp.
// An unknown step number is ignored without writing anything.
func (s *Store) UpdateExecutionStep(ctx context.Context, n int, status domain.StepStatus, patch *domain.StepPatch) error {
	return s.apply(ctx, domain.ActionUpdateExecutionStep, func(next *domain.Snapshot) error {
		if !status.Valid() {
			return fmt.Errorf("%w: step status %q", domain.ErrInvalidStatus, status)
		}
		st := &next.State
		step := st.Step(n)
		if step == nil {
			s.logger.Debug("Ignoring update for unknown step", "key", s.key, "step", n)
			return errNoop
		}
		if step.Status.Regresses(status) {
			return fmt.Errorf("%w: step %d %s -> %s", domain.ErrStepRegression, n, step.Status, status)
		}
		if s.strict && status == domain.StepCompleted {
			for _, other := range st.ExecutionSteps {
				if other.StepNumber < n && other.Status != domain.StepCompleted {
					return fmt.Errorf("%w: step %d before step %d", domain.ErrStepOutOfOrder, n, other.StepNumber)
				}
			}
		}
		step.Status = status
		if patch != nil {
			patch.Apply(step)
		}
		now := s.clock()
		step.Timestamp = &now
		return nil
	})
}

// SetFinalResult stores the summary and completes execution. A nil result
// completes execution without a summary. Once a result is stored, any further
// call before Reset, nil included, fails with domain.ErrFinalResultSet.
func (s *Store) SetFinalResult(ctx context.Context, result *domain.FinalResult) error {
	return s.apply(ctx, domain.ActionSetFinalResult, func(next *domain.Snapshot) error {
		st := &next.State
		if st.FinalResult != nil {
			return domain.ErrFinalResultSet
		}
		if result != nil {
			r := *result
			st.FinalResult = &r
		}
		st.ExecutionStatus = domain.ExecutionCompleted
		return nil
	})
}

// AddZkProof appends a proof record. Records are never deduplicated.
func (s *Store) AddZkProof(ctx context.Context, proof domain.ZkProof) error {
	return s.apply(ctx, domain.ActionAddZkProof, func(next *domain.Snapshot) error {
		if !proof.Status.Valid() {
			return fmt.Errorf("%w: proof status %q", domain.ErrInvalidStatus, proof.Status)
		}
		next.State.ZkProofs = append(next.State.ZkProofs, proof)
		return nil
	})
}

// Reset restores the initial state and advances the epoch, invalidating
// contexts bound with WithEpoch.
func (s *Store) Reset(ctx context.Context) error {
	return s.apply(ctx, domain.ActionReset, func(next *domain.Snapshot) error {
		next.State = *domain.NewState()
		next.Epoch++
		return nil
	})
}
