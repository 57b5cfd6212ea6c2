package domain

import (
	"reflect"
)

// StateDiff represents the changes between two states.
// It is designed to be serialized to JSON for partial updates on the client.
type StateDiff struct {
	// Seq is always present to identify the write.
	Seq uint64 `json:"seq"`

	// Intent is set when any intent field changed.
	Intent *IntentDelta `json:"intent,omitempty"`

	AuctionStatus       *PhaseStatus     `json:"auctionStatus,omitempty"`
	AuthorizationStatus *PhaseStatus     `json:"authorizationStatus,omitempty"`
	ExecutionStatus     *ExecutionStatus `json:"executionStatus,omitempty"`

	// Bids carries the whole bid list and winner when the auction changed.
	Bids *AuctionDelta `json:"auction,omitempty"`

	AuthorizationTx *string `json:"authorizationTx,omitempty"`

	// Steps contains only steps that were added or changed.
	Steps []ExecutionStep `json:"executionSteps,omitempty"`

	FinalResult *FinalResult `json:"finalResult,omitempty"`

	// Proofs contains *new* proofs appended since the old state.
	Proofs []ZkProof `json:"zkProofs,omitempty"`

	// Reset is true when lists shrank, which only happens on reset.
	// Clients should replace their state rather than merge.
	Reset bool `json:"reset,omitempty"`
}

// IntentDelta is the full intent after a change.
type IntentDelta struct {
	IntentID         *string       `json:"intentId"`
	Commitment       *string       `json:"commitment"`
	EncryptedPayload *string       `json:"encryptedPayload"`
	OriginalText     *string       `json:"originalText"`
	ParsedIntent     *ParsedIntent `json:"parsedIntent"`
}

// AuctionDelta is the full auction outcome after a change.
type AuctionDelta struct {
	SolverBids []SolverBid `json:"solverBids"`
	Winner     *SolverBid  `json:"winner"`
}

// Diff calculates the difference between oldState and newState.
// If oldState is nil, it returns a diff representing the entire newState (initial load).
func Diff(oldState, newState *State) *StateDiff {
	if newState == nil {
		return nil
	}
	if oldState == nil {
		oldState = NewState()
	}

	diff := &StateDiff{}

	if !sameIntent(oldState, newState) {
		diff.Intent = &IntentDelta{
			IntentID:         newState.IntentID,
			Commitment:       newState.Commitment,
			EncryptedPayload: newState.EncryptedPayload,
			OriginalText:     newState.OriginalText,
			ParsedIntent:     newState.ParsedIntent,
		}
	}

	if oldState.AuctionStatus != newState.AuctionStatus {
		diff.AuctionStatus = &newState.AuctionStatus
	}
	if oldState.AuthorizationStatus != newState.AuthorizationStatus {
		diff.AuthorizationStatus = &newState.AuthorizationStatus
	}
	if oldState.ExecutionStatus != newState.ExecutionStatus {
		diff.ExecutionStatus = &newState.ExecutionStatus
	}

	if !reflect.DeepEqual(oldState.SolverBids, newState.SolverBids) ||
		!reflect.DeepEqual(oldState.Winner, newState.Winner) {
		diff.Bids = &AuctionDelta{SolverBids: newState.SolverBids, Winner: newState.Winner}
	}
	if !reflect.DeepEqual(oldState.AuthorizationTx, newState.AuthorizationTx) {
		diff.AuthorizationTx = newState.AuthorizationTx
	}
	if !reflect.DeepEqual(oldState.FinalResult, newState.FinalResult) {
		diff.FinalResult = newState.FinalResult
	}

	diff.Steps = diffSteps(oldState, newState)
	diff.Proofs = diffProofs(oldState, newState)

	if len(newState.ExecutionSteps) < len(oldState.ExecutionSteps) ||
		len(newState.ZkProofs) < len(oldState.ZkProofs) ||
		len(newState.SolverBids) < len(oldState.SolverBids) {
		diff.Reset = true
	}

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func sameIntent(old, new *State) bool {
	return reflect.DeepEqual(old.IntentID, new.IntentID) &&
		reflect.DeepEqual(old.Commitment, new.Commitment) &&
		reflect.DeepEqual(old.EncryptedPayload, new.EncryptedPayload) &&
		reflect.DeepEqual(old.OriginalText, new.OriginalText) &&
		reflect.DeepEqual(old.ParsedIntent, new.ParsedIntent)
}

func diffSteps(old, new *State) []ExecutionStep {
	var changed []ExecutionStep
	for _, step := range new.ExecutionSteps {
		prev := old.Step(step.StepNumber)
		if prev == nil || !reflect.DeepEqual(*prev, step) {
			changed = append(changed, step)
		}
	}
	return changed
}

// diffProofs assumes append-only behavior for proofs.
func diffProofs(old, new *State) []ZkProof {
	oldLen := len(old.ZkProofs)
	if len(new.ZkProofs) > oldLen {
		return new.ZkProofs[oldLen:]
	}
	return nil
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *StateDiff) IsEmpty() bool {
	return d.Intent == nil &&
		d.AuctionStatus == nil &&
		d.AuthorizationStatus == nil &&
		d.ExecutionStatus == nil &&
		d.Bids == nil &&
		d.AuthorizationTx == nil &&
		len(d.Steps) == 0 &&
		d.FinalResult == nil &&
		len(d.Proofs) == 0 &&
		!d.Reset
}

// Touches reports whether the diff affects the named area. Areas are
// intent, auction, authorization, execution and proofs.
func (d *StateDiff) Touches(area string) bool {
	if d == nil {
		return false
	}
	if d.Reset {
		return true
	}
	switch area {
	case "intent":
		return d.Intent != nil
	case "auction":
		return d.AuctionStatus != nil || d.Bids != nil
	case "authorization":
		return d.AuthorizationStatus != nil || d.AuthorizationTx != nil
	case "execution":
		return d.ExecutionStatus != nil || len(d.Steps) > 0 || d.FinalResult != nil
	case "proofs":
		return len(d.Proofs) > 0
	}
	return false
}
