package domain

// PhaseStatus is the progress of the auction and authorization phases.
type PhaseStatus string

const (
	PhaseIdle      PhaseStatus = "idle"
	PhasePending   PhaseStatus = "pending"
	PhaseCompleted PhaseStatus = "completed"
)

// ExecutionStatus is the progress of the execution phase.
type ExecutionStatus string

const (
	ExecutionIdle       ExecutionStatus = "idle"
	ExecutionPending    ExecutionStatus = "pending"
	ExecutionInProgress ExecutionStatus = "in-progress"
	ExecutionCompleted  ExecutionStatus = "completed"
	ExecutionFailed     ExecutionStatus = "failed"
)

// Startable reports whether StartExecution may run from this status.
func (s ExecutionStatus) Startable() bool {
	return s == ExecutionIdle || s == ExecutionPending || s == ""
}

// State is the flat aggregate of one intent lifecycle.
//
// Optional values are pointers so that they serialize as null when unset.
// Lists are never nil once built by NewState, so they serialize as [].
type State struct {
	IntentID         *string       `json:"intentId"`
	Commitment       *string       `json:"commitment"`
	EncryptedPayload *string       `json:"encryptedPayload"`
	OriginalText     *string       `json:"originalText"`
	ParsedIntent     *ParsedIntent `json:"parsedIntent"`

	AuctionStatus PhaseStatus `json:"auctionStatus"`
	SolverBids    []SolverBid `json:"solverBids"`
	Winner        *SolverBid  `json:"winner"`

	AuthorizationStatus PhaseStatus `json:"authorizationStatus"`
	AuthorizationTx     *string     `json:"authorizationTx"`

	ExecutionStatus ExecutionStatus `json:"executionStatus"`
	ExecutionSteps  []ExecutionStep `json:"executionSteps"`
	FinalResult     *FinalResult    `json:"finalResult"`

	ZkProofs []ZkProof `json:"zkProofs"`
}

// NewState returns the documented initial state: every optional field nil,
// every list empty and every phase idle.
func NewState() *State {
	return &State{
		AuctionStatus:       PhaseIdle,
		SolverBids:          []SolverBid{},
		AuthorizationStatus: PhaseIdle,
		ExecutionStatus:     ExecutionIdle,
		ExecutionSteps:      []ExecutionStep{},
		ZkProofs:            []ZkProof{},
	}
}

// Normalize replaces nil lists with empty ones, as decoded legacy payloads may
// omit them.
func (s *State) Normalize() {
	if s.SolverBids == nil {
		s.SolverBids = []SolverBid{}
	}
	if s.ExecutionSteps == nil {
		s.ExecutionSteps = []ExecutionStep{}
	}
	if s.ZkProofs == nil {
		s.ZkProofs = []ZkProof{}
	}
	if s.AuctionStatus == "" {
		s.AuctionStatus = PhaseIdle
	}
	if s.AuthorizationStatus == "" {
		s.AuthorizationStatus = PhaseIdle
	}
	if s.ExecutionStatus == "" {
		s.ExecutionStatus = ExecutionIdle
	}
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := *s
	out.IntentID = cloneString(s.IntentID)
	out.Commitment = cloneString(s.Commitment)
	out.EncryptedPayload = cloneString(s.EncryptedPayload)
	out.OriginalText = cloneString(s.OriginalText)
	out.AuthorizationTx = cloneString(s.AuthorizationTx)

	if s.ParsedIntent != nil {
		p := s.ParsedIntent.Clone()
		out.ParsedIntent = &p
	}
	if s.Winner != nil {
		w := s.Winner.Clone()
		out.Winner = &w
	}
	if s.FinalResult != nil {
		r := *s.FinalResult
		out.FinalResult = &r
	}

	if s.SolverBids != nil {
		out.SolverBids = make([]SolverBid, len(s.SolverBids))
		for i, b := range s.SolverBids {
			out.SolverBids[i] = b.Clone()
		}
	}
	if s.ExecutionSteps != nil {
		out.ExecutionSteps = make([]ExecutionStep, len(s.ExecutionSteps))
		for i, step := range s.ExecutionSteps {
			if step.Timestamp != nil {
				ts := *step.Timestamp
				step.Timestamp = &ts
			}
			out.ExecutionSteps[i] = step
		}
	}
	if s.ZkProofs != nil {
		out.ZkProofs = append(make([]ZkProof, 0, len(s.ZkProofs)), s.ZkProofs...)
	}
	return &out
}

// Step returns a pointer to the step with the given number, or nil.
func (s *State) Step(n int) *ExecutionStep {
	for i := range s.ExecutionSteps {
		if s.ExecutionSteps[i].StepNumber == n {
			return &s.ExecutionSteps[i]
		}
	}
	return nil
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
