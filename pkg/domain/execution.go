package domain

import "time"

// StepStatus is the progress of a single execution step.
// It only moves forward: pending -> in-progress -> completed | failed.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in-progress"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
)

// Valid reports whether s is a known step status.
func (s StepStatus) Valid() bool {
	return s.rank() >= 0
}

// Terminal reports whether no further transition is possible.
func (s StepStatus) Terminal() bool {
	return s == StepCompleted || s == StepFailed
}

// Regresses reports whether moving from s to next goes backwards.
// Moving between the two terminal statuses also counts as a regression.
func (s StepStatus) Regresses(next StepStatus) bool {
	if s.Terminal() && next != s {
		return true
	}
	return next.rank() < s.rank()
}

func (s StepStatus) rank() int {
	switch s {
	case StepPending:
		return 0
	case StepInProgress:
		return 1
	case StepCompleted, StepFailed:
		return 2
	}
	return -1
}

// ExecutionStep is one stage of the simulated cross-chain execution.
// StepNumber is 1-based and is the stable ordering key.
type ExecutionStep struct {
	StepNumber  int        `json:"step_number"`
	Description string     `json:"description"`
	Status      StepStatus `json:"status"`
	Via         string     `json:"via,omitempty"`
	SourceTx    string     `json:"source_tx,omitempty"`
	DestTx      string     `json:"dest_tx,omitempty"`
	SourceChain string     `json:"source_chain,omitempty"`
	DestChain   string     `json:"dest_chain,omitempty"`
	Amount      string     `json:"amount,omitempty"`
	Fee         string     `json:"fee,omitempty"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
}

// StepPatch carries the optional fields merged into a step on update.
// Nil fields are left untouched.
type StepPatch struct {
	Via         *string `json:"via,omitempty" mapstructure:"via"`
	SourceTx    *string `json:"source_tx,omitempty" mapstructure:"source_tx"`
	DestTx      *string `json:"dest_tx,omitempty" mapstructure:"dest_tx"`
	SourceChain *string `json:"source_chain,omitempty" mapstructure:"source_chain"`
	DestChain   *string `json:"dest_chain,omitempty" mapstructure:"dest_chain"`
	Amount      *string `json:"amount,omitempty" mapstructure:"amount"`
	Fee         *string `json:"fee,omitempty" mapstructure:"fee"`
}

// Apply merges the non-nil patch fields into step.
func (p StepPatch) Apply(step *ExecutionStep) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&step.Via, p.Via)
	set(&step.SourceTx, p.SourceTx)
	set(&step.DestTx, p.DestTx)
	set(&step.SourceChain, p.SourceChain)
	set(&step.DestChain, p.DestChain)
	set(&step.Amount, p.Amount)
	set(&step.Fee, p.Fee)
}

// StepTemplate describes one step created by StartExecution.
type StepTemplate struct {
	Description string `json:"description" yaml:"description"`
	Via         string `json:"via,omitempty" yaml:"via,omitempty"`
	SourceChain string `json:"source_chain,omitempty" yaml:"source_chain,omitempty"`
	DestChain   string `json:"dest_chain,omitempty" yaml:"dest_chain,omitempty"`
}

// DefaultStepTemplates returns the canonical four-step route:
// two bridges into Optimism, a swap and a supply.
func DefaultStepTemplates() []StepTemplate {
	return []StepTemplate{
		{Description: "Bridge USDC (Arbitrum → Optimism)", Via: "Avail Nexus", SourceChain: "Arbitrum", DestChain: "Optimism"},
		{Description: "Bridge USDT (Polygon → Optimism)", Via: "Avail Nexus", SourceChain: "Polygon", DestChain: "Optimism"},
		{Description: "Swap USDT → USDC (Optimism)", Via: "Uniswap V3"},
		{Description: "Supply to Morpho (Optimism)"},
	}
}

// StepsFromTemplates builds pending steps numbered 1..len(templates).
func StepsFromTemplates(templates []StepTemplate) []ExecutionStep {
	steps := make([]ExecutionStep, len(templates))
	for i, t := range templates {
		steps[i] = ExecutionStep{
			StepNumber:  i + 1,
			Description: t.Description,
			Status:      StepPending,
			Via:         t.Via,
			SourceChain: t.SourceChain,
			DestChain:   t.DestChain,
		}
	}
	return steps
}

// FinalResult is the terminal summary of one execution.
type FinalResult struct {
	InitialAssets        string `json:"initial_assets" mapstructure:"initial_assets"`
	TotalGasFees         string `json:"total_gas_fees" mapstructure:"total_gas_fees"`
	FinalPosition        string `json:"final_position" mapstructure:"final_position"`
	ExpectedMonthlyYield string `json:"expected_monthly_yield" mapstructure:"expected_monthly_yield"`
	NetReturn            string `json:"net_return" mapstructure:"net_return"`
}
