package domain

// SolverBid is one candidate execution proposal from a solver.
type SolverBid struct {
	SolverID        string   `json:"solver_id" mapstructure:"solver_id"`
	SolverName      string   `json:"solver_name" mapstructure:"solver_name"`
	SolverAddress   string   `json:"solver_address" mapstructure:"solver_address"`
	Strategy        string   `json:"strategy" mapstructure:"strategy"`
	ExpectedAPY     float64  `json:"expected_apy" mapstructure:"expected_apy"`
	EstimatedGas    float64  `json:"estimated_gas" mapstructure:"estimated_gas"`
	GasPercentage   float64  `json:"gas_percentage" mapstructure:"gas_percentage"`
	Protocol        string   `json:"protocol" mapstructure:"protocol"`
	TargetChain     string   `json:"target_chain" mapstructure:"target_chain"`
	Route           []string `json:"route" mapstructure:"route"`
	ZkProof         string   `json:"zk_proof" mapstructure:"zk_proof"`
	Qualified       bool     `json:"qualified" mapstructure:"qualified"`
	RejectionReason string   `json:"rejection_reason,omitempty" mapstructure:"rejection_reason"`
}

// Clone returns a deep copy of the bid.
func (b SolverBid) Clone() SolverBid {
	out := b
	if b.Route != nil {
		out.Route = append(make([]string, 0, len(b.Route)), b.Route...)
	}
	return out
}

// FindBid returns the index of the bid with the given solver id, or -1.
func FindBid(bids []SolverBid, solverID string) int {
	for i := range bids {
		if bids[i].SolverID == solverID {
			return i
		}
	}
	return -1
}
