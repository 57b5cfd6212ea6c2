package domain

// ProofStatus is the verification status of a proof record.
type ProofStatus string

const (
	ProofPending  ProofStatus = "pending"
	ProofVerified ProofStatus = "verified"
)

// Valid reports whether s is a known proof status.
func (s ProofStatus) Valid() bool {
	return s == ProofPending || s == ProofVerified
}

// ZkProof describes a claimed proof artifact. Nothing is verified on-chain.
type ZkProof struct {
	Type     string      `json:"type" mapstructure:"type"`
	Hash     string      `json:"hash" mapstructure:"hash"`
	Tx       string      `json:"tx" mapstructure:"tx"`
	Verifier string      `json:"verifier" mapstructure:"verifier"`
	Status   ProofStatus `json:"status" mapstructure:"status"`
	Block    string      `json:"block,omitempty" mapstructure:"block"`
}
