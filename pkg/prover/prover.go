// Package prover produces placeholder proof artifacts for the demo lifecycle.
//
// Nothing here is a zero-knowledge proof. Commitments are keccak256 digests of
// the public inputs; solver and execution proofs are tagged digests whose only
// checkable property is their format.
package prover

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/intentflow/pkg/domain"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// SolverProofPrefix tags proofs that a bid satisfies the intent constraints.
	SolverProofPrefix = "0xproof_"
	// ExecutionProofPrefix tags proofs of a finished execution.
	ExecutionProofPrefix = "0xexec_"

	// MaxAPY is the highest believable APY, in percent.
	MaxAPY = 500.0

	minSolverProofLen = 20
)

// AllowedProtocols are the protocols a solver may route funds into.
var AllowedProtocols = []string{"morpho", "aave", "compound", "uniswap", "curve"}

// Constraint failures of SolverProof.
var (
	ErrGasOverBudget      = errors.New("gas over budget")
	ErrNonPositiveAPY     = errors.New("apy must be positive")
	ErrUnrealisticAPY     = errors.New("apy is unrealistic")
	ErrProtocolNotAllowed = errors.New("protocol not allowed")
	ErrInvalidCommitment  = errors.New("invalid commitment")
)

// Commit returns the keccak256 commitment of the given public inputs.
func Commit(parts ...any) string {
	fields := make([]string, len(parts))
	for i, p := range parts {
		fields[i] = fmt.Sprint(p)
	}
	return crypto.Keccak256Hash([]byte(strings.Join(fields, "|"))).Hex()
}

// ValidCommitment reports whether s is a 0x-prefixed 32-byte hex string.
func ValidCommitment(s string) bool {
	b, err := hexutil.Decode(s)
	return err == nil && len(b) == 32
}

// protocolName reduces a display name such as "Aave V3" to its family.
func protocolName(p string) string {
	fields := strings.Fields(strings.ToLower(p))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// CheckBid validates a bid against the intent constraints. A maxGasUSD of zero
// disables the gas budget.
func CheckBid(bid domain.SolverBid, maxGasUSD float64) error {
	if maxGasUSD > 0 && bid.EstimatedGas > maxGasUSD {
		return fmt.Errorf("%w: %.2f > %.2f", ErrGasOverBudget, bid.EstimatedGas, maxGasUSD)
	}
	if bid.ExpectedAPY <= 0 {
		return ErrNonPositiveAPY
	}
	if bid.ExpectedAPY > MaxAPY {
		return fmt.Errorf("%w: %.1f%%", ErrUnrealisticAPY, bid.ExpectedAPY)
	}
	name := protocolName(bid.Protocol)
	for _, allowed := range AllowedProtocols {
		if name == allowed {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrProtocolNotAllowed, bid.Protocol)
}

// SolverProof returns a proof that bid satisfies the constraints of the intent
// committed to by commitment.
func SolverProof(commitment string, bid domain.SolverBid, maxGasUSD float64) (string, error) {
	if commitment == "" {
		return "", ErrInvalidCommitment
	}
	if err := CheckBid(bid, maxGasUSD); err != nil {
		return "", err
	}
	digest := Commit(commitment, bid.SolverAddress, bid.ExpectedAPY, bid.EstimatedGas, protocolName(bid.Protocol))
	return SolverProofPrefix + tail(bid.SolverAddress, 6) + "_" + tail(digest, 8), nil
}

// VerifySolverProof checks the proof format only.
func VerifySolverProof(proof string) bool {
	return strings.HasPrefix(proof, SolverProofPrefix) && len(proof) >= minSolverProofLen
}

// ExecutionProof returns an execution proof and the final balance commitment
// for a finished execution.
func ExecutionProof(commitment string, result domain.FinalResult, steps int, solver string, at time.Time) (proof, balance string) {
	balance = Commit("balance", Commit(commitment, result.FinalPosition, result.TotalGasFees, at.UnixNano()))
	digest := Commit("exec_proof", commitment, balance, steps, solver)
	return ExecutionProofPrefix + tail(digest, 16), balance
}

// VerifyExecutionProof checks the proof format and that both commitments are present.
func VerifyExecutionProof(proof, commitment, balance string) bool {
	return strings.HasPrefix(proof, ExecutionProofPrefix) && commitment != "" && balance != ""
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
