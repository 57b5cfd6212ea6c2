// Package tui renders lifecycle state for terminals.
package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/intentflow/pkg/domain"
	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a function that renders markdown using glamour.
func NewRenderer() func(string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
		glamour.WithWordWrap(100),
	)
	return func(markdown string) (string, error) {
		if err != nil {
			return "", err
		}
		return r.Render(markdown)
	}
}

// RenderState renders the snapshot summary, styled unless plain is set.
func RenderState(name string, snap *domain.Snapshot, plain bool) (string, error) {
	md := StateMarkdown(name, snap)
	if plain {
		return md, nil
	}
	return NewRenderer()(md)
}

// StateMarkdown summarizes a snapshot as markdown.
func StateMarkdown(name string, snap *domain.Snapshot) string {
	var b strings.Builder
	st := &snap.State

	fmt.Fprintf(&b, "# %s\n\n", name)
	fmt.Fprintf(&b, "seq **%d** · epoch **%d**", snap.Seq, snap.Epoch)
	if snap.Origin != "" {
		fmt.Fprintf(&b, " · origin `%s`", snap.Origin)
	}
	b.WriteString("\n\n")

	b.WriteString("| Phase | Status |\n|---|---|\n")
	fmt.Fprintf(&b, "| Auction | %s |\n", st.AuctionStatus)
	fmt.Fprintf(&b, "| Authorization | %s |\n", st.AuthorizationStatus)
	fmt.Fprintf(&b, "| Execution | %s |\n\n", st.ExecutionStatus)

	if st.IntentID != nil {
		b.WriteString("## Intent\n\n")
		fmt.Fprintf(&b, "- id: `%s`\n", *st.IntentID)
		if st.OriginalText != nil && *st.OriginalText != "" {
			fmt.Fprintf(&b, "- text: %s\n", *st.OriginalText)
		}
		if p := st.ParsedIntent; p != nil {
			fmt.Fprintf(&b, "- goal: %s\n", p.Goal)
			for _, a := range p.Assets {
				fmt.Fprintf(&b, "- asset: %s %s on %s\n", a.Amount, a.Token, a.Chain)
			}
			if p.Constraints.Duration != "" {
				fmt.Fprintf(&b, "- duration: %s, max gas %s\n", p.Constraints.Duration, p.Constraints.MaxGasTolerance)
			}
		}
		b.WriteString("\n")
	}

	if len(st.SolverBids) > 0 {
		b.WriteString("## Bids\n\n| Solver | APY | Gas | Protocol | Qualified |\n|---|---|---|---|---|\n")
		for _, bid := range st.SolverBids {
			label := bid.SolverName
			if st.Winner != nil && st.Winner.SolverID == bid.SolverID {
				label = "**" + label + "** (winner)"
			}
			qualified := "yes"
			if !bid.Qualified {
				qualified = "no"
				if bid.RejectionReason != "" {
					qualified += ": " + bid.RejectionReason
				}
			}
			fmt.Fprintf(&b, "| %s | %.1f%% | $%.2f | %s | %s |\n", label, bid.ExpectedAPY, bid.EstimatedGas, bid.Protocol, qualified)
		}
		b.WriteString("\n")
	}

	if st.AuthorizationTx != nil {
		fmt.Fprintf(&b, "Authorization tx: `%s`\n\n", *st.AuthorizationTx)
	}

	if len(st.ExecutionSteps) > 0 {
		b.WriteString("## Execution\n\n| # | Step | Status | Fee |\n|---|---|---|---|\n")
		for _, s := range st.ExecutionSteps {
			fmt.Fprintf(&b, "| %d | %s | %s | %s |\n", s.StepNumber, s.Description, s.Status, s.Fee)
		}
		b.WriteString("\n")
	}

	if r := st.FinalResult; r != nil {
		b.WriteString("## Result\n\n")
		fmt.Fprintf(&b, "- initial assets: %s\n- gas fees: %s\n- final position: %s\n- monthly yield: %s\n- net return: %s\n\n",
			r.InitialAssets, r.TotalGasFees, r.FinalPosition, r.ExpectedMonthlyYield, r.NetReturn)
	}

	if len(st.ZkProofs) > 0 {
		b.WriteString("## Proofs\n\n")
		for _, p := range st.ZkProofs {
			fmt.Fprintf(&b, "- %s `%s` (%s)\n", p.Type, p.Hash, p.Status)
		}
	}
	return b.String()
}
