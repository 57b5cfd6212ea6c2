// Package graph renders a lifecycle snapshot as a Mermaid flowchart.
package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/intentflow/pkg/domain"
)

// Node classes applied from the snapshot.
const (
	classDone    = "done"
	classCurrent = "current"
	classFailed  = "failed"
	classIgnored = "rejected"
)

// GenerateMermaid produces a flowchart of the intent lifecycle:
// intent, auction (with one branch per bid), authorization, each execution
// step and the final result. Node shapes:
// - Intent and result: ((Circle))
// - Execution step: [[Subroutine]]
// - Authorization (user input): [/Parallelogram/]
// - Default: [Rectangle]
// Phases are styled done, current or failed from their status.
func GenerateMermaid(snap *domain.Snapshot) string {
	st := &snap.State
	var sb strings.Builder
	classes := make(map[string][]string)
	mark := func(class, id string) { classes[class] = append(classes[class], id) }

	sb.WriteString("graph TD\n")

	intentLabel := "Intent"
	if st.ParsedIntent != nil && st.ParsedIntent.Goal != "" {
		intentLabel = "Intent: " + st.ParsedIntent.Goal
	}
	fmt.Fprintf(&sb, "    intent((\"%s\"))\n", escape(intentLabel))
	if st.IntentID != nil {
		mark(classDone, "intent")
	}

	fmt.Fprintf(&sb, "    auction[\"Auction\"]\n")
	sb.WriteString("    intent --> auction\n")
	markPhase(mark, "auction", st.AuctionStatus)

	for _, bid := range st.SolverBids {
		id := sanitizeMermaidID("bid_" + bid.SolverID)
		fmt.Fprintf(&sb, "    %s[\"%s <br/> %.1f%% APY\"]\n", id, escape(bid.SolverName), bid.ExpectedAPY)
		switch {
		case st.Winner != nil && st.Winner.SolverID == bid.SolverID:
			fmt.Fprintf(&sb, "    auction == \"winner\" ==> %s\n", id)
			sb.WriteString("    " + id + " --> authorization\n")
			mark(classDone, id)
		case !bid.Qualified:
			fmt.Fprintf(&sb, "    auction -. \"%s\" .-> %s\n", escape(rejection(bid)), id)
			mark(classIgnored, id)
		default:
			fmt.Fprintf(&sb, "    auction --> %s\n", id)
		}
	}

	sb.WriteString("    authorization[/\"Authorization\"/]\n")
	if st.Winner == nil {
		sb.WriteString("    auction --> authorization\n")
	}
	markPhase(mark, "authorization", st.AuthorizationStatus)

	prev := "authorization"
	for _, step := range st.ExecutionSteps {
		id := fmt.Sprintf("step_%d", step.StepNumber)
		label := fmt.Sprintf("%d. %s", step.StepNumber, step.Description)
		if step.Via != "" {
			label += " <br/> via " + step.Via
		}
		fmt.Fprintf(&sb, "    %s[[\"%s\"]]\n", id, escape(label))
		fmt.Fprintf(&sb, "    %s --> %s\n", prev, id)
		switch step.Status {
		case domain.StepCompleted:
			mark(classDone, id)
		case domain.StepInProgress:
			mark(classCurrent, id)
		case domain.StepFailed:
			mark(classFailed, id)
		}
		prev = id
	}

	sb.WriteString("    result((\"Result\"))\n")
	fmt.Fprintf(&sb, "    %s --> result\n", prev)
	switch st.ExecutionStatus {
	case domain.ExecutionCompleted:
		mark(classDone, "result")
	case domain.ExecutionFailed:
		mark(classFailed, "result")
	}

	sb.WriteString("\n    %% Status Styles\n")
	// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
	sb.WriteString("    classDef done fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
	sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
	sb.WriteString("    classDef failed fill:#ffcdd2,stroke:#b71c1c,stroke-width:2px,color:#000;\n")
	sb.WriteString("    classDef rejected fill:#eeeeee,stroke:#9e9e9e,stroke-dasharray:4,color:#000;\n")
	for _, class := range []string{classDone, classCurrent, classFailed, classIgnored} {
		if ids := classes[class]; len(ids) > 0 {
			fmt.Fprintf(&sb, "    class %s %s;\n", strings.Join(ids, ","), class)
		}
	}
	return sb.String()
}

func markPhase(mark func(class, id string), id string, status domain.PhaseStatus) {
	switch status {
	case domain.PhaseCompleted:
		mark(classDone, id)
	case domain.PhasePending:
		mark(classCurrent, id)
	}
}

func rejection(bid domain.SolverBid) string {
	if bid.RejectionReason != "" {
		return bid.RejectionReason
	}
	return "rejected"
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
