package domain

import (
	"context"
	"time"
)

// Action names one lifecycle mutation.
type Action string

const (
	ActionSetIntent           Action = "setIntent"
	ActionSetAuctionResults   Action = "setAuctionResults"
	ActionSetAuthorization    Action = "setAuthorization"
	ActionStartExecution      Action = "startExecution"
	ActionUpdateExecutionStep Action = "updateExecutionStep"
	ActionSetFinalResult      Action = "setFinalResult"
	ActionAddZkProof          Action = "addZkProof"
	ActionReset               Action = "reset"
	ActionReplay              Action = "replay"
	ActionHydrate             Action = "hydrate"
)

// ActionEvent is emitted after a local action has been committed.
type ActionEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Key       string    `json:"key"`
	Action    Action    `json:"action"`
	Seq       uint64    `json:"seq"`
	Epoch     uint64    `json:"epoch"`
	Err       error     `json:"-"`
}

// ReplayEvent is emitted for every snapshot received from another replica.
type ReplayEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Key       string    `json:"key"`
	Origin    string    `json:"origin"`
	Seq       uint64    `json:"seq"`
	Applied   bool      `json:"applied"`
	Reason    string    `json:"reason,omitempty"`
}

// LifecycleHooks defines callbacks for store observability.
// Err on an ActionEvent is set when the action was rejected or failed to persist.
type LifecycleHooks struct {
	OnAction func(context.Context, *ActionEvent)
	OnReplay func(context.Context, *ReplayEvent)
}
