/*
Package intentflow tracks the lifecycle of a cross-chain intent: submission,
solver auction, user authorization, multi-step execution, final result and
zero-knowledge proofs.

The state lives in a lifecycle.Store. Every action produces a new immutable
snapshot that is persisted through a ports.SnapshotStore and published through
a ports.Replicator, so several replicas sharing a workspace key converge on the
same state. Snapshots carry a sequence number, the writing replica's origin and
an epoch that Reset advances.

# Usage

	package main

	import (
		"context"
		"log"

		"github.com/aretw0/intentflow"
		"github.com/aretw0/intentflow/pkg/adapters/memory"
		"github.com/aretw0/intentflow/pkg/domain"
		"github.com/aretw0/intentflow/pkg/lifecycle"
	)

	func main() {
		ctx := context.Background()
		st, err := intentflow.Open(ctx, "demo", lifecycle.WithStore(memory.NewStore()))
		if err != nil {
			log.Fatal(err)
		}
		err = st.SetIntent(ctx, domain.Intent{IntentID: "0x01", OriginalText: "earn yield on 1000 USDC"})
		if err != nil {
			log.Fatal(err)
		}
		log.Println(st.State().AuctionStatus) // pending
	}

Multi-workspace hosting, replication transports and the HTTP, SSE, WebSocket
and MCP surfaces live under pkg/session and pkg/adapters. The intentflow
command wires them from a YAML configuration file.
*/
package intentflow
