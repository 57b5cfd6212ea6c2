/*
Package domain contains the core domain model of the intent lifecycle.

It defines the entities that flow through one intent's progress from parsing to
proof verification, the aggregate State that holds them, and the Snapshot
envelope that is persisted and replicated. This package is kept pure and free of
I/O so it can be shared by the store, the adapters and the transports.

# Key Entities

  - Intent / ParsedIntent: the user's request after natural-language parsing.
  - SolverBid: one candidate execution proposal produced by an auction round.
  - ExecutionStep: one stage of the simulated cross-chain execution.
  - FinalResult: the terminal summary written once per execution.
  - ZkProof: an append-only record describing a (mock) proof artifact.
  - State: the flat aggregate of all of the above plus the phase statuses.
  - Snapshot: the versioned envelope used for persistence and replay.
*/
package domain
