/*
Package lifecycle implements the intent lifecycle store.

A Store holds the single source of truth for one intent's progress through
parsing, auction, authorization, execution and proof collection. Every action
is validated, applied to a copy of the state, persisted as a Snapshot and then
published to sibling replicas.

Replicas converge by full replacement: an incoming snapshot is adopted only if
its (seq, origin) position is strictly after the local one, and a replica never
adopts its own writes. When a DistributedLocker is configured, each action
runs under the workspace lock and first catches up with the persisted slot, so
concurrent replicas do not lose each other's updates.

Basic usage:

	store := lifecycle.New("intent-storage",
		lifecycle.WithStore(memory.NewStore()),
		lifecycle.WithReplicator(bus),
	)
	if err := store.Hydrate(ctx); err != nil { ... }
	done, err := store.Follow(ctx)
	...
	err = store.SetIntent(ctx, intent)
*/
package lifecycle
