/*
Package ports defines the driven ports (interfaces) of the intent lifecycle store.

These interfaces decouple the store from external implementations, allowing
the same lifecycle to be persisted and replicated through various backends.

# Key Interfaces

  - SnapshotStore: persists and loads the snapshot envelope of a workspace key.
  - Replicator: carries encoded snapshots between replicas of the same key.
  - DistributedLocker: serializes mutations of one key across replicas.
*/
package ports
