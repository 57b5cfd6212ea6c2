package domain

const (
	// DefaultKey is the storage slot used when no workspace is named.
	DefaultKey = "intent-storage"

	// SchemaVersion is written into every snapshot envelope.
	SchemaVersion = 0
)
