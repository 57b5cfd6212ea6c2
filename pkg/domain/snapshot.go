package domain

import "time"

// Snapshot is the persisted and replicated envelope around a State.
//
// Version is the schema version of the slot. Seq is the logical sequence number
// of the write that produced it, Epoch counts resets and Origin names the
// replica that wrote it. (Seq, Origin) totally orders snapshots of one key.
// Sealed holds the encrypted state when an encrypting store wrote the snapshot;
// State is then the initial state.
type Snapshot struct {
	State     State     `json:"state"`
	Version   int       `json:"version"`
	Seq       uint64    `json:"seq"`
	Epoch     uint64    `json:"epoch"`
	Origin    string    `json:"origin,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
	Sealed    string    `json:"sealed,omitempty"`
}

// NewerThan reports whether s is strictly after the position (seq, origin).
// Ties on seq are broken by origin so two replicas agree on the winner.
func (s *Snapshot) NewerThan(seq uint64, origin string) bool {
	if s.Seq != seq {
		return s.Seq > seq
	}
	return s.Origin > origin
}

// Legacy reports whether s was written without ordering metadata, as the
// plain {state, version} envelope of older writers is.
func (s *Snapshot) Legacy() bool {
	return s.Seq == 0 && s.Origin == ""
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := *s
	out.State = *s.State.Clone()
	return &out
}
