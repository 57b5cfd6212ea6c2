// Package snapshot encodes and decodes the persisted lifecycle envelope.
//
// The envelope is `{state, version, seq, epoch, origin, updated_at}`. Payloads
// carrying only `{state, version}` are accepted and decode with zero ordering
// metadata, so slots written by older writers can still be replayed.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/aretw0/intentflow/pkg/domain"
)

// Encode serializes a snapshot to JSON.
func Encode(s *domain.Snapshot) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil snapshot", domain.ErrMalformedSnapshot)
	}
	return json.Marshal(s)
}

// Decode parses a snapshot payload. Any payload that is not a JSON object with
// an object-valued "state" field is rejected with domain.ErrMalformedSnapshot.
func Decode(data []byte) (*domain.Snapshot, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedSnapshot, err)
	}
	raw, ok := fields["state"]
	if !ok {
		return nil, fmt.Errorf("%w: missing state", domain.ErrMalformedSnapshot)
	}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: state is not an object", domain.ErrMalformedSnapshot)
	}

	var s domain.Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedSnapshot, err)
	}
	s.State.Normalize()
	return &s, nil
}

// ToMap flattens a state into a generic key-value mapping.
func ToMap(s *domain.State) (map[string]any, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to flatten state: %w", err)
	}
	return m, nil
}

// FromMap rebuilds a state from a mapping produced by ToMap.
func FromMap(m map[string]any) (*domain.State, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal mapping: %w", err)
	}
	s := domain.NewState()
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedSnapshot, err)
	}
	s.Normalize()
	return s, nil
}
