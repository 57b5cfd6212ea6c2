package domain

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// DecodeStepPatch decodes a free-form map into a StepPatch.
// Unknown keys are rejected; numbers are accepted where strings are expected.
func DecodeStepPatch(input map[string]any) (StepPatch, error) {
	var patch StepPatch
	if err := decodeStrict(input, &patch); err != nil {
		return StepPatch{}, fmt.Errorf("decode step patch: %w", err)
	}
	return patch, nil
}

// DecodeFinalResult decodes a free-form map into a FinalResult.
func DecodeFinalResult(input map[string]any) (FinalResult, error) {
	var r FinalResult
	if err := decodeStrict(input, &r); err != nil {
		return FinalResult{}, fmt.Errorf("decode final result: %w", err)
	}
	return r, nil
}

// DecodeProof decodes a free-form map into a ZkProof.
func DecodeProof(input map[string]any) (ZkProof, error) {
	var p ZkProof
	if err := decodeStrict(input, &p); err != nil {
		return ZkProof{}, fmt.Errorf("decode proof: %w", err)
	}
	return p, nil
}

func decodeStrict(input map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}
