package middleware_test

import (
	"context"
	"testing"

	"github.com/aretw0/intentflow/pkg/persistence/middleware"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	underlyingStore := NewMockStore()
	secureStore := middleware.NewPIIMiddleware(middleware.DefaultPIIFields)(underlyingStore)

	ctx := context.Background()
	snap := secretSnapshot()

	if err := secureStore.Save(ctx, "pii", snap); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// In-memory snapshot is not modified.
	if *snap.State.OriginalText != "move my savings to the best yield" {
		t.Error("Middleware modified original state in memory!")
	}

	stored, err := underlyingStore.Load(ctx, "pii")
	if err != nil {
		t.Fatalf("Underlying load failed: %v", err)
	}

	if *stored.State.OriginalText != middleware.Mask {
		t.Errorf("Original text should be masked, got: %v", *stored.State.OriginalText)
	}
	if *stored.State.EncryptedPayload != middleware.Mask {
		t.Errorf("Payload should be masked, got: %v", *stored.State.EncryptedPayload)
	}
	if *stored.State.IntentID != "0xabc" {
		t.Error("Intent id shouldn't be masked")
	}
	if stored.Seq != snap.Seq || stored.Origin != snap.Origin {
		t.Error("Envelope metadata must be preserved")
	}
}

func TestPIIMiddleware_NestedAndUnset(t *testing.T) {
	underlyingStore := NewMockStore()
	secureStore := middleware.NewPIIMiddleware([]string{"^amount$", "^originalText$"})(underlyingStore)

	ctx := context.Background()
	snap := secretSnapshot()
	snap.State.OriginalText = nil

	if err := secureStore.Save(ctx, "nested", snap); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	stored, _ := underlyingStore.Load(ctx, "nested")

	if got := stored.State.ParsedIntent.Assets[0].Amount; got != middleware.Mask {
		t.Errorf("Nested amount should be masked, got: %v", got)
	}
	if stored.State.OriginalText != nil {
		t.Error("Unset fields must stay null")
	}
}
