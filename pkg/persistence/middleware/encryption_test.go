package middleware_test

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aretw0/intentflow/pkg/domain"
	"github.com/aretw0/intentflow/pkg/persistence/middleware"
	"github.com/aretw0/intentflow/pkg/ports"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		t.Fatal(err)
	}
	return k
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlyingStore := NewMockStore()
	key := generateKey(t)
	mw := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
	secureStore := mw(underlyingStore)

	ctx := context.Background()
	original := secretSnapshot()

	if err := secureStore.Save(ctx, "ws", original); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// The underlying slot only holds the sealed blob.
	stored, err := underlyingStore.Load(ctx, "ws")
	if err != nil {
		t.Fatalf("Underlying load failed: %v", err)
	}
	if stored.State.OriginalText != nil {
		t.Fatalf("Expected original text to be hidden, found: %v", *stored.State.OriginalText)
	}
	if stored.Sealed == "" {
		t.Fatal("Expected sealed payload in envelope")
	}
	if strings.Contains(stored.Sealed, "savings") {
		t.Fatal("Sealed payload leaks plaintext")
	}
	if stored.Seq != 4 || stored.Origin != "tab-a" {
		t.Errorf("Ordering metadata must stay readable, got seq=%d origin=%q", stored.Seq, stored.Origin)
	}

	loaded, err := secureStore.Load(ctx, "ws")
	if err != nil {
		t.Fatalf("Load via middleware failed: %v", err)
	}
	if loaded.Sealed != "" {
		t.Error("Sealed must be cleared after decryption")
	}
	if *loaded.State.OriginalText != "move my savings to the best yield" {
		t.Errorf("Expected original text back, got %v", *loaded.State.OriginalText)
	}
	if loaded.State.ParsedIntent.Assets[0].Amount != "250" {
		t.Errorf("Nested fields lost in roundtrip")
	}
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlyingStore := NewMockStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)

	secureStoreOld := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})(underlyingStore)

	ctx := context.Background()
	if err := secureStoreOld.Save(ctx, "rotation", secretSnapshot()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	secureStoreNew := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(underlyingStore)

	loaded, err := secureStoreNew.Load(ctx, "rotation")
	if err != nil {
		t.Fatalf("Load with rotated key failed: %v", err)
	}
	if *loaded.State.IntentID != "0xabc" {
		t.Errorf("Decryption with fallback key failed")
	}

	// Saving again re-encrypts with the new key.
	if err := secureStoreNew.Save(ctx, "rotation", loaded); err != nil {
		t.Fatalf("Save with new key failed: %v", err)
	}

	if _, err := secureStoreOld.Load(ctx, "rotation"); err == nil {
		t.Error("Expected failure when loading new-key encryption with old-key middleware")
	}
}

func TestEncryptionMiddleware_RejectsPlainSnapshot(t *testing.T) {
	underlyingStore := NewMockStore()
	ctx := context.Background()
	if err := underlyingStore.Save(ctx, "plain", secretSnapshot()); err != nil {
		t.Fatal(err)
	}

	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlyingStore)
	if _, err := secure.Load(ctx, "plain"); !errors.Is(err, middleware.ErrNotSealed) {
		t.Errorf("Expected ErrNotSealed, got %v", err)
	}
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(NewMockStore())
	ports.RunSnapshotStoreContract(t, secure)
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("Expected panic for invalid key size")
		}
	}()
	middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
}

func TestEncryptionMiddleware_NotFound(t *testing.T) {
	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(NewMockStore())
	if _, err := secure.Load(context.Background(), "missing"); !errors.Is(err, domain.ErrSnapshotNotFound) {
		t.Errorf("Expected ErrSnapshotNotFound, got %v", err)
	}
}
