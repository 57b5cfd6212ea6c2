package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/intentflow/pkg/domain"
	"github.com/aretw0/intentflow/pkg/snapshot"
)

const ext = ".json"

// ErrInvalidKey is returned for keys that cannot be used as a file name.
var ErrInvalidKey = errors.New("invalid key")

// Store implements ports.SnapshotStore using the local filesystem.
// It stores one JSON file per key in a configured directory.
type Store struct {
	BasePath string
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".intentflow/snapshots".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".intentflow", "snapshots")
	}
	return &Store{BasePath: basePath}
}

// Path returns the file that holds key.
func (s *Store) Path(key string) string {
	return filepath.Join(s.BasePath, key+ext)
}

func checkKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// Save persists the snapshot to a JSON file atomically.
// It writes to a temporary file first, syncs via fsync, and then renames it to the destination.
func (s *Store) Save(ctx context.Context, key string, snap *domain.Snapshot) error {
	if err := checkKey(key); err != nil {
		return err
	}

	if err := os.MkdirAll(s.BasePath, 0755); err != nil {
		return fmt.Errorf("failed to ensure snapshot directory: %w", err)
	}

	destPath := s.Path(key)

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	// Same directory keeps the rename on one filesystem. The "tmp-" prefix and
	// ".part" suffix keep the file out of List and out of watchers' key matches.
	tmpFile, err := os.CreateTemp(s.BasePath, "tmp-"+key+"-*.part")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath) // no-op once renamed
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}

	// Cannot rename an open file on Windows.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := replace(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file to snapshot: %w", err)
	}
	return nil
}

// Load retrieves the snapshot from its JSON file.
func (s *Store) Load(ctx context.Context, key string) (*domain.Snapshot, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.Path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}

	snap, err := snapshot.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode snapshot file %s: %w", s.Path(key), err)
	}
	return snap, nil
}

// Delete removes the snapshot file.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}

	err := os.Remove(s.Path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete snapshot file: %w", err)
	}
	return nil
}

// List returns all keys with a snapshot file.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	keys := []string{}
	for _, entry := range entries {
		if key, ok := keyOf(entry.Name()); ok && !entry.IsDir() {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func keyOf(name string) (string, bool) {
	if filepath.Ext(name) != ext || strings.HasPrefix(name, "tmp-") {
		return "", false
	}
	return strings.TrimSuffix(name, ext), true
}
