package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/intentflow/pkg/domain"
	"github.com/aretw0/intentflow/pkg/ports"
	"github.com/aretw0/intentflow/pkg/snapshot"
)

// Mask replaces redacted string values.
const Mask = "***"

// DefaultPIIFields matches the user's free text and the payload placeholder.
var DefaultPIIFields = []string{`^originalText$`, `^encryptedPayload$`}

type piiMiddleware struct {
	next     ports.SnapshotStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks string values whose JSON
// field name matches one of the patterns, at any depth of the state.
// Only the persisted copy is masked; the live state keeps the original values.
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.SnapshotStore) ports.SnapshotStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

func (m *piiMiddleware) Save(ctx context.Context, key string, snap *domain.Snapshot) error {
	// Flattening yields a private copy, so the caller's state is untouched.
	flat, err := snapshot.ToMap(&snap.State)
	if err != nil {
		return err
	}

	maskMap(flat, m.patterns)

	masked, err := snapshot.FromMap(flat)
	if err != nil {
		return fmt.Errorf("failed to rebuild masked state: %w", err)
	}

	out := *snap
	out.State = *masked
	return m.next.Save(ctx, key, &out)
}

func (m *piiMiddleware) Load(ctx context.Context, key string) (*domain.Snapshot, error) {
	return m.next.Load(ctx, key)
}

func (m *piiMiddleware) Delete(ctx context.Context, key string) error {
	return m.next.Delete(ctx, key)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

// Helpers

func maskMap(m map[string]any, patterns []*regexp.Regexp) {
	for k, v := range m {
		if _, ok := v.(string); ok {
			for _, p := range patterns {
				if p.MatchString(k) {
					m[k] = Mask
					break
				}
			}
			continue
		}
		maskValue(v, patterns)
	}
}

func maskValue(v any, patterns []*regexp.Regexp) {
	switch t := v.(type) {
	case map[string]any:
		maskMap(t, patterns)
	case []any:
		for _, item := range t {
			maskValue(item, patterns)
		}
	}
}
