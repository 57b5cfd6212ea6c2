package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "intent-storage", cfg.Workspace)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, 100*time.Millisecond, cfg.Simulate.Delay)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "intentflow.yaml")
	yml := `
workspace: alice
store:
  backend: file
  dir: ` + filepath.Join(dir, "data") + `
replication:
  backend: file
lifecycle:
  strict_step_order: true
  templates:
    - description: Bridge to Base
      via: Across
      source_chain: Arbitrum
      dest_chain: Base
simulate:
  delay: 5ms
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))
	t.Setenv("INTENTFLOW_WORKSPACE", "bob")
	t.Setenv("INTENTFLOW_STRATEGY", "lowest_gas")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "bob", cfg.Workspace)
	assert.Equal(t, BackendFile, cfg.Store.Backend)
	assert.True(t, cfg.Lifecycle.StrictStepOrder)
	require.Len(t, cfg.Lifecycle.Templates, 1)
	assert.Equal(t, "Across", cfg.Lifecycle.Templates[0].Via)
	assert.Equal(t, 5*time.Millisecond, cfg.Simulate.Delay)
	assert.Equal(t, "lowest_gas", cfg.Simulate.Strategy)
	// Untouched defaults survive.
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(lookupFrom(map[string]string{
		"INTENTFLOW_STORE":             "redis",
		"INTENTFLOW_REDIS_DB":          "3",
		"INTENTFLOW_REPLICATION":       "nats",
		"INTENTFLOW_MASK_PII":          "true",
		"INTENTFLOW_LOCK_TTL":          "2s",
		"INTENTFLOW_STRICT_STEP_ORDER": "1",
	}))
	require.NoError(t, err)
	assert.Equal(t, BackendRedis, cfg.Store.Backend)
	assert.Equal(t, 3, cfg.Store.Redis.DB)
	assert.Equal(t, BackendNATS, cfg.Replication.Backend)
	assert.True(t, cfg.Security.MaskPII)
	assert.Equal(t, 2*time.Second, cfg.Lock.TTL)
	assert.True(t, cfg.Lifecycle.StrictStepOrder)

	err = Default().ApplyEnv(lookupFrom(map[string]string{
		"INTENTFLOW_MASK_PII": "maybe",
		"INTENTFLOW_DELAY":    "soon",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INTENTFLOW_MASK_PII")
	assert.Contains(t, err.Error(), "INTENTFLOW_DELAY")
}

func TestValidate(t *testing.T) {
	key := base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"unknown store", func(c *Config) { c.Store.Backend = "s3" }, false},
		{"file replication needs file store", func(c *Config) { c.Replication.Backend = BackendFile }, false},
		{"unknown lock", func(c *Config) { c.Lock.Backend = "zookeeper" }, false},
		{"bad strategy", func(c *Config) { c.Simulate.Strategy = "cheapest" }, false},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, false},
		{"short key", func(c *Config) { c.Security.EncryptionKey = "0x0102" }, false},
		{"fallback without active", func(c *Config) { c.Security.FallbackKeys = []string{key} }, false},
		{"base64 key", func(c *Config) { c.Security.EncryptionKey = key }, true},
		{"hex key", func(c *Config) { c.Security.EncryptionKey = "0x" + strings.Repeat("ab", 32) }, true},
		{"pii with file replication", func(c *Config) {
			c.Store.Backend, c.Replication.Backend, c.Security.MaskPII = BackendFile, BackendFile, true
		}, false},
		{"pii with lock", func(c *Config) {
			c.Store.Backend, c.Lock.Backend, c.Security.MaskPII = BackendRedis, BackendRedis, true
		}, false},
		{"pii with nats", func(c *Config) {
			c.Store.Backend, c.Replication.Backend, c.Security.MaskPII = BackendRedis, BackendNATS, true
		}, true},
		{"redis everything", func(c *Config) {
			c.Store.Backend, c.Replication.Backend, c.Lock.Backend = BackendRedis, BackendRedis, BackendRedis
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalid)
			}
		})
	}
}

func TestSecurityKeys(t *testing.T) {
	active := strings.Repeat("a", 32)
	old := strings.Repeat("b", 32)
	s := SecurityConfig{
		EncryptionKey: base64.StdEncoding.EncodeToString([]byte(active)),
		FallbackKeys:  []string{base64.StdEncoding.EncodeToString([]byte(old))},
	}
	a, fb, err := s.Keys()
	require.NoError(t, err)
	assert.Equal(t, []byte(active), a)
	require.Len(t, fb, 1)
	assert.Equal(t, []byte(old), fb[0])

	a, fb, err = SecurityConfig{}.Keys()
	require.NoError(t, err)
	assert.Nil(t, a)
	assert.Nil(t, fb)
}
