package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/aretw0/intentflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute(), out.String())
	return out.String()
}

func TestVersionCommand(t *testing.T) {
	assert.True(t, strings.HasPrefix(run(t, "version"), "intentflow version "))
}

func TestSimulateThenInspect(t *testing.T) {
	t.Setenv("INTENTFLOW_STORE", "file")
	t.Setenv("INTENTFLOW_STORE_DIR", t.TempDir())

	out := run(t, "simulate", "--delay", "0", "-w", "demo", "swap", "100", "USDC", "for", "1", "month,", "2%", "gas")
	assert.Contains(t, out, ">>> intent")
	assert.Contains(t, out, ">>> done")

	assert.Contains(t, run(t, "state", "ls"), "- demo")

	var snap domain.Snapshot
	require.NoError(t, json.Unmarshal([]byte(run(t, "state", "show", "--json", "demo")), &snap))
	assert.Equal(t, domain.ExecutionCompleted, snap.State.ExecutionStatus)
	assert.NotNil(t, snap.State.FinalResult)

	assert.Contains(t, run(t, "state", "graph", "demo"), "graph TD")
	assert.Contains(t, run(t, "state", "rm", "demo"), "Removed workspace 'demo'")
}
