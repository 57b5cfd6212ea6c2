package nats_test

import (
	"os"
	"testing"

	natsadapter "github.com/aretw0/intentflow/pkg/adapters/nats"
	"github.com/aretw0/intentflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a live server when INTENTFLOW_TEST_NATS_URL is set.
func TestNATSReplicator_Contract(t *testing.T) {
	url := os.Getenv("INTENTFLOW_TEST_NATS_URL")
	if url == "" {
		t.Skip("INTENTFLOW_TEST_NATS_URL not set")
	}
	r, err := natsadapter.Connect(url, "intentflow-test", nil)
	require.NoError(t, err)
	defer r.Close()

	ports.RunReplicatorContract(t, r, r)
}

func TestNATSReplicator_Subject(t *testing.T) {
	r := natsadapter.New(nil, "", nil)
	assert.Equal(t, "intentflow.intent-storage", r.Subject("intent-storage"))
}
