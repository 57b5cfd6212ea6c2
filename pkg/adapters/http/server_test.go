package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aretw0/intentflow/internal/metrics"
	api "github.com/aretw0/intentflow/pkg/adapters/http"
	"github.com/aretw0/intentflow/pkg/adapters/memory"
	"github.com/aretw0/intentflow/pkg/domain"
	"github.com/aretw0/intentflow/pkg/lifecycle"
	"github.com/aretw0/intentflow/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *session.Manager) {
	t.Helper()
	mgr := session.NewManager(memory.NewStore())
	srv := httptest.NewServer(api.NewHandler(mgr,
		api.WithVersion("test"),
		api.WithMetrics(metrics.New(nil)),
	))
	t.Cleanup(func() {
		srv.Close()
		_ = mgr.Close()
	})
	return srv, mgr
}

func do(t *testing.T, method, url, body string) (int, []byte) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func decodeSnapshot(t *testing.T, data []byte) domain.Snapshot {
	t.Helper()
	var snap domain.Snapshot
	require.NoError(t, json.Unmarshal(data, &snap), string(data))
	return snap
}

const intentBody = `{
	"intentId": "0xabc",
	"commitment": "0xabc",
	"encryptedPayload": "0xpayload",
	"originalText": "supply 500 USDC",
	"parsedIntent": {"goal": "supply", "assets": [{"chain": "Arbitrum", "token": "USDC", "amount": "500"}],
		"constraints": {"duration": "90d", "max_gas_tolerance": "3%"}}
}`

const auctionBody = `{
	"bids": [
		{"solver_id": "solver_a", "solver_name": "Bob", "expected_apy": 12.5, "estimated_gas": 12.5, "qualified": true},
		{"solver_id": "solver_c", "solver_name": "C", "expected_apy": 14, "qualified": false, "rejection_reason": "failed verification"}
	],
	"winner_id": "solver_a"
}`

func TestHealthAndInfo(t *testing.T) {
	srv, _ := newTestServer(t)

	code, body := do(t, http.MethodGet, srv.URL+"/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	code, body = do(t, http.MethodGet, srv.URL+"/info", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"app":"intentflow-http","version":"test","api_version":"v1"}`, string(body))

	code, body = do(t, http.MethodGet, srv.URL+"/metrics", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestLifecycleOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)
	ws := srv.URL + "/workspaces/alice"

	code, body := do(t, http.MethodPost, ws+"/intent", intentBody)
	require.Equal(t, http.StatusOK, code, string(body))
	snap := decodeSnapshot(t, body)
	assert.Equal(t, domain.PhasePending, snap.State.AuctionStatus)

	code, body = do(t, http.MethodPost, ws+"/auction", auctionBody)
	require.Equal(t, http.StatusOK, code, string(body))
	snap = decodeSnapshot(t, body)
	require.NotNil(t, snap.State.Winner)
	assert.Equal(t, "solver_a", snap.State.Winner.SolverID)
	assert.Len(t, snap.State.SolverBids, 2)

	code, _ = do(t, http.MethodPost, ws+"/authorization", `{"tx":"0xauth"}`)
	require.Equal(t, http.StatusOK, code)

	code, body = do(t, http.MethodPost, ws+"/execution", "")
	require.Equal(t, http.StatusOK, code, string(body))
	assert.Len(t, decodeSnapshot(t, body).State.ExecutionSteps, 4)

	code, body = do(t, http.MethodPatch, ws+"/execution/steps/1", `{"status":"completed","fee":"$3.50","source_tx":"0x1"}`)
	require.Equal(t, http.StatusOK, code, string(body))
	step := decodeSnapshot(t, body).State.ExecutionSteps[0]
	assert.Equal(t, domain.StepCompleted, step.Status)
	assert.Equal(t, "$3.50", step.Fee)
	assert.NotNil(t, step.Timestamp)

	code, _ = do(t, http.MethodPost, ws+"/result", `{"initial_assets":"$500","net_return":"$4.20"}`)
	require.Equal(t, http.StatusOK, code)

	code, _ = do(t, http.MethodPost, ws+"/result", `null`)
	assert.Equal(t, http.StatusConflict, code, "a stored result is never cleared")

	code, _ = do(t, http.MethodPost, ws+"/proofs", `{"type":"Execution Proof","hash":"0xexec","status":"verified","block":12345690}`)
	require.Equal(t, http.StatusOK, code)

	code, body = do(t, http.MethodGet, ws+"/state", "")
	require.Equal(t, http.StatusOK, code)
	snap = decodeSnapshot(t, body)
	assert.Equal(t, domain.ExecutionCompleted, snap.State.ExecutionStatus)
	require.NotNil(t, snap.State.FinalResult)
	assert.Equal(t, "$4.20", snap.State.FinalResult.NetReturn)
	require.Len(t, snap.State.ZkProofs, 1)
	assert.Equal(t, "12345690", snap.State.ZkProofs[0].Block)
	assert.Equal(t, uint64(7), snap.Seq)

	code, body = do(t, http.MethodGet, srv.URL+"/workspaces", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"workspaces":["alice"]}`, string(body))

	code, body = do(t, http.MethodPost, ws+"/reset", "")
	require.Equal(t, http.StatusOK, code)
	snap = decodeSnapshot(t, body)
	assert.Equal(t, *domain.NewState(), snap.State)
	assert.Equal(t, uint64(1), snap.Epoch)

	code, _ = do(t, http.MethodDelete, ws+"/", "")
	assert.Equal(t, http.StatusNoContent, code)
	code, _ = do(t, http.MethodGet, ws+"/state", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestErrorMapping(t *testing.T) {
	srv, _ := newTestServer(t)
	ws := srv.URL + "/workspaces/bob"

	tests := []struct {
		name   string
		method string
		url    string
		body   string
		want   int
	}{
		{"invalid workspace", http.MethodPost, srv.URL + "/workspaces/bad%21name/reset", "", http.StatusBadRequest},
		{"unknown workspace", http.MethodGet, srv.URL + "/workspaces/ghost/state", "", http.StatusNotFound},
		{"empty intent id", http.MethodPost, ws + "/intent", `{}`, http.StatusConflict},
		{"malformed json", http.MethodPost, ws + "/intent", `{`, http.StatusUnprocessableEntity},
		{"winner missing", http.MethodPost, ws + "/auction", `{"bids":[]}`, http.StatusUnprocessableEntity},
		{"winner not in bids", http.MethodPost, ws + "/auction", `{"bids":[],"winner_id":"x"}`, http.StatusConflict},
		{"bad step number", http.MethodPatch, ws + "/execution/steps/one", `{"status":"completed"}`, http.StatusUnprocessableEntity},
		{"unknown patch field", http.MethodPatch, ws + "/execution/steps/1", `{"status":"completed","colour":"red"}`, http.StatusUnprocessableEntity},
		{"bad proof status", http.MethodPost, ws + "/proofs", `{"type":"x","status":"maybe"}`, http.StatusConflict},
		{"malformed replay", http.MethodPost, ws + "/replay", `not json`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := do(t, tt.method, tt.url, tt.body)
			assert.Equal(t, tt.want, code, string(body))
			var e map[string]string
			require.NoError(t, json.Unmarshal(body, &e))
			assert.NotEmpty(t, e["error"])
		})
	}

	t.Run("execution started twice", func(t *testing.T) {
		code, _ := do(t, http.MethodPost, ws+"/execution", "")
		require.Equal(t, http.StatusOK, code)
		code, _ = do(t, http.MethodPost, ws+"/execution", "")
		assert.Equal(t, http.StatusConflict, code)
	})

	t.Run("unknown step is ignored", func(t *testing.T) {
		code, body := do(t, http.MethodPatch, ws+"/execution/steps/99", `{"status":"completed"}`)
		assert.Equal(t, http.StatusOK, code, string(body))
	})
}

func TestReplayEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	other := lifecycle.New("carol", lifecycle.WithOrigin("other-replica"))
	require.NoError(t, other.SetIntent(ctx, domain.Intent{IntentID: "0xremote"}))
	payload, err := json.Marshal(other.Snapshot())
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/workspaces/carol/replay", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Applied bool   `json:"applied"`
		Seq     uint64 `json:"seq"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.Applied)
	assert.Equal(t, uint64(1), out.Seq)

	code, body := do(t, http.MethodGet, srv.URL+"/workspaces/carol/state", "")
	require.Equal(t, http.StatusOK, code)
	snap := decodeSnapshot(t, body)
	require.NotNil(t, snap.State.IntentID)
	assert.Equal(t, "0xremote", *snap.State.IntentID)

	// Same snapshot again is stale.
	code, body = do(t, http.MethodPost, srv.URL+"/workspaces/carol/replay", string(payload))
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"applied":false,"seq":1}`, string(body))
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)
	code, _ := do(t, http.MethodOptions, srv.URL+"/workspaces/x/intent", "")
	assert.Equal(t, http.StatusOK, code)
}
