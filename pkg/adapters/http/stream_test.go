package http_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	api "github.com/aretw0/intentflow/pkg/adapters/http"
	"github.com/aretw0/intentflow/pkg/domain"
	"github.com/aretw0/intentflow/pkg/lifecycle"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readEvents collects SSE data lines until n frames have arrived.
func readEvents(t *testing.T, sc *bufio.Scanner, n int) []lifecycle.Change {
	t.Helper()
	var out []lifecycle.Change
	for len(out) < n && sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: {") {
			continue
		}
		var c lifecycle.Change
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &c))
		out = append(out, c)
	}
	require.Len(t, out, n, "stream ended early: %v", sc.Err())
	return out
}

func TestSubscribeEvents_SnapshotThenChanges(t *testing.T) {
	srv, _ := newTestServer(t)
	ws := srv.URL + "/workspaces/dave"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ws+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	sc := bufio.NewScanner(resp.Body)
	first := readEvents(t, sc, 1)[0]
	assert.Equal(t, api.ActionSnapshot, first.Action)
	assert.Equal(t, uint64(0), first.Snapshot.Seq)

	code, _ := do(t, http.MethodPost, ws+"/intent", intentBody)
	require.Equal(t, http.StatusOK, code)

	next := readEvents(t, sc, 1)[0]
	assert.Equal(t, domain.ActionSetIntent, next.Action)
	assert.False(t, next.Remote)
	require.NotNil(t, next.Diff)
	assert.True(t, next.Diff.Touches("intent"))
	assert.Equal(t, uint64(1), next.Snapshot.Seq)
}

func TestSubscribeEvents_WatchFilter(t *testing.T) {
	srv, _ := newTestServer(t)
	ws := srv.URL + "/workspaces/erin"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ws+"/events?watch=proofs", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	sc := bufio.NewScanner(resp.Body)
	readEvents(t, sc, 1)

	code, _ := do(t, http.MethodPost, ws+"/intent", intentBody)
	require.Equal(t, http.StatusOK, code)
	code, _ = do(t, http.MethodPost, ws+"/proofs", `{"type":"zkTLS Proof","status":"verified"}`)
	require.Equal(t, http.StatusOK, code)

	got := readEvents(t, sc, 1)[0]
	assert.Equal(t, domain.ActionAddZkProof, got.Action, "intent change must be filtered out")
}

func TestStreamSocket(t *testing.T) {
	srv, _ := newTestServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/workspaces/frank/ws"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var first lifecycle.Change
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, api.ActionSnapshot, first.Action)

	code, _ := do(t, http.MethodPost, srv.URL+"/workspaces/frank/reset", "")
	require.Equal(t, http.StatusOK, code)

	var next lifecycle.Change
	require.NoError(t, conn.ReadJSON(&next))
	assert.Equal(t, domain.ActionReset, next.Action)
	assert.Equal(t, uint64(1), next.Snapshot.Epoch)

	// Deleting the workspace closes the stream.
	code, _ = do(t, http.MethodDelete, srv.URL+"/workspaces/frank/", "")
	require.Equal(t, http.StatusNoContent, code)
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}
