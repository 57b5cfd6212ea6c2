package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aretw0/intentflow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHooks_CountActionsAndReplays(t *testing.T) {
	m := New(nil)
	hooks := m.Hooks()
	ctx := context.Background()

	hooks.OnAction(ctx, &domain.ActionEvent{Key: "k", Action: domain.ActionSetIntent, Seq: 1})
	hooks.OnAction(ctx, &domain.ActionEvent{Key: "k", Action: domain.ActionSetIntent, Err: errors.New("boom")})
	hooks.OnReplay(ctx, &domain.ReplayEvent{Key: "k", Applied: true})
	hooks.OnReplay(ctx, &domain.ReplayEvent{Key: "k", Applied: false, Reason: "stale"})
	hooks.OnReplay(ctx, &domain.ReplayEvent{Key: "k", Applied: false, Reason: "own origin"})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.actions.WithLabelValues("setIntent", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.actions.WithLabelValues("setIntent", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.replays.WithLabelValues("applied")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.replays.WithLabelValues("ignored")))
}

func TestTrackSubscriber(t *testing.T) {
	m := New(nil)
	release := m.TrackSubscriber("sse")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.subscribers.WithLabelValues("sse")))
	release()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.subscribers.WithLabelValues("sse")))
}

func TestHandler_Exposition(t *testing.T) {
	m := New(nil)
	m.Hooks().OnAction(context.Background(), &domain.ActionEvent{Action: domain.ActionReset})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `intentflow_actions_total{action="reset",result="ok"} 1`), body)
	assert.Contains(t, body, "go_goroutines")
}
