// Package metrics exposes lifecycle activity as Prometheus collectors.
package metrics

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/aretw0/intentflow/internal/logging"
	"github.com/aretw0/intentflow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so several servers can coexist in one process.
type Metrics struct {
	registry    *prometheus.Registry
	actions     *prometheus.CounterVec
	replays     *prometheus.CounterVec
	subscribers *prometheus.GaugeVec
	logger      *slog.Logger
}

// New registers the lifecycle collectors plus the Go runtime collectors.
func New(logger *slog.Logger) *Metrics {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "intentflow_actions_total",
				Help: "Lifecycle actions by name and outcome",
			},
			[]string{"action", "result"},
		),
		replays: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "intentflow_replays_total",
				Help: "Snapshots received from other replicas",
			},
			[]string{"outcome"},
		),
		subscribers: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "intentflow_stream_subscribers",
				Help: "Open event stream subscribers by transport",
			},
			[]string{"transport"},
		),
		logger: logger,
	}
	m.registry.MustRegister(
		m.actions,
		m.replays,
		m.subscribers,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Hooks returns lifecycle hooks that log every event and record it.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnAction: func(ctx context.Context, e *domain.ActionEvent) {
			result := "ok"
			if e.Err != nil {
				result = "error"
				m.logger.Warn("action_failed", "key", e.Key, "action", e.Action, "err", e.Err)
			} else {
				m.logger.Debug("action", "key", e.Key, "action", e.Action, "seq", e.Seq, "epoch", e.Epoch)
			}
			m.actions.WithLabelValues(string(e.Action), result).Inc()
		},
		OnReplay: func(ctx context.Context, e *domain.ReplayEvent) {
			outcome := "applied"
			if !e.Applied {
				outcome = "ignored"
			}
			m.logger.Debug("replay", "key", e.Key, "origin", e.Origin, "seq", e.Seq, "outcome", outcome, "reason", e.Reason)
			m.replays.WithLabelValues(outcome).Inc()
		},
	}
}

// TrackSubscriber bumps the subscriber gauge and returns the matching release.
func (m *Metrics) TrackSubscriber(transport string) func() {
	g := m.subscribers.WithLabelValues(transport)
	g.Inc()
	return g.Dec
}
