package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics records dispatch outcomes as prometheus series.
type PrometheusMetrics struct {
	actions   *prometheus.CounterVec
	rollbacks *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// Compile-time contract assertion.
var _ MetricsRecorder = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics builds and registers the dispatch metric set.
func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	m := &PrometheusMetrics{
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalsai_actions_total",
			Help: "Dispatched store actions by type and outcome.",
		}, []string{"action", "outcome"}),
		rollbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalsai_rollbacks_total",
			Help: "Optimistic operations rolled back after persistence failure.",
		}, []string{"action"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "signalsai_action_duration_seconds",
			Help:    "Dispatch latency by action type.",
			Buckets: prometheus.DefBuckets,
		}, []string{"action"}),
	}
	for _, c := range []prometheus.Collector{m.actions, m.rollbacks, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Observe implements MetricsRecorder.
func (m *PrometheusMetrics) Observe(_ context.Context, action string, success bool, duration time.Duration) {
	outcome := "ok"
	if !success {
		outcome = "error"
	}
	m.actions.WithLabelValues(action, outcome).Inc()
	m.duration.WithLabelValues(action).Observe(duration.Seconds())
}

// ObserveRollback implements MetricsRecorder.
func (m *PrometheusMetrics) ObserveRollback(action string) {
	m.rollbacks.WithLabelValues(action).Inc()
}

// RegisterStoreGauges exposes live entity counts from the store.
func RegisterStoreGauges(reg prometheus.Registerer, store PersistentStore) error {
	gauges := map[string]func() int{
		"account":            func() int { return len(store.ListAccounts()) },
		"signal":             func() int { return len(store.ListSignals()) },
		"recommended_action": func() int { return len(store.ListRecommendedActions()) },
		"interaction":        func() int { return len(store.ListInteractions()) },
		"comment":            func() int { return len(store.ListComments()) },
		"action_plan":        func() int { return len(store.ListActionPlans()) },
		"note":               func() int { return len(store.ListNotes()) },
	}
	for entity, count := range gauges {
		count := count
		g := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "signalsai_entities",
			Help:        "Live entity counts by type.",
			ConstLabels: prometheus.Labels{"entity": entity},
		}, func() float64 { return float64(count()) })
		if err := reg.Register(g); err != nil {
			return err
		}
	}
	return nil
}
