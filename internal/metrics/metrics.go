// Package metrics exposes dealiasing outcomes as Prometheus collectors and
// pushes them to a Pushgateway at the end of a batch run.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/banshee-data/cloudradar/internal/dealias"
)

const namespace = "cloudradar_dealias"

// Metrics holds the collectors of one registry. A nil *Metrics ignores
// every observation.
type Metrics struct {
	profiles    *prometheus.CounterVec // by processing path
	gates       *prometheus.CounterVec // by outcome: folded, unfolded
	statusFlags *prometheus.CounterVec // by status flag name
	candidates  prometheus.Counter
	invalidated prometheus.Counter
	layers      prometheus.Histogram // layers per profile
	runDuration prometheus.Histogram
	lastRun     prometheus.Gauge
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		profiles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profiles_total",
			Help:      "Processed profiles by processing path",
		}, []string{"path"}),
		gates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gates_total",
			Help:      "Processed range gates by fold outcome",
		}, []string{"outcome"}),
		statusFlags: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_status_total",
			Help:      "Range gates carrying each diagnostic status flag",
		}, []string{"flag"}),
		candidates: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alias_candidate_gates_total",
			Help:      "Range gates reported as alias candidates",
		}),
		invalidated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalidated_gates_total",
			Help:      "Range gates dropped as fully contaminated by artifacts",
		}),
		layers: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "layers_per_profile",
			Help:      "Cloud layers found per processed profile",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		}),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a batch run",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900}, // 100ms to 15m
		}),
		lastRun: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last batch run finished",
		}),
	}
}

// ObserveResult records one processed profile.
func (m *Metrics) ObserveResult(res *dealias.Result) {
	if m == nil || res == nil {
		return
	}
	m.profiles.WithLabelValues(string(res.Path)).Inc()
	if res.NoData {
		return
	}
	m.layers.Observe(float64(len(res.Layers)))
	m.invalidated.Add(float64(len(res.Invalidated)))

	var folded, unfolded, candidates int
	for g, st := range res.Status {
		if res.Folded[g] {
			folded++
		} else {
			unfolded++
		}
		if res.AliasCandidate[g] {
			candidates++
		}
		for _, flag := range dealias.AllStatusFlags() {
			if st.Has(flag) {
				m.statusFlags.WithLabelValues(flag.String()).Inc()
			}
		}
	}
	m.gates.WithLabelValues("folded").Add(float64(folded))
	m.gates.WithLabelValues("unfolded").Add(float64(unfolded))
	m.candidates.Add(float64(candidates))
}

// ObserveRun records the duration of a finished batch run.
func (m *Metrics) ObserveRun(d time.Duration, finished time.Time) {
	if m == nil {
		return
	}
	m.runDuration.Observe(d.Seconds())
	m.lastRun.Set(float64(finished.Unix()))
}

// Push sends everything gathered by g to the Pushgateway at url under job,
// with grouping as additional grouping labels.
func Push(url, job string, g prometheus.Gatherer, grouping map[string]string) error {
	pusher := push.New(url, job).Gatherer(g)
	for k, v := range grouping {
		pusher = pusher.Grouping(k, v)
	}
	if err := pusher.Push(); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}
