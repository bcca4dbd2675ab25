// Package metrics instruments persistence operations with Prometheus
// counters and histograms. A nil *Recorder is valid and records nothing,
// so callers never have to branch on whether metrics are wired.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder counts queries and observes their latency, labelled by table
// and operation.
type Recorder struct {
	queries  *prometheus.CounterVec
	errors   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewRecorder creates a Recorder and registers its collectors. Passing
// prometheus.DefaultRegisterer wires into the default registry.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stratum_queries_total",
			Help: "Number of persistence operations executed.",
		}, []string{"table", "op"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stratum_query_errors_total",
			Help: "Number of persistence operations that returned an error.",
		}, []string{"table", "op"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stratum_query_duration_seconds",
			Help:    "Latency of persistence operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"table", "op"}),
	}

	for _, c := range []prometheus.Collector{r.queries, r.errors, r.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Observe records one completed operation. Safe on a nil Recorder.
func (r *Recorder) Observe(table, op string, start time.Time, err error) {
	if r == nil {
		return
	}
	r.queries.WithLabelValues(table, op).Inc()
	if err != nil {
		r.errors.WithLabelValues(table, op).Inc()
	}
	r.duration.WithLabelValues(table, op).Observe(time.Since(start).Seconds())
}
