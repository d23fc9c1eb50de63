// Package metrics exposes workflow outcome counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/venus-kyc/caseflow/internal/workflow"
)

// Recorder counts workflow outcomes. It implements workflow.Observer.
type Recorder struct {
	registry    *prometheus.Registry
	transitions *prometheus.CounterVec
	assignments *prometheus.CounterVec
	adhoc       *prometheus.CounterVec
}

// NewRecorder creates a recorder with its own registry, which also carries
// the Go runtime and process collectors.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "caseflow",
			Name:      "transitions_total",
			Help:      "Stage transition attempts by action and outcome.",
		}, []string{"action", "outcome"}),
		assignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "caseflow",
			Name:      "assignments_total",
			Help:      "Case assignment attempts by outcome.",
		}, []string{"outcome"}),
		adhoc: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "caseflow",
			Name:      "adhoc_total",
			Help:      "Ad-hoc task operations by operation and outcome.",
		}, []string{"op", "outcome"}),
	}
	r.registry.MustRegister(
		r.transitions,
		r.assignments,
		r.adhoc,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) ObserveTransition(action workflow.Action, outcome string) {
	r.transitions.WithLabelValues(string(action), outcome).Inc()
}

func (r *Recorder) ObserveAssignment(outcome string) {
	r.assignments.WithLabelValues(outcome).Inc()
}

func (r *Recorder) ObserveAdHoc(op, outcome string) {
	r.adhoc.WithLabelValues(op, outcome).Inc()
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the metrics in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
