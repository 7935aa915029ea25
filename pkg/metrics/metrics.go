// Package metrics exposes Prometheus instrumentation for the sync layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector bundles the collectors the poller and tracker feed.
type Collector struct {
	CyclesTotal   prometheus.Counter
	CycleErrors   prometheus.Counter
	CycleDuration prometheus.Histogram
	Connected     prometheus.Gauge
	NodesTotal    prometheus.Gauge
	QueueLength   prometheus.Gauge
	Transitions   *prometheus.CounterVec
}

// New registers the collectors with reg. Pass prometheus.DefaultRegisterer
// outside of tests.
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		CyclesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "slurmview_poll_cycles_total",
			Help: "Completed poll cycles, successful or not.",
		}),
		CycleErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "slurmview_poll_errors_total",
			Help: "Poll cycles that ended in an error event.",
		}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "slurmview_poll_cycle_duration_seconds",
			Help:    "Wall time of one fetch+parse+publish cycle.",
			Buckets: prometheus.DefBuckets,
		}),
		Connected: factory.NewGauge(prometheus.GaugeOpts{
			Name: "slurmview_connected",
			Help: "1 while the SSH session is connected.",
		}),
		NodesTotal: factory.NewGauge(prometheus.GaugeOpts{
			Name: "slurmview_nodes",
			Help: "Nodes seen in the latest snapshot.",
		}),
		QueueLength: factory.NewGauge(prometheus.GaugeOpts{
			Name: "slurmview_queue_jobs",
			Help: "Jobs seen in the latest queue snapshot.",
		}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "slurmview_job_transitions_total",
			Help: "Observed job status transitions.",
		}, []string{"from", "to"}),
	}
}
