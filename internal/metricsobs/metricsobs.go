// Package metricsobs generalizes the teacher's atomic-counter Metrics type
// into real exported Prometheus metrics: counters for bytes moved and
// operations completed, a histogram for operation latency, and a gauge for
// observed queue depth. A run registers one Recorder per process,
// independent of whether --json reporting is also requested.
package metricsobs

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns the Prometheus collectors this module exposes. Call
// NewRecorder once per process; every engine phase observes through it.
type Recorder struct {
	opsTotal    *prometheus.CounterVec
	bytesTotal  *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	latencySecs *prometheus.HistogramVec
	queueDepth  prometheus.Gauge
}

// NewRecorder registers its collectors against reg and returns a Recorder
// ready to observe phase completions. Pass prometheus.NewRegistry() for an
// isolated registry in tests, or prometheus.DefaultRegisterer in a binary.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		opsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dfsbench",
			Name:      "ops_total",
			Help:      "Operations completed, by phase.",
		}, []string{"phase"}),
		bytesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dfsbench",
			Name:      "bytes_total",
			Help:      "Bytes transferred, by phase.",
		}, []string{"phase"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dfsbench",
			Name:      "errors_total",
			Help:      "Operations that returned an error, by phase.",
		}, []string{"phase"}),
		latencySecs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dfsbench",
			Name:      "op_latency_seconds",
			Help:      "Per-operation latency, by phase.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12), // 1us .. ~4s
		}, []string{"phase"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dfsbench",
			Name:      "queue_depth",
			Help:      "Most recently observed in-flight transfer queue depth.",
		}),
	}
	reg.MustRegister(r.opsTotal, r.bytesTotal, r.errorsTotal, r.latencySecs, r.queueDepth)
	return r
}

// Observe records one completed operation for phase (e.g. "write", "read",
// "create", "stat", "remove"), its byte count (0 for metadata-only ops),
// its latency, and whether it errored.
func (r *Recorder) Observe(phase string, bytes int64, latency time.Duration, err error) {
	r.opsTotal.WithLabelValues(phase).Inc()
	if bytes > 0 {
		r.bytesTotal.WithLabelValues(phase).Add(float64(bytes))
	}
	r.latencySecs.WithLabelValues(phase).Observe(latency.Seconds())
	if err != nil {
		r.errorsTotal.WithLabelValues(phase).Inc()
	}
}

// ObserveQueueDepth records the current number of in-flight async
// transfers.
func (r *Recorder) ObserveQueueDepth(depth int) {
	r.queueDepth.Set(float64(depth))
}

// Handler returns an http.Handler exposing the registry's metrics in the
// Prometheus exposition format, for a binary that wants to serve
// --metrics-addr.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
