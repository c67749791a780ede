// Package obs holds the module's Prometheus collectors, grounded on
// dantte-lp-gobfd's internal/metrics/collector.go: metric vectors grouped
// into one struct, registered against an injectable prometheus.Registerer
// rather than the package-global default.
package obs

import "github.com/prometheus/client_golang/prometheus"

const namespace = "ifit"

// Metrics holds every collector the session layer updates.
type Metrics struct {
	// RequestsTotal counts completed write_and_read/metadata requests,
	// labeled by command.
	RequestsTotal *prometheus.CounterVec

	// RequestDuration observes wall-clock time from handing a request to the
	// session's owner goroutine (before its first chunk write) to its
	// reassembled response. Failed requests are not observed.
	RequestDuration *prometheus.HistogramVec

	// ChecksumFailures counts BadChecksum decode rejections.
	ChecksumFailures prometheus.Counter

	// ChunkResets counts reassembly buffers discarded by a mid-stream header.
	ChunkResets prometheus.Counter
}

// NewMetrics builds a Metrics and registers it against reg. If reg is nil,
// a fresh private registry is used, so the global default is never touched.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total session requests completed, labeled by command.",
		}, []string{"command"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Time from dispatching a request to its reassembled response, for successful requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"command"}),

		ChecksumFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checksum_failures_total",
			Help:      "Total envelope decodes rejected by a bad checksum.",
		}),

		ChunkResets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunk_resets_total",
			Help:      "Total reassembly buffers discarded by a header arriving mid-stream.",
		}),
	}

	reg.MustRegister(m.RequestsTotal, m.RequestDuration, m.ChecksumFailures, m.ChunkResets)
	return m
}

// NewUnregisteredMetrics builds a Metrics backed by its own private registry,
// for callers (mainly tests) that want collectors without touching any
// shared Registerer.
func NewUnregisteredMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
