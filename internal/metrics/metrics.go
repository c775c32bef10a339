// Package metrics exposes the service's Prometheus instrumentation:
// request counts and latencies by provider, opcode and status.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/systmms/keyops/pkg/requests"
)

var (
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	connectionsOpen prometheus.Gauge

	registerOnce sync.Once
	registered   bool
)

// Init registers all collectors. Call once at startup when metrics are
// enabled; recording is a no-op otherwise.
func Init() {
	registerOnce.Do(func() {
		requestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keyops_requests_total",
				Help: "Total number of requests dispatched",
			},
			[]string{"provider", "opcode", "status"},
		)

		requestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "keyops_request_duration_seconds",
				Help:    "Duration of request dispatch in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"provider", "opcode"},
		)

		connectionsOpen = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "keyops_connections_open",
				Help: "Number of client connections currently open",
			},
		)

		registered = true
	})
}

// RecordRequest records one dispatched request.
func RecordRequest(provider requests.ProviderID, opcode requests.Opcode, status requests.ResponseStatus, elapsed time.Duration) {
	if !registered {
		return
	}
	requestsTotal.WithLabelValues(provider.String(), opcode.String(), status.String()).Inc()
	requestDuration.WithLabelValues(provider.String(), opcode.String()).Observe(elapsed.Seconds())
}

// ConnectionOpened increments the open-connection gauge.
func ConnectionOpened() {
	if !registered {
		return
	}
	connectionsOpen.Inc()
}

// ConnectionClosed decrements the open-connection gauge.
func ConnectionClosed() {
	if !registered {
		return
	}
	connectionsOpen.Dec()
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
