// Package metrics holds the Prometheus collectors for the VisionLock server
// and the gin and gRPC hooks that feed the request collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "visionlock"

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of requests",
		},
		[]string{"transport", "method", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"transport", "method"},
	)

	ActiveStreams = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_streams",
			Help:      "Open streaming connections",
		},
		[]string{"endpoint"},
	)

	FramesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Frames received on streaming endpoints, by eye state",
		},
		[]string{"endpoint", "state"},
	)

	SymbolsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "morse_symbols_total",
			Help:      "Morse symbols decoded from blinks",
		},
		[]string{"symbol"},
	)

	DecodeErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Per-frame decode errors",
		},
		[]string{"kind"},
	)

	AuthOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_outcomes_total",
			Help:      "Completed PIN verifications by outcome",
		},
		[]string{"outcome"},
	)

	AlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Alert deliveries by sink and status",
		},
		[]string{"sink", "status"},
	)

	InferenceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inference_duration_seconds",
			Help:      "Latency of classifier and extractor calls",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"op", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		ActiveStreams,
		FramesTotal,
		SymbolsTotal,
		DecodeErrorsTotal,
		AuthOutcomesTotal,
		AlertsTotal,
		InferenceDuration,
	)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordRequest(transport, method, status string, duration time.Duration) {
	RequestsTotal.WithLabelValues(transport, method, status).Inc()
	RequestDuration.WithLabelValues(transport, method).Observe(duration.Seconds())
}

func RecordInference(op string, err error, duration time.Duration) {
	InferenceDuration.WithLabelValues(op, statusOf(err)).Observe(duration.Seconds())
}

func RecordAlert(sink string, err error) {
	AlertsTotal.WithLabelValues(sink, statusOf(err)).Inc()
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
