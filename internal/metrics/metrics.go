package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/pipewright/fdkit/internal/fd"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Descriptor and capture metrics
	closeFailures    prometheus.Counter
	sessionsTotal    *prometheus.CounterVec
	captureBytes     *prometheus.CounterVec
	watchdogWarnings prometheus.Counter
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)

	// The open-descriptor gauge reads the kernel's live count on scrape.
	reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "fdkit_descriptors_open",
			Help: "Number of descriptors currently owned by kernel handles",
		},
		func() float64 { return float64(fd.LiveCount()) },
	))

	r.closeFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fdkit_descriptor_close_failures_total",
			Help: "Total number of descriptor closes that failed",
		},
	)
	r.sessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fdkit_sessions_total",
			Help: "Total number of capture sessions by final status",
		},
		[]string{"status"},
	)
	r.captureBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fdkit_capture_bytes_total",
			Help: "Total bytes captured per stream",
		},
		[]string{"stream"},
	)
	r.watchdogWarnings = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fdkit_watchdog_warnings_total",
			Help: "Total number of descriptor-budget warnings fired",
		},
	)

	reg.MustRegister(r.closeFailures)
	reg.MustRegister(r.sessionsTotal)
	reg.MustRegister(r.captureBytes)
	reg.MustRegister(r.watchdogWarnings)

	return r
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	statusStr := statusToString(status)
	r.httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// RecordCloseFailure records a descriptor close that failed.
func (r *Registry) RecordCloseFailure() {
	r.closeFailures.Inc()
}

// RecordSession records a finished capture session and its stream sizes.
func (r *Registry) RecordSession(status string, stdoutBytes, stderrBytes int) {
	r.sessionsTotal.WithLabelValues(status).Inc()
	r.captureBytes.WithLabelValues("stdout").Add(float64(stdoutBytes))
	r.captureBytes.WithLabelValues("stderr").Add(float64(stderrBytes))
}

// RecordWatchdogWarning records a fired descriptor-budget warning.
func (r *Registry) RecordWatchdogWarning() {
	r.watchdogWarnings.Inc()
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
