package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// daemonMetrics holds the judged-wide collectors that don't belong to any
// single subsystem (job_service has its own, see internal/jobservice/metrics.go).
type daemonMetrics struct {
	uptime         prometheus.GaugeFunc
	activeRequests prometheus.Gauge
}

var (
	startTime    time.Time
	promInitOnce bool
	daemon       *daemonMetrics
)

// InitPrometheus registers the Go/process collectors and judged's own
// daemon-level gauges against the default registerer, the same registerer
// internal/jobservice's collectors use, so a single /metrics scrape sees
// everything.
func InitPrometheus(namespace string, buckets []float64) {
	if promInitOnce {
		return
	}
	promInitOnce = true
	startTime = time.Now()

	prometheus.MustRegister(prometheus.NewGoCollector())
	prometheus.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	d := &daemonMetrics{
		activeRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_requests",
			Help:      "Number of currently in-flight submission judgements.",
		}),
	}
	d.uptime = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "uptime_seconds",
		Help:      "Time since judged started.",
	}, func() float64 {
		return time.Since(startTime).Seconds()
	})

	prometheus.MustRegister(d.uptime, d.activeRequests)
	daemon = d
}

// IncActiveRequests increments the in-flight submission-judgement gauge.
func IncActiveRequests() {
	if daemon == nil {
		return
	}
	daemon.activeRequests.Inc()
}

// DecActiveRequests decrements the in-flight submission-judgement gauge.
func DecActiveRequests() {
	if daemon == nil {
		return
	}
	daemon.activeRequests.Dec()
}

// PrometheusHandler returns an HTTP handler for Prometheus metrics scraping
// against the default registerer.
func PrometheusHandler() http.Handler {
	return promhttp.Handler()
}
