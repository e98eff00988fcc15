package jobservice

import "github.com/prometheus/client_golang/prometheus"

var (
	reservationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "judge",
		Subsystem: "job_service",
		Name:      "reservations_total",
		Help:      "Total number of reservation tokens granted.",
	})

	executionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "judge",
		Subsystem: "job_service",
		Name:      "executions_total",
		Help:      "Total number of executions, labeled by outcome.",
	}, []string{"outcome"})

	executionDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "judge",
		Subsystem: "job_service",
		Name:      "execution_duration_ms",
		Help:      "Wall-clock time spent inside Worker.Execute.",
		Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
	})

	workersDesired = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "judge",
		Subsystem: "job_service",
		Name:      "workers_desired",
		Help:      "Current desired worker count (outstanding reservations).",
	})

	workersActual = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "judge",
		Subsystem: "job_service",
		Name:      "workers_actual",
		Help:      "Current provisioned worker count, warm and busy.",
	})
)

func init() {
	prometheus.MustRegister(reservationsTotal, executionsTotal, executionDurationMs, workersDesired, workersActual)
}
