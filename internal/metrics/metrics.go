package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nao1215/byteforge/internal/model"
)

// Namespace prefixes every metric name.
const Namespace = "byteforge"

// Collector records job, adapter and finding metrics.
type Collector struct {
	registry *prometheus.Registry

	jobsTotal      *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	adapterResults *prometheus.CounterVec
	findingsTotal  *prometheus.CounterVec
	jobsInFlight   prometheus.Gauge
}

// New creates a Collector with its metrics registered on a fresh registry.
func New() (*Collector, error) {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		jobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "jobs_total",
				Help:      "Total number of jobs that reached a terminal status",
			},
			[]string{"kind", "status"},
		),
		jobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "job_duration_seconds",
				Help:      "Job execution time from claim to commit",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
			},
			[]string{"kind"},
		),
		adapterResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "adapter_results_total",
				Help:      "Total number of scan phase results by tool and status",
			},
			[]string{"tool", "status"},
		),
		findingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "findings_total",
				Help:      "Total number of persisted findings by severity",
			},
			[]string{"severity"},
		),
		jobsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "jobs_in_flight",
				Help:      "Number of jobs currently executing",
			},
		),
	}

	collectors := []prometheus.Collector{
		c.jobsTotal,
		c.jobDuration,
		c.adapterResults,
		c.findingsTotal,
		c.jobsInFlight,
	}
	for _, col := range collectors {
		if err := c.registry.Register(col); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return c, nil
}

// JobStarted marks a job as executing.
func (c *Collector) JobStarted() {
	c.jobsInFlight.Inc()
}

// JobFinished records a job's terminal status and duration.
func (c *Collector) JobFinished(kind model.JobKind, status model.JobStatus, elapsed time.Duration) {
	c.jobsInFlight.Dec()
	c.jobsTotal.WithLabelValues(string(kind), string(status)).Inc()
	c.jobDuration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}

// PhaseFinished records the outcome of one adapter run.
func (c *Collector) PhaseFinished(tool string, status model.ResultStatus) {
	c.adapterResults.WithLabelValues(tool, string(status)).Inc()
}

// FindingsPersisted counts committed findings by severity.
func (c *Collector) FindingsPersisted(findings []model.Finding) {
	for _, f := range findings {
		c.findingsTotal.WithLabelValues(f.Severity.String()).Inc()
	}
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler serving the collector's metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
