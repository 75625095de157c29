// Package telemetry provides run metrics and tracing for the tracker.
package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cvetracker"

// Fetch attempt outcomes.
const (
	OutcomeSuccess     = "success"
	OutcomeRetryable   = "retryable_status"
	OutcomeTransport   = "transport_error"
	OutcomePermanent   = "permanent_status"
	OutcomeInvalidJSON = "invalid_json"
)

// Metrics holds the counters and gauges collected during a run. Each
// instance owns its registry so tests and repeated runs never collide.
type Metrics struct {
	registry *prometheus.Registry

	FetchAttempts     *prometheus.CounterVec
	QueriesFailed     prometheus.Counter
	ArticlesHarvested prometheus.Counter
	CVEsTracked       prometheus.Gauge
	WriteFailures     *prometheus.CounterVec
	LastRunTimestamp  prometheus.Gauge
}

// NewMetrics creates and registers the tracker metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		FetchAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_attempts_total",
				Help:      "HTTP attempts against the search API by outcome",
			},
			[]string{"outcome"},
		),
		QueriesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_failed_total",
			Help:      "Keyword queries that produced no results because of an error",
		}),
		ArticlesHarvested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_harvested_total",
			Help:      "Articles collected from the search API",
		}),
		CVEsTracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cves_tracked",
			Help:      "Distinct CVE identifiers in the latest summary",
		}),
		WriteFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "write_failures_total",
				Help:      "Failed output writes by target",
			},
			[]string{"target"},
		),
		LastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the latest run finished",
		}),
	}

	m.registry.MustRegister(
		m.FetchAttempts,
		m.QueriesFailed,
		m.ArticlesHarvested,
		m.CVEsTracked,
		m.WriteFailures,
		m.LastRunTimestamp,
	)

	return m
}

// WriteTextfile writes all metrics in the text exposition format, suitable
// for the node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}

	return nil
}
