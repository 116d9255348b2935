// Package metrics registers the Prometheus instruments shared across the
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SourceResults counts adapter outcomes by domain and status.
	SourceResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "waterwatch",
		Name:      "source_results_total",
		Help:      "Source adapter outcomes by domain and status.",
	}, []string{"domain", "status"})

	// CacheUnitsLoaded counts units committed per cache domain.
	CacheUnitsLoaded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "waterwatch",
		Name:      "cache_units_loaded_total",
		Help:      "Cache units committed, by domain.",
	}, []string{"domain"})

	// CacheUnitFailures counts unit fetch failures per cache domain.
	CacheUnitFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "waterwatch",
		Name:      "cache_unit_failures_total",
		Help:      "Cache unit fetch failures, by domain.",
	}, []string{"domain"})

	// SignalsEmitted counts anomaly signals by type and severity.
	SignalsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "waterwatch",
		Name:      "signals_emitted_total",
		Help:      "Anomaly signals emitted, by type and severity.",
	}, []string{"type", "severity"})

	// ReportDuration observes end-to-end dossier assembly time.
	ReportDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "waterwatch",
		Name:      "report_duration_seconds",
		Help:      "End-to-end dossier assembly duration.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
	})
)
