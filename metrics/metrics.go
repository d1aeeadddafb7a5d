// Package metrics exposes Prometheus collectors for refresh cycles and their sources.
package metrics

import (
	"sync"
	"time"

	"github.com/polyrabbit/cross-ticker/exchange/model"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cross_ticker"

const (
	OutcomeOK      = "ok"
	OutcomePartial = "partial"
	OutcomeFailed  = "failed"
)

var (
	// CycleDuration is a histogram of how long a refresh cycle takes to settle.
	CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of aggregation cycles",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 30, 60},
		},
	)

	// SourceResultsTotal counts source results by outcome.
	SourceResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_results_total",
			Help:      "Total number of source results per outcome",
		},
		[]string{"source", "outcome"},
	)

	// QuotesTotal counts normalized quotes.
	QuotesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_total",
			Help:      "Total number of quotes collected",
		},
		[]string{"source", "asset"},
	)

	// SourceFailuresTotal counts failures by kind, one per failed asset or per failed source.
	SourceFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_failures_total",
			Help:      "Total number of source failures per error kind",
		},
		[]string{"source", "kind"},
	)

	// SourceHealth is 1 when the last cycle got at least one quote from the source.
	SourceHealth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "source_health",
			Help:      "Health status of price sources (1=healthy, 0=unhealthy)",
		},
		[]string{"source"},
	)

	// SnapshotsPublishedTotal counts published snapshots.
	SnapshotsPublishedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_published_total",
			Help:      "Total number of snapshots handed to publishers",
		},
	)
)

var initOnce sync.Once

// Init registers all collectors with the default registry, calling it twice is a no-op.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			CycleDuration,
			SourceResultsTotal,
			QuotesTotal,
			SourceFailuresTotal,
			SourceHealth,
			SnapshotsPublishedTotal,
		)
	})
}

// RecordCycle records the duration of one cycle.
func RecordCycle(duration time.Duration) {
	CycleDuration.Observe(duration.Seconds())
}

// Outcome classifies a source result as ok, partial or failed.
func Outcome(result model.SourceResult) string {
	switch {
	case !result.OK():
		return OutcomeFailed
	case len(result.Failures) != 0:
		return OutcomePartial
	}
	return OutcomeOK
}

// RecordSourceResult records the outcome, quotes and failures of one source.
func RecordSourceResult(result model.SourceResult) {
	source := string(result.Source)
	SourceResultsTotal.WithLabelValues(source, Outcome(result)).Inc()
	for asset := range result.Quotes {
		QuotesTotal.WithLabelValues(source, string(asset)).Inc()
	}
	if result.Failure != nil && len(result.Failures) == 0 {
		SourceFailuresTotal.WithLabelValues(source, result.Failure.Kind.String()).Inc()
	}
	for _, failure := range result.Failures {
		SourceFailuresTotal.WithLabelValues(source, failure.Kind.String()).Inc()
	}
	healthy := 0.0
	if len(result.Quotes) != 0 {
		healthy = 1.0
	}
	SourceHealth.WithLabelValues(source).Set(healthy)
}

// RecordSnapshotPublished records a snapshot handed to publishers.
func RecordSnapshotPublished() {
	SnapshotsPublishedTotal.Inc()
}
