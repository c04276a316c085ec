package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Dispatcher metrics
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "droprelay_events_total",
			Help: "Total number of events handled by the dispatcher",
		},
		[]string{"outcome"}, // duplicate, gated, evaluated
	)

	ForwardsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "droprelay_forwards_total",
			Help: "Total number of forwarding attempts",
		},
		[]string{"result"}, // success, not_found, error
	)

	WatermarkValue = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "droprelay_watermark",
			Help: "Highest event identifier fully evaluated",
		},
	)

	EvaluationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "droprelay_evaluation_duration_seconds",
			Help:    "Duration of signal extraction and rule matching in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Catch-up replay metrics
	ReplayedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "droprelay_replayed_events_total",
			Help: "Total number of historical events replayed at startup",
		},
	)

	// Fuzzy lookup metrics
	LookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "droprelay_lookups_total",
			Help: "Total number of fuzzy record lookups",
		},
		[]string{"result"}, // hit, no_match, fetch_error
	)

	LookupCacheRefreshes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "droprelay_lookup_cache_refreshes_total",
			Help: "Total number of record table snapshot fetches",
		},
	)
)
