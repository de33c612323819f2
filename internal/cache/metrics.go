package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	hits     prometheus.Counter
	misses   prometheus.Counter
	fetches  prometheus.Counter
	errors   prometheus.Counter
	rejected prometheus.Counter
	entries  prometheus.Gauge
}

// newMetrics registers with reg when it is non-nil.
func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		hits: f.NewCounter(prometheus.CounterOpts{
			Name: "holocron_cache_hits_total",
			Help: "GetOrFetch calls served from a fresh entry.",
		}),
		misses: f.NewCounter(prometheus.CounterOpts{
			Name: "holocron_cache_misses_total",
			Help: "GetOrFetch calls that found no fresh entry.",
		}),
		fetches: f.NewCounter(prometheus.CounterOpts{
			Name: "holocron_cache_fetches_total",
			Help: "Fetcher invocations after de-duplication.",
		}),
		errors: f.NewCounter(prometheus.CounterOpts{
			Name: "holocron_cache_fetch_errors_total",
			Help: "Fetcher invocations that failed.",
		}),
		rejected: f.NewCounter(prometheus.CounterOpts{
			Name: "holocron_cache_rejected_writes_total",
			Help: "Fetched pages dropped because a local write superseded them.",
		}),
		entries: f.NewGauge(prometheus.GaugeOpts{
			Name: "holocron_cache_entries",
			Help: "Fingerprints currently held.",
		}),
	}
}
