// Package metrics registers the process-wide Prometheus collectors shared
// by all services. Counters are labeled by stream or outcome and exposed on
// the health listener.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PublishedMessages counts successful stream appends per stream.
	PublishedMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "soulscout",
		Name:      "bus_published_total",
		Help:      "Messages published to the bus, by stream.",
	}, []string{"stream"})

	// ConsumedMessages counts acked deliveries per stream.
	ConsumedMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "soulscout",
		Name:      "bus_consumed_total",
		Help:      "Messages consumed and acked, by stream.",
	}, []string{"stream"})

	// AlertsEmitted counts analytics alerts that passed the throttle.
	AlertsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "soulscout",
		Name:      "alerts_emitted_total",
		Help:      "Alerts emitted by the analytics pipeline, by band.",
	}, []string{"band"})

	// PolicyOutcomes counts notifier policy decisions.
	PolicyOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "soulscout",
		Name:      "notifier_outcomes_total",
		Help:      "Notifier policy decisions, by outcome.",
	}, []string{"outcome"})

	// UpdatesProcessed counts market updates drained by the pipeline worker.
	UpdatesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "soulscout",
		Name:      "analytics_updates_processed_total",
		Help:      "Market updates processed by the analytics worker.",
	})

	// PoolsFetched counts pools returned by DEX endpoints per tick.
	PoolsFetched = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "soulscout",
		Name:      "ingestor_pools_fetched_total",
		Help:      "Pools fetched from DEX endpoints.",
	})

	// PoolCacheLookups counts pool cache hits and misses.
	PoolCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "soulscout",
		Name:      "ingestor_pool_cache_lookups_total",
		Help:      "Pool cache lookups, by result.",
	}, []string{"result"})

	// BarsCompleted counts OHLCV bars closed by the aggregator.
	BarsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "soulscout",
		Name:      "ingestor_bars_completed_total",
		Help:      "OHLCV bars completed, by interval.",
	}, []string{"interval"})
)
