package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for
// the scoring and routing engine.
type Metrics struct {
	ObservationsConsumed prometheus.Counter
	ObservationsRejected prometheus.Counter
	WeatherDegraded      prometheus.Counter
	ZonesPublished       prometheus.Counter
	SnapshotAge          prometheus.Gauge

	RoutesComputed *prometheus.CounterVec // labels: outcome={found,disconnected,hazard_excluded,error}
	RouteDuration  prometheus.Histogram
	GraphReloads   prometheus.Counter
}

// NewMetrics creates all engine metrics and registers them with reg.
// Tests pass a fresh registry to avoid "already registered" panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ObservationsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "embernav",
			Name:      "observations_consumed_total",
			Help:      "Total observations read from the feed.",
		}),
		ObservationsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "embernav",
			Name:      "observations_rejected_total",
			Help:      "Total observations rejected by per-record validation.",
		}),
		WeatherDegraded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "embernav",
			Name:      "weather_degraded_total",
			Help:      "Cells scored with the neutral weather factor for lack of context.",
		}),
		ZonesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "embernav",
			Name:      "zones_published_total",
			Help:      "Hazard zones published across all snapshots.",
		}),
		SnapshotAge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "embernav",
			Name:      "snapshot_age_seconds",
			Help:      "Age of the current hazard snapshot.",
		}),
		RoutesComputed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "embernav",
			Name:      "routes_computed_total",
			Help:      "Route requests by outcome.",
		}, []string{"outcome"}),
		RouteDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "embernav",
			Name:      "route_duration_seconds",
			Help:      "Duration of a complete route computation.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
		}),
		GraphReloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "embernav",
			Name:      "graph_reloads_total",
			Help:      "Road graph reloads since start.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.ObservationsConsumed,
			m.ObservationsRejected,
			m.WeatherDegraded,
			m.ZonesPublished,
			m.SnapshotAge,
			m.RoutesComputed,
			m.RouteDuration,
			m.GraphReloads,
		)
	}
	return m
}
