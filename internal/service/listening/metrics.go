package listening

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the discovery pipeline collectors
type Metrics struct {
	Runs             *prometheus.CounterVec
	TrendsDiscovered *prometheus.CounterVec
	SynthesisPaths   *prometheus.CounterVec
	RunDuration      *prometheus.HistogramVec
	ProviderAttempts *prometheus.CounterVec
}

// NewMetrics registers the discovery collectors with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trendcraft",
			Name:      "discovery_runs_total",
			Help:      "Discovery runs by source, category and outcome.",
		}, []string{"source", "category", "outcome"}),
		TrendsDiscovered: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trendcraft",
			Name:      "trends_discovered_total",
			Help:      "Trends stored by discovery runs.",
		}, []string{"source"}),
		SynthesisPaths: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trendcraft",
			Name:      "synthesis_path_total",
			Help:      "Successful syntheses by path (model or fallback).",
		}, []string{"path"}),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "trendcraft",
			Name:      "discovery_duration_seconds",
			Help:      "Wall time of discovery runs.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"source"}),
		ProviderAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trendcraft",
			Name:      "synthesis_provider_attempts_total",
			Help:      "Text generation provider calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
	}
}
