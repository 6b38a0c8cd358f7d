package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	EvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newswatch_signal_evaluations_total",
			Help: "Signal evaluations by result",
		},
		[]string{"result"},
	)

	TriggersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newswatch_signal_triggers_total",
			Help: "Signal triggers by notification policy",
		},
		[]string{"policy"},
	)

	DispatchAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newswatch_dispatch_attempts_total",
			Help: "Delivery attempts by outcome",
		},
		[]string{"status"},
	)

	FilterWarnings = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "newswatch_filter_warnings_total",
			Help: "Filter evaluations that referenced unknown fields or operators",
		},
	)

	TickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "newswatch_engine_tick_duration_seconds",
			Help:    "Engine tick duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	ArticlesIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "newswatch_articles_ingested_total",
			Help: "Articles accepted at the ingest boundary",
		},
	)

	StreamDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "newswatch_hub_dropped_events_total",
			Help: "Hub events dropped because a subscriber was slow",
		},
	)
)

func Init() {
	prometheus.MustRegister(EvaluationsTotal)
	prometheus.MustRegister(TriggersTotal)
	prometheus.MustRegister(DispatchAttempts)
	prometheus.MustRegister(FilterWarnings)
	prometheus.MustRegister(TickDuration)
	prometheus.MustRegister(ArticlesIngested)
	prometheus.MustRegister(StreamDropped)
}

func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
