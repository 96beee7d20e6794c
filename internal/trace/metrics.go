package trace

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("stepviz.trace")

var (
	// analysesTotal counts analyses by language and outcome
	analysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stepviz_analyses_total",
		Help: "Total analyses by language and outcome",
	}, []string{"language", "outcome"})

	// analysisDuration tracks end-to-end analysis latency
	analysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stepviz_analysis_duration_seconds",
		Help:    "Analysis duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
	}, []string{"language"})

	// stepsPerTrace tracks how many steps a successful trace produced
	stepsPerTrace = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stepviz_trace_steps",
		Help:    "Number of steps per trace",
		Buckets: []float64{1, 10, 50, 100, 250, 500, 1000, 5000},
	}, []string{"language"})

	// analysisErrors counts failed analyses by error kind
	analysisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stepviz_analysis_errors_total",
		Help: "Failed analyses by error kind",
	}, []string{"kind"})
)
