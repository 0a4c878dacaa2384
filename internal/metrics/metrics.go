package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChatRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_requests_total",
			Help: "Total number of chat requests by response status code",
		},
		[]string{"status"},
	)

	IntentsClassified = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_intents_classified_total",
			Help: "Total number of messages classified per intent and chatbot mode",
		},
		[]string{"intent", "mode"},
	)

	GroundingLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_grounding_lookups_total",
			Help: "Total number of grounding lookups by intent and outcome",
		},
		[]string{"intent", "outcome"},
	)

	GenerationPaths = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_generation_path_total",
			Help: "Total number of replies produced per degradation ladder path",
		},
		[]string{"path"},
	)

	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_generation_duration_seconds",
			Help:    "Duration of generative backend calls in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30},
		},
		[]string{"outcome"},
	)

	PersistenceFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_persistence_failures_total",
			Help: "Total number of exchanges that failed to persist",
		},
	)
)

// Grounding lookup outcomes.
const (
	OutcomeCacheHit = "cache_hit"
	OutcomeQueried  = "queried"
	OutcomeSkipped  = "skipped"
	OutcomeError    = "error"
)
