// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SessionsCreated counts created sessions by declared style.
	SessionsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mockinterview_sessions_created_total",
			Help: "Total number of interview sessions created",
		},
		[]string{"style"},
	)

	// AnswersSaved counts answer writes by question type.
	AnswersSaved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mockinterview_answers_saved_total",
			Help: "Total number of answers saved or replaced",
		},
		[]string{"type"},
	)

	// GradingCalls counts grading attempts. result: ok, error, unparseable.
	GradingCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mockinterview_grading_calls_total",
			Help: "Total number of free-text grading calls",
		},
		[]string{"result"},
	)

	// FinishDuration observes the whole finish workflow, grading included.
	FinishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mockinterview_finish_duration_seconds",
			Help:    "Time spent grading and aggregating a session",
			Buckets: prometheus.DefBuckets,
		},
	)

	// LLMDuration observes upstream model calls. operation: generate, grade.
	LLMDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mockinterview_llm_request_duration_seconds",
			Help:    "Latency of language model requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "status"},
	)

	// GenerationFallbacks counts generations served by the static question bank
	// after the model failed.
	GenerationFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mockinterview_generation_fallbacks_total",
			Help: "Times question generation fell back to the static generator",
		},
	)

	// DailyCapRejections counts session creations refused with 429.
	DailyCapRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mockinterview_daily_cap_rejections_total",
			Help: "Session creations rejected by the daily cap",
		},
	)

	// EventsPublished counts domain events by routing key and result.
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mockinterview_events_published_total",
			Help: "Domain events handed to the message broker",
		},
		[]string{"routing_key", "result"},
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
