package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SkillRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alexa_skill_requests_total",
		Help: "Skill invocations by handler and outcome",
	}, []string{"skill", "handler", "outcome"})

	SkillLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "alexa_skill_handler_latency_seconds",
		Help:    "Time spent producing a skill response",
		Buckets: prometheus.DefBuckets,
	}, []string{"skill"})

	GeneratorCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alexa_generator_calls_total",
		Help: "Calls to the text generation API",
	}, []string{"model", "status"})

	GeneratorLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "alexa_generator_latency_seconds",
		Help:    "Latency of the text generation API",
		Buckets: []float64{.25, .5, 1, 2, 3, 5, 7.5, 10},
	})

	AnswerCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alexa_answer_cache_total",
		Help: "Answer cache lookups",
	}, []string{"result"})

	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "alexa_circuit_breaker_state",
		Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
	}, []string{"name"})
)
