package resilience

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderflow_resilience_calls_total",
		Help: "Decorated calls by final outcome (success, failure, rejected, fallback).",
	}, []string{"policy", "outcome"})

	metricAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderflow_resilience_attempts_total",
		Help: "Individual attempts inside the retry loop.",
	}, []string{"policy", "result"})

	metricBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "orderflow_resilience_breaker_state",
		Help: "Circuit breaker state per policy (0 closed, 1 open, 2 half-open).",
	}, []string{"policy"})

	metricBreakerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderflow_resilience_breaker_transitions_total",
		Help: "Circuit breaker state transitions by target state.",
	}, []string{"policy", "state"})
)
