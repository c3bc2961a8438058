// Package telemetry exposes the service's prometheus metrics and the shared
// prefixed-logger convention.
package telemetry

import (
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intake_sessions_created_total",
		Help: "Sessions created, by agent type",
	}, []string{"agent"})

	SessionsReclaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intake_sessions_reclaimed_total",
		Help: "Expired sessions reclaimed opportunistically on create",
	})

	MessagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intake_messages_processed_total",
		Help: "Inbound clarification messages processed, by agent type",
	}, []string{"agent"})

	StageRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intake_stage_runs_total",
		Help: "Pipeline stage executions, by stage and outcome",
	}, []string{"stage", "outcome"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "intake_stage_duration_seconds",
		Help:    "Pipeline stage wall time",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	ExpansionCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intake_expansion_cache_hits_total",
		Help: "Term expansion cache hits",
	})

	ExpansionCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intake_expansion_cache_misses_total",
		Help: "Term expansion cache misses",
	})

	CompletionCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intake_completion_calls_total",
		Help: "Completion-service calls, by component and outcome",
	}, []string{"component", "outcome"})
)

// NewLogger returns a logger with the service's bracketed-prefix convention,
// e.g. NewLogger("PIPE") -> "[PIPE] ".
func NewLogger(prefix string) *log.Logger {
	return log.New(log.Writer(), "["+prefix+"] ", log.LstdFlags)
}
