package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MatchMetrics records how the engine's operations end.
type MatchMetrics interface {
	AddJoinResult(result string)
	AddLeaveOutcome(outcome string)
	AddResultSubmission(outcome string)
	AddOutcomeApplyFailure(reason string)
	SetPendingOutcomes(n int)
	AddOperationElapsedTimeMs(operation string, elapsed time.Duration)
}

func NewMetrics(registry *prometheus.Registry) MatchMetrics {
	return setupPrometheusMetrics(registry)
}

// Noop discards everything. Tests and tools that have no registry use it.
type Noop struct{}

func (Noop) AddJoinResult(string)                             {}
func (Noop) AddLeaveOutcome(string)                           {}
func (Noop) AddResultSubmission(string)                       {}
func (Noop) AddOutcomeApplyFailure(string)                    {}
func (Noop) SetPendingOutcomes(int)                           {}
func (Noop) AddOperationElapsedTimeMs(string, time.Duration) {}
