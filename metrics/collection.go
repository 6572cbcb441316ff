package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type prometheusMetrics struct {
	joinResults          *prometheus.CounterVec
	leaveOutcomes        *prometheus.CounterVec
	resultSubmissions    *prometheus.CounterVec
	outcomeApplyFailures *prometheus.CounterVec
	pendingOutcomes      prometheus.Gauge
	operationElapsedTime *prometheus.HistogramVec
}

func setupPrometheusMetrics(registry *prometheus.Registry) prometheusMetrics {
	factory := promauto.With(registry)

	return prometheusMetrics{
		joinResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streakmatch_join_results_total",
				Help: "Join attempts by result",
			}, []string{"result"}),
		leaveOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streakmatch_leave_outcomes_total",
				Help: "Leave requests by outcome (deleted, forfeited, departed)",
			}, []string{"outcome"}),
		resultSubmissions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streakmatch_result_submissions_total",
				Help: "Result submissions by outcome (recorded, settled, disputed)",
			}, []string{"outcome"}),
		outcomeApplyFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streakmatch_outcome_apply_failures_total",
				Help: "Failed attempts to apply a match outcome to user scores",
			}, []string{"reason"}),
		pendingOutcomes: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "streakmatch_pending_outcomes",
				Help: "Outcomes recorded but not yet applied, as seen by the last retry run",
			}),
		//nolint:promlinter
		operationElapsedTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "streakmatch_operation_elapsed_time_ms",
				Help:    "A histogram of engine operation elapsed time in milliseconds",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			}, []string{"operation"}),
	}
}

func (m prometheusMetrics) AddJoinResult(result string) {
	m.joinResults.With(prometheus.Labels{"result": result}).Inc()
}

func (m prometheusMetrics) AddLeaveOutcome(outcome string) {
	m.leaveOutcomes.With(prometheus.Labels{"outcome": outcome}).Inc()
}

func (m prometheusMetrics) AddResultSubmission(outcome string) {
	m.resultSubmissions.With(prometheus.Labels{"outcome": outcome}).Inc()
}

func (m prometheusMetrics) AddOutcomeApplyFailure(reason string) {
	m.outcomeApplyFailures.With(prometheus.Labels{"reason": reason}).Inc()
}

func (m prometheusMetrics) SetPendingOutcomes(n int) {
	m.pendingOutcomes.Set(float64(n))
}

func (m prometheusMetrics) AddOperationElapsedTimeMs(operation string, elapsed time.Duration) {
	m.operationElapsedTime.With(prometheus.Labels{"operation": operation}).Observe(float64(elapsed.Milliseconds()))
}
