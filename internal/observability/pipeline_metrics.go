package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	pipelineRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlquorum_pipeline_runs_total",
			Help: "Total number of pipeline runs by terminal status or error kind.",
		},
		[]string{"status"},
	)
	stageDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlquorum_stage_duration_seconds",
			Help:    "Pipeline stage latency in seconds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"stage", "outcome"},
	)
	candidatesGenerated = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sqlquorum_candidates_generated",
			Help:    "Number of normalized SQL candidates produced per run.",
			Buckets: []float64{0, 1, 2, 3, 4, 5, 8},
		},
	)
	candidateExecutionFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlquorum_candidate_execution_failures_total",
			Help: "Total number of candidates excluded from voting because execution failed.",
		},
	)
	winningGroupSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sqlquorum_winning_group_size",
			Help:    "Size of the agreement group that won the vote.",
			Buckets: []float64{1, 2, 3, 4, 5, 8},
		},
	)
	llmCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlquorum_llm_calls_total",
			Help: "Total number of language model calls by purpose and outcome.",
		},
		[]string{"purpose", "outcome"},
	)
	selectionFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlquorum_selection_fallbacks_total",
			Help: "Total number of unparseable table selections replaced by an empty selection.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		pipelineRunsTotal,
		stageDurationSeconds,
		candidatesGenerated,
		candidateExecutionFailuresTotal,
		winningGroupSize,
		llmCallsTotal,
		selectionFallbacksTotal,
	)
}

func ObservePipelineRun(status string) {
	pipelineRunsTotal.WithLabelValues(status).Inc()
}

func ObserveStage(stage string, elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	stageDurationSeconds.WithLabelValues(stage, outcome).Observe(elapsed.Seconds())
}

func ObserveCandidates(count int) {
	candidatesGenerated.Observe(float64(count))
}

func IncrementCandidateExecutionFailure() {
	candidateExecutionFailuresTotal.Inc()
}

func ObserveWinningGroup(size int) {
	if size <= 0 {
		return
	}
	winningGroupSize.Observe(float64(size))
}

func ObserveLLMCall(purpose, outcome string) {
	llmCallsTotal.WithLabelValues(purpose, outcome).Inc()
}

func IncrementSelectionFallback() {
	selectionFallbacksTotal.Inc()
}
