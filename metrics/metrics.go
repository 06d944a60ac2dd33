// Package metrics provides optional prometheus instrumentation for the
// workflow engine: run lifecycle counters, per-turn and per-handoff counters
// and an active-run gauge. A nil *Recorder is a valid no-op, so the engine
// records unconditionally.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder tracks engine-level metrics.
type Recorder struct {
	runsStarted   prometheus.Counter
	runsCompleted prometheus.Counter
	runsFailed    *prometheus.CounterVec
	turnsTotal    *prometheus.CounterVec
	handoffsTotal *prometheus.CounterVec
	activeRuns    prometheus.Gauge
}

// NewRecorder registers the engine collectors with the given registerer
// under the namespace. A nil registerer uses the default registry.
func NewRecorder(namespace string, reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Recorder{
		runsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Total number of workflow runs started.",
		}),
		runsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_completed_total",
			Help:      "Total number of workflow runs that completed.",
		}),
		runsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_failed_total",
			Help:      "Total number of workflow runs that failed, by reason.",
		}, []string{"reason"}),
		turnsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "participant_turns_total",
			Help:      "Total number of participant invocations, by participant.",
		}, []string{"participant"}),
		handoffsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handoffs_total",
			Help:      "Total number of routing transitions, by source and target.",
		}, []string{"from", "to"}),
		activeRuns: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_runs",
			Help:      "Number of runs currently being driven by the engine.",
		}),
	}
}

// RunStarted records a new run and increments the active-run gauge.
func (r *Recorder) RunStarted() {
	if r == nil {
		return
	}
	r.runsStarted.Inc()
	r.activeRuns.Inc()
}

// RunSuspended decrements the active-run gauge when a run awaits input.
func (r *Recorder) RunSuspended() {
	if r == nil {
		return
	}
	r.activeRuns.Dec()
}

// RunResumed increments the active-run gauge when a suspended run resumes.
func (r *Recorder) RunResumed() {
	if r == nil {
		return
	}
	r.activeRuns.Inc()
}

// RunCompleted records a completed run.
func (r *Recorder) RunCompleted() {
	if r == nil {
		return
	}
	r.runsCompleted.Inc()
	r.activeRuns.Dec()
}

// RunFailed records a failed run under the given reason.
func (r *Recorder) RunFailed(reason string) {
	if r == nil {
		return
	}
	r.runsFailed.WithLabelValues(reason).Inc()
	r.activeRuns.Dec()
}

// Turn records one participant invocation.
func (r *Recorder) Turn(participant string) {
	if r == nil {
		return
	}
	r.turnsTotal.WithLabelValues(participant).Inc()
}

// Handoff records one routing transition.
func (r *Recorder) Handoff(from, to string) {
	if r == nil {
		return
	}
	r.handoffsTotal.WithLabelValues(from, to).Inc()
}
