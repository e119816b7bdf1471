package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"orbit-erp/triggerkit/pkg/config"
)

// TriggerMetrics tracks metrics related to trigger evaluation and action
// execution.
//
// Metrics:
//   - triggerkit_trigger_evaluations_total: evaluations by event
//   - triggerkit_trigger_hits_total: trigger matches by trigger
//   - triggerkit_trigger_misses_total: trigger non-matches by trigger
//   - triggerkit_fire_duration_seconds: Fire call duration by event
//   - triggerkit_actions_total: action executions by type and outcome
//   - triggerkit_simulations_total: Simulate calls by event
type TriggerMetrics struct {
	evaluationsTotal *prometheus.CounterVec
	hitsTotal        *prometheus.CounterVec
	missesTotal      *prometheus.CounterVec
	fireDuration     *prometheus.HistogramVec
	actionsTotal     *prometheus.CounterVec
	simulationsTotal *prometheus.CounterVec
}

// NewTriggerMetrics creates and registers trigger metrics with the provided
// registry.
func NewTriggerMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *TriggerMetrics {
	tm := &TriggerMetrics{
		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "trigger_evaluations_total",
				Help:      "Total number of trigger evaluations",
			},
			[]string{"event"},
		),

		hitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "trigger_hits_total",
				Help:      "Total number of trigger matches",
			},
			[]string{"trigger_id"},
		),

		missesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "trigger_misses_total",
				Help:      "Total number of trigger non-matches",
			},
			[]string{"trigger_id"},
		),

		fireDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "fire_duration_seconds",
				Help:      "Duration of Fire calls in seconds",
				// Evaluation is in-memory; action dispatch dominates.
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 15), // 100µs to 1.6s
			},
			[]string{"event"},
		),

		actionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "actions_total",
				Help:      "Total number of executed actions by type and outcome",
			},
			[]string{"action", "outcome"},
		),

		simulationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "simulations_total",
				Help:      "Total number of Simulate calls",
			},
			[]string{"event"},
		),
	}

	registry.MustRegister(
		tm.evaluationsTotal,
		tm.hitsTotal,
		tm.missesTotal,
		tm.fireDuration,
		tm.actionsTotal,
		tm.simulationsTotal,
	)

	return tm
}

// RecordEvaluation records one trigger evaluation for an event.
func (tm *TriggerMetrics) RecordEvaluation(event string) {
	if tm == nil {
		return
	}
	tm.evaluationsTotal.WithLabelValues(event).Inc()
}

// RecordHit records a trigger match.
func (tm *TriggerMetrics) RecordHit(triggerID string) {
	if tm == nil {
		return
	}
	tm.hitsTotal.WithLabelValues(triggerID).Inc()
}

// RecordMiss records a trigger non-match.
func (tm *TriggerMetrics) RecordMiss(triggerID string) {
	if tm == nil {
		return
	}
	tm.missesTotal.WithLabelValues(triggerID).Inc()
}

// ObserveFire records the duration of one Fire call.
func (tm *TriggerMetrics) ObserveFire(event string, duration time.Duration) {
	if tm == nil {
		return
	}
	tm.fireDuration.WithLabelValues(event).Observe(duration.Seconds())
}

// RecordAction records one action execution.
func (tm *TriggerMetrics) RecordAction(actionType string, ok bool) {
	if tm == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	tm.actionsTotal.WithLabelValues(actionType, outcome).Inc()
}

// RecordSimulation records one Simulate call.
func (tm *TriggerMetrics) RecordSimulation(event string) {
	if tm == nil {
		return
	}
	tm.simulationsTotal.WithLabelValues(event).Inc()
}
