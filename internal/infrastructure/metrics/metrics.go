// Package metrics exposes orchestrator activity as Prometheus collectors.
package metrics

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/garyjia/agent-orchestrator/internal/application/dispatcher"
	"github.com/garyjia/agent-orchestrator/internal/domain/event"
)

const namespace = "orchestrator"

// Metrics holds Prometheus metrics for workflows, stages, assessments and
// worker availability.
//
// Metrics:
//   - orchestrator_workflow_events_total{type} - workflow lifecycle events
//   - orchestrator_stages_total{role,outcome} - finished stages
//   - orchestrator_stage_duration_seconds{role} - worker call time per stage
//   - orchestrator_assessments_total{role,passed} - recorded assessments
//   - orchestrator_policy_violations_total{role} - violations across assessments
//   - orchestrator_approvals_required_total{role} - approval requests raised
//   - orchestrator_worker_up{role} - 1 when the role's worker answered its last probe
type Metrics struct {
	WorkflowEvents   *prometheus.CounterVec
	Stages           *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
	Assessments      *prometheus.CounterVec
	Violations       *prometheus.CounterVec
	ApprovalRequired *prometheus.CounterVec
	WorkerUp         *prometheus.GaugeVec
}

// New registers the collectors with reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		WorkflowEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "workflow_events_total",
				Help:      "Workflow lifecycle events by type",
			},
			[]string{"type"},
		),
		Stages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stages_total",
				Help:      "Finished stages by role and outcome",
			},
			[]string{"role", "outcome"},
		),
		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Stage execution time in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
			},
			[]string{"role"},
		),
		Assessments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "assessments_total",
				Help:      "Compliance assessments recorded",
			},
			[]string{"role", "passed"},
		),
		Violations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_violations_total",
				Help:      "Policy violations found by assessments",
			},
			[]string{"role"},
		),
		ApprovalRequired: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "approvals_required_total",
				Help:      "Stages that raised an approval request",
			},
			[]string{"role"},
		),
		WorkerUp: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "worker_up",
				Help:      "Whether the role's worker answered its last health probe",
			},
			[]string{"role"},
		),
	}
}

// Subscribe records every dispatched event
func (m *Metrics) Subscribe(d dispatcher.Dispatcher) {
	d.SubscribeNamed(dispatcher.AllEvents, "metrics", m.Handle)
}

// Handle updates collectors for one event
func (m *Metrics) Handle(ctx context.Context, evt *event.Event) error {
	role := evt.GetPayloadString(event.KeyRoleID)

	switch evt.Type {
	case event.TypeWorkflowCreated, event.TypeWorkflowStarted,
		event.TypeWorkflowCompleted, event.TypeWorkflowFailed, event.TypeWorkflowCancelled:
		m.WorkflowEvents.WithLabelValues(string(evt.Type)).Inc()

	case event.TypeStageCompleted, event.TypeStageFailed:
		outcome := "completed"
		if evt.Type == event.TypeStageFailed {
			outcome = "failed"
		}
		m.Stages.WithLabelValues(role, outcome).Inc()
		if _, ok := evt.Payload[event.KeyDuration]; ok {
			m.StageDuration.WithLabelValues(role).Observe(evt.GetPayloadFloat(event.KeyDuration))
		}

	case event.TypeAssessmentRecorded:
		passed := evt.GetPayloadBool(event.KeyPassed)
		m.Assessments.WithLabelValues(role, strconv.FormatBool(passed)).Inc()
		if n := evt.GetPayloadInt(event.KeyViolations); n > 0 {
			m.Violations.WithLabelValues(role).Add(float64(n))
		}

	case event.TypeApprovalRequired:
		m.ApprovalRequired.WithLabelValues(role).Inc()
	}
	return nil
}

// SetWorkerUp records a probe result
func (m *Metrics) SetWorkerUp(role string, up bool) {
	v := 0.0
	if up {
		v = 1
	}
	m.WorkerUp.WithLabelValues(role).Set(v)
}
