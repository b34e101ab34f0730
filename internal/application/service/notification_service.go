package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/agent-orchestrator/internal/application/dispatcher"
	"github.com/garyjia/agent-orchestrator/internal/application/port"
	"github.com/garyjia/agent-orchestrator/internal/domain/entity"
	"github.com/garyjia/agent-orchestrator/internal/domain/event"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// WorkflowLookup resolves the workflow an event belongs to
type WorkflowLookup interface {
	GetWorkflow(ctx context.Context, workflowID string) (*entity.WorkflowInstance, error)
}

// NotificationService turns operator-relevant events into notifier messages
type NotificationService interface {
	NotifyWorkflowFailed(ctx context.Context, evt *event.Event) error
	NotifyApprovalRequired(ctx context.Context, evt *event.Event) error
	NotifyBlockedAssessment(ctx context.Context, evt *event.Event) error

	// Subscribe wires the service to a dispatcher
	Subscribe(d dispatcher.Dispatcher)
}

type notificationServiceImpl struct {
	notifier  port.Notifier
	workflows WorkflowLookup
	logger    Logger
}

// NewNotificationService creates a new NotificationService. workflows may be
// nil, in which case messages carry only the event payload.
func NewNotificationService(notifier port.Notifier, workflows WorkflowLookup, logger Logger) NotificationService {
	return &notificationServiceImpl{
		notifier:  notifier,
		workflows: workflows,
		logger:    logger,
	}
}

// Subscribe registers handlers for the events operators care about
func (s *notificationServiceImpl) Subscribe(d dispatcher.Dispatcher) {
	d.SubscribeNamed(event.TypeWorkflowFailed, "notify-workflow-failed", s.NotifyWorkflowFailed)
	d.SubscribeNamed(event.TypeApprovalRequired, "notify-approval-required", s.NotifyApprovalRequired)
	d.SubscribeNamed(event.TypeAssessmentRecorded, "notify-blocked-assessment", s.NotifyBlockedAssessment)
}

// NotifyWorkflowFailed reports which stage stopped a workflow
func (s *notificationServiceImpl) NotifyWorkflowFailed(ctx context.Context, evt *event.Event) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Workflow: %s\n", evt.WorkflowID)
	s.writeTask(ctx, &b, evt.WorkflowID)
	fmt.Fprintf(&b, "Stage: %s (#%d, role %s)\n",
		evt.GetPayloadString(event.KeyStageName),
		evt.GetPayloadInt(event.KeySequence),
		evt.GetPayloadString(event.KeyRoleID))
	if msg := evt.GetPayloadString(event.KeyError); msg != "" {
		fmt.Fprintf(&b, "Error: %s\n", msg)
	}
	b.WriteString("Later stages were not started.")

	return s.send(ctx, evt, "Workflow failed", b.String())
}

// NotifyApprovalRequired asks an operator to review a stage whose role needs
// sign-off after a failed assessment
func (s *notificationServiceImpl) NotifyApprovalRequired(ctx context.Context, evt *event.Event) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Workflow: %s\n", evt.WorkflowID)
	s.writeTask(ctx, &b, evt.WorkflowID)
	fmt.Fprintf(&b, "Stage: %s (role %s)\n",
		evt.GetPayloadString(event.KeyStageName),
		evt.GetPayloadString(event.KeyRoleID))
	fmt.Fprintf(&b, "Assessment: %s with %d violation(s)\n",
		evt.GetPayloadString(event.KeyAssessmentID),
		evt.GetPayloadInt(event.KeyViolations))
	b.WriteString("This role requires approval before its output is used.")

	return s.send(ctx, evt, "Approval required", b.String())
}

// NotifyBlockedAssessment reports failed assessments made outside a
// workflow; workflow stages already raise approval events.
func (s *notificationServiceImpl) NotifyBlockedAssessment(ctx context.Context, evt *event.Event) error {
	if evt.GetPayloadBool(event.KeyPassed) || evt.WorkflowID != "" {
		return nil
	}
	body := fmt.Sprintf("Agent: %s\nRole: %s\nAssessment: %s\nViolations: %d",
		evt.GetPayloadString(event.KeyAgentID),
		evt.GetPayloadString(event.KeyRoleID),
		evt.GetPayloadString(event.KeyAssessmentID),
		evt.GetPayloadInt(event.KeyViolations))
	return s.send(ctx, evt, "Compliance check failed", body)
}

func (s *notificationServiceImpl) writeTask(ctx context.Context, b *strings.Builder, workflowID string) {
	if s.workflows == nil || workflowID == "" {
		return
	}
	wf, err := s.workflows.GetWorkflow(ctx, workflowID)
	if err != nil {
		return
	}
	fmt.Fprintf(b, "Task: %s\n", wf.TaskDescription)
}

func (s *notificationServiceImpl) send(ctx context.Context, evt *event.Event, title, body string) error {
	if err := s.notifier.Notify(ctx, title, body); err != nil {
		s.logger.Error("Failed to send notification", "error", err, "event_type", evt.Type, "workflow_id", evt.WorkflowID)
		return fmt.Errorf("send notification: %w", err)
	}
	s.logger.Info("Notification sent", "event_type", evt.Type, "workflow_id", evt.WorkflowID)
	return nil
}
