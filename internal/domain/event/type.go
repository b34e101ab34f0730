package event

// Type identifies the type of domain event
type Type string

const (
	TypeWorkflowCreated    Type = "workflow.created"
	TypeWorkflowStarted    Type = "workflow.started"
	TypeWorkflowCompleted  Type = "workflow.completed"
	TypeWorkflowFailed     Type = "workflow.failed"
	TypeWorkflowCancelled  Type = "workflow.cancelled"
	TypeStageStarted       Type = "stage.started"
	TypeStageCompleted     Type = "stage.completed"
	TypeStageFailed        Type = "stage.failed"
	TypeAssessmentRecorded Type = "assessment.recorded"
	TypeApprovalRequired   Type = "approval.required"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeWorkflowCreated,
		TypeWorkflowStarted,
		TypeWorkflowCompleted,
		TypeWorkflowFailed,
		TypeWorkflowCancelled,
		TypeStageStarted,
		TypeStageCompleted,
		TypeStageFailed,
		TypeAssessmentRecorded,
		TypeApprovalRequired:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the event closes a workflow
func (t Type) IsTerminal() bool {
	return t == TypeWorkflowCompleted || t == TypeWorkflowFailed || t == TypeWorkflowCancelled
}
