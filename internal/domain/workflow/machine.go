package workflow

import "context"

// StateMachine tracks the current state of one workflow or stage and
// validates transitions against its Definition.
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire returns true if the trigger is permitted in the current state
	CanFire(trigger Trigger) bool

	// Fire attempts to execute the trigger, transitioning to the new state if allowed
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers returns all triggers that can be fired in the current state
	PermittedTriggers() []Trigger
}

// WorkflowDefinition is the lifecycle of a WorkflowInstance.
// Cancel is accepted before start so a queued workflow can be abandoned.
var WorkflowDefinition = func() *Definition {
	b := NewBuilder()
	b.Configure(StatePlanning).
		Permit(TriggerStart, StateInProgress).
		Permit(TriggerCancel, StateFailed)
	b.Configure(StateInProgress).
		Permit(TriggerComplete, StateCompleted).
		Permit(TriggerFail, StateFailed).
		Permit(TriggerCancel, StateFailed)
	return b.Build()
}()

// StageDefinition is the lifecycle of a single Stage.
// A pending stage can only fail through cancellation.
var StageDefinition = func() *Definition {
	b := NewBuilder()
	b.Configure(StatePending).
		Permit(TriggerStart, StateInProgress).
		Permit(TriggerCancel, StateFailed)
	b.Configure(StateInProgress).
		Permit(TriggerComplete, StateCompleted).
		Permit(TriggerFail, StateFailed)
	return b.Build()
}()

// NewWorkflowMachine returns a workflow lifecycle machine positioned at state
func NewWorkflowMachine(state State) StateMachine {
	return WorkflowDefinition.New(state)
}

// NewStageMachine returns a stage lifecycle machine positioned at state
func NewStageMachine(state State) StateMachine {
	return StageDefinition.New(state)
}
