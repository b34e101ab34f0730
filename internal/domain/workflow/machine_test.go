package workflow

import (
	"context"
	"errors"
	"testing"
)

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    State
		expected bool
	}{
		{StatePlanning, false},
		{StatePending, false},
		{StateInProgress, false},
		{StateCompleted, true},
		{StateFailed, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.expected {
				t.Errorf("State.IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		expected bool
	}{
		{"planning", StatePlanning, true},
		{"completed", StateCompleted, true},
		{"unknown", State("paused"), false},
		{"empty", State(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.expected {
				t.Errorf("State.IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestWorkflowMachine_Transitions(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		from     State
		triggers []Trigger
		want     State
		wantErr  error
	}{
		{"start then complete", StatePlanning, []Trigger{TriggerStart, TriggerComplete}, StateCompleted, nil},
		{"start then fail", StatePlanning, []Trigger{TriggerStart, TriggerFail}, StateFailed, nil},
		{"cancel while running", StatePlanning, []Trigger{TriggerStart, TriggerCancel}, StateFailed, nil},
		{"cancel before start", StatePlanning, []Trigger{TriggerCancel}, StateFailed, nil},
		{"complete before start", StatePlanning, []Trigger{TriggerComplete}, StatePlanning, ErrInvalidTransition},
		{"restart completed", StateCompleted, []Trigger{TriggerStart}, StateCompleted, ErrTerminalState},
		{"resume failed", StateFailed, []Trigger{TriggerStart}, StateFailed, ErrTerminalState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewWorkflowMachine(tt.from)
			var err error
			for _, trig := range tt.triggers {
				if err = m.Fire(ctx, trig); err != nil {
					break
				}
			}
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if m.State() != tt.want {
				t.Errorf("State() = %s, want %s", m.State(), tt.want)
			}
		})
	}
}

func TestStageMachine_Transitions(t *testing.T) {
	ctx := context.Background()

	m := NewStageMachine(StatePending)
	if m.CanFire(TriggerComplete) {
		t.Error("pending stage should not be completable")
	}
	if err := m.Fire(ctx, TriggerStart); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Fire(ctx, TriggerComplete); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := m.Fire(ctx, TriggerFail); !errors.Is(err, ErrTerminalState) {
		t.Errorf("expected ErrTerminalState, got %v", err)
	}

	cancelled := NewStageMachine(StatePending)
	if err := cancelled.Fire(ctx, TriggerCancel); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.State() != StateFailed {
		t.Errorf("cancelled stage state = %s, want failed", cancelled.State())
	}

	running := NewStageMachine(StateInProgress)
	if err := running.Fire(ctx, TriggerCancel); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("dispatched stage must not be cancellable, got %v", err)
	}
}

func TestBuilder_Guards(t *testing.T) {
	ctx := context.Background()
	allow := false

	b := NewBuilder()
	b.Configure(StatePending).
		PermitIf(TriggerStart, StateInProgress, func(ctx context.Context) bool { return allow })
	def := b.Build()

	m := def.New(StatePending)
	if err := m.Fire(ctx, TriggerStart); !errors.Is(err, ErrGuardFailed) {
		t.Fatalf("expected ErrGuardFailed, got %v", err)
	}

	allow = true
	if err := m.Fire(ctx, TriggerStart); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.State() != StateInProgress {
		t.Errorf("State() = %s, want in_progress", m.State())
	}
}

func TestBuilder_BuildIsImmutable(t *testing.T) {
	b := NewBuilder()
	b.Configure(StatePending).Permit(TriggerStart, StateInProgress)
	def := b.Build()

	b.Configure(StatePending).Permit(TriggerCancel, StateFailed)

	m := def.New(StatePending)
	if m.CanFire(TriggerCancel) {
		t.Error("definition changed after Build")
	}
	if got := m.PermittedTriggers(); len(got) != 1 || got[0] != TriggerStart {
		t.Errorf("PermittedTriggers() = %v, want [START]", got)
	}
}

func TestBuilder_ConfigureTerminalPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic when configuring terminal state")
		}
	}()
	NewBuilder().Configure(StateCompleted)
}
