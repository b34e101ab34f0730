package entity

import (
	"encoding/json"
	"time"

	"github.com/garyjia/agent-orchestrator/internal/domain/workflow"
)

// MinutesPerStage is the per-stage completion hint
const MinutesPerStage = 15

// Stage is one role-bound step of a workflow
type Stage struct {
	SequenceNumber int             `json:"sequence_number"`
	RoleID         string          `json:"role_id"`
	Name           string          `json:"name"`
	Status         workflow.State  `json:"status"`
	StartedAt      *time.Time      `json:"started_at,omitempty"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          string          `json:"error,omitempty"`
	AssessmentID   string          `json:"assessment_id,omitempty"`
}

// WorkflowInstance is a sequence of stages derived from one task description
type WorkflowInstance struct {
	WorkflowID       string            `json:"workflow_id"`
	TaskDescription  string            `json:"task_description"`
	Hints            map[string]string `json:"hints,omitempty"`
	Template         string            `json:"template"`
	Status           workflow.State    `json:"status"`
	Stages           []*Stage          `json:"stages"`
	EstimatedMinutes int               `json:"estimated_minutes"`
	CreatedAt        time.Time         `json:"created_at"`
	StartedAt        *time.Time        `json:"started_at,omitempty"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
}

// Clone returns a deep copy safe to hand outside the orchestrator lock
func (w *WorkflowInstance) Clone() *WorkflowInstance {
	if w == nil {
		return nil
	}
	out := *w
	if w.Hints != nil {
		out.Hints = make(map[string]string, len(w.Hints))
		for k, v := range w.Hints {
			out.Hints[k] = v
		}
	}
	out.StartedAt = cloneTime(w.StartedAt)
	out.CompletedAt = cloneTime(w.CompletedAt)
	out.Stages = make([]*Stage, len(w.Stages))
	for i, s := range w.Stages {
		cp := *s
		cp.StartedAt = cloneTime(s.StartedAt)
		cp.CompletedAt = cloneTime(s.CompletedAt)
		if s.Result != nil {
			cp.Result = append(json.RawMessage(nil), s.Result...)
		}
		out.Stages[i] = &cp
	}
	return &out
}

// RoleSequence returns the stage roles in execution order
func (w *WorkflowInstance) RoleSequence() []string {
	roles := make([]string, len(w.Stages))
	for i, s := range w.Stages {
		roles[i] = s.RoleID
	}
	return roles
}

// FailedStage returns the first failed stage, or nil
func (w *WorkflowInstance) FailedStage() *Stage {
	for _, s := range w.Stages {
		if s.Status == workflow.StateFailed {
			return s
		}
	}
	return nil
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Task is the request body sent to a role's worker
type Task struct {
	TaskID   string                 `json:"taskId"`
	Task     string                 `json:"task"`
	Priority string                 `json:"priority"`
	Context  map[string]interface{} `json:"context"`
}

// TaskResult is the terminal answer from a worker
type TaskResult struct {
	TaskID string          `json:"taskId"`
	Status string          `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Succeeded reports whether the worker completed the task
func (r *TaskResult) Succeeded() bool {
	return r.Status == TaskStatusCompleted
}
