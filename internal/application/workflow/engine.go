package workflow

import (
	"context"

	"github.com/garyjia/agent-orchestrator/internal/domain/entity"
)

// Orchestrator plans workflows from task descriptions and drives their
// stages through role workers. Returned instances are snapshots.
type Orchestrator interface {
	// CreateWorkflow plans a workflow in status planning without running it
	CreateWorkflow(ctx context.Context, taskDescription string, hints map[string]string) (*entity.WorkflowInstance, error)

	// RunWorkflow executes every stage in order and returns the final snapshot.
	// A failed stage is reported in the instance, not as an error.
	RunWorkflow(ctx context.Context, workflowID string) (*entity.WorkflowInstance, error)

	// GetWorkflow returns a snapshot of one workflow
	GetWorkflow(ctx context.Context, workflowID string) (*entity.WorkflowInstance, error)

	// ListActiveWorkflows returns workflows currently in progress
	ListActiveWorkflows(ctx context.Context) ([]*entity.WorkflowInstance, error)

	// ListWorkflows returns every known workflow, newest first
	ListWorkflows(ctx context.Context) ([]*entity.WorkflowInstance, error)

	// CancelWorkflow stops a workflow at its next stage boundary
	CancelWorkflow(ctx context.Context, workflowID string) error
}
