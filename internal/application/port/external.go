package port

import (
	"context"

	"github.com/garyjia/agent-orchestrator/internal/domain/entity"
)

// WorkerClient delivers a task to the worker serving roleID and waits for a
// terminal result. Timeouts wrap entity.ErrTimeout, unreachable workers and
// non-2xx answers wrap entity.ErrTransport.
type WorkerClient interface {
	Execute(ctx context.Context, roleID string, task *entity.Task) (*entity.TaskResult, error)
}

// Classification is a classifier's answer for one piece of task text
type Classification struct {
	RoleID     string
	Confidence float64
	Source     string
}

// Classifier maps free text to a role. ok is false when the classifier has
// no opinion, letting the caller fall back.
type Classifier interface {
	Name() string
	Classify(ctx context.Context, text string) (Classification, bool, error)
}

// ComplianceChecker assesses content produced or consumed by a role
type ComplianceChecker interface {
	Assess(ctx context.Context, agentID, roleID, content string) (*entity.Assessment, error)
}

// Notifier pushes a human-readable message to operators
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}
