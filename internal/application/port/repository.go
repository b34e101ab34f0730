package port

import (
	"context"

	"github.com/garyjia/agent-orchestrator/internal/domain/entity"
)

// RoleRepository defines persistence operations for Role
type RoleRepository interface {
	Upsert(ctx context.Context, role *entity.Role) error
	GetByID(ctx context.Context, roleID string) (*entity.Role, error)
	List(ctx context.Context) ([]*entity.Role, error)
}

// RuleRepository defines persistence operations for PolicyRule.
// ListByRole returns rules whose applicable roles include roleID.
type RuleRepository interface {
	Upsert(ctx context.Context, rule *entity.PolicyRule) error
	GetByID(ctx context.Context, ruleID string) (*entity.PolicyRule, error)
	List(ctx context.Context) ([]*entity.PolicyRule, error)
	ListByRole(ctx context.Context, roleID string) ([]*entity.PolicyRule, error)
}

// KnowledgeRepository defines persistence operations for KnowledgeEntry
type KnowledgeRepository interface {
	Upsert(ctx context.Context, entry *entity.KnowledgeEntry) error
	GetByID(ctx context.Context, entryID string) (*entity.KnowledgeEntry, error)
	List(ctx context.Context) ([]*entity.KnowledgeEntry, error)
	ListByRole(ctx context.Context, roleID string) ([]*entity.KnowledgeEntry, error)
}

// AssessmentRepository is append-only: there is no update or delete
type AssessmentRepository interface {
	Create(ctx context.Context, assessment *entity.Assessment) error
	GetByID(ctx context.Context, assessmentID string) (*entity.Assessment, error)
	List(ctx context.Context, filter entity.AssessmentFilter) ([]*entity.Assessment, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	// WithTransaction executes fn within a transaction.
	// Repositories called with the ctx passed to fn share the transaction.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
