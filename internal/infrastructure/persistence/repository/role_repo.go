package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/agent-orchestrator/internal/application/port"
	"github.com/garyjia/agent-orchestrator/internal/domain/entity"
	"github.com/garyjia/agent-orchestrator/internal/infrastructure/persistence/sqlite"
)

// RoleRepository implements port.RoleRepository
type RoleRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(db *sql.DB, logger *zap.Logger) port.RoleRepository {
	return &RoleRepository{db: db, logger: logger}
}

const roleColumns = `role_id, name, responsibilities, policy_refs, knowledge_refs,
	risk_level, approval_required, created_at, updated_at`

// Upsert inserts the role or replaces every field except created_at
func (r *RoleRepository) Upsert(ctx context.Context, role *entity.Role) error {
	responsibilities, err := encodeJSON(role.Responsibilities)
	if err != nil {
		return err
	}
	policyRefs, err := encodeJSON(role.PolicyRefs)
	if err != nil {
		return err
	}
	knowledgeRefs, err := encodeJSON(role.KnowledgeRefs)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO roles (` + roleColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(role_id) DO UPDATE SET
			name = excluded.name,
			responsibilities = excluded.responsibilities,
			policy_refs = excluded.policy_refs,
			knowledge_refs = excluded.knowledge_refs,
			risk_level = excluded.risk_level,
			approval_required = excluded.approval_required,
			updated_at = excluded.updated_at
	`

	_, err = sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		role.RoleID,
		role.Name,
		responsibilities,
		policyRefs,
		knowledgeRefs,
		string(role.RiskLevel),
		role.ApprovalRequired,
		now,
		now,
	)
	if err != nil {
		r.logger.Error("Failed to upsert role", zap.String("role_id", role.RoleID), zap.Error(err))
		return fmt.Errorf("failed to upsert role: %w", err)
	}

	role.UpdatedAt = now
	return nil
}

// GetByID retrieves a role by id
func (r *RoleRepository) GetByID(ctx context.Context, roleID string) (*entity.Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE role_id = ?`

	role, err := scanRole(sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, roleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("role %s: %w", roleID, entity.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get role", zap.String("role_id", roleID), zap.Error(err))
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

// List returns every role ordered by id
func (r *RoleRepository) List(ctx context.Context) ([]*entity.Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles ORDER BY role_id`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list roles", zap.Error(err))
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []*entity.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func scanRole(row rowScanner) (*entity.Role, error) {
	var role entity.Role
	var responsibilities, policyRefs, knowledgeRefs, risk string
	err := row.Scan(
		&role.RoleID,
		&role.Name,
		&responsibilities,
		&policyRefs,
		&knowledgeRefs,
		&risk,
		&role.ApprovalRequired,
		&role.CreatedAt,
		&role.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	role.RiskLevel = entity.RiskLevel(risk)
	if err := decodeJSON(responsibilities, &role.Responsibilities); err != nil {
		return nil, err
	}
	if err := decodeJSON(policyRefs, &role.PolicyRefs); err != nil {
		return nil, err
	}
	if err := decodeJSON(knowledgeRefs, &role.KnowledgeRefs); err != nil {
		return nil, err
	}
	return &role, nil
}

var _ port.RoleRepository = (*RoleRepository)(nil)
