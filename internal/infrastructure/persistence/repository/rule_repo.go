package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/agent-orchestrator/internal/application/port"
	"github.com/garyjia/agent-orchestrator/internal/domain/entity"
	"github.com/garyjia/agent-orchestrator/internal/infrastructure/persistence/sqlite"
)

// RuleRepository implements port.RuleRepository. Applicable roles live in
// policy_rule_roles so rules can be range-scanned by role.
type RuleRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRuleRepository creates a new rule repository
func NewRuleRepository(db *sql.DB, logger *zap.Logger) port.RuleRepository {
	return &RuleRepository{db: db, logger: logger}
}

const ruleColumns = `r.rule_id, r.name, r.category, r.severity, r.match_pattern, r.action,
	r.description, r.remediation, r.created_at, r.updated_at,
	COALESCE((SELECT GROUP_CONCAT(role_id, ',') FROM policy_rule_roles WHERE rule_id = r.rule_id), '')`

// Upsert writes the rule and replaces its role bindings. New bindings are
// added before stale ones are pruned; call it inside a transaction so the
// two tables change together.
func (r *RuleRepository) Upsert(ctx context.Context, rule *entity.PolicyRule) error {
	exec := sqlite.ExecutorFor(ctx, r.db)
	now := time.Now().UTC()

	query := `
		INSERT INTO policy_rules (
			rule_id, name, category, severity, match_pattern, action,
			description, remediation, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(rule_id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			severity = excluded.severity,
			match_pattern = excluded.match_pattern,
			action = excluded.action,
			description = excluded.description,
			remediation = excluded.remediation,
			updated_at = excluded.updated_at
	`
	_, err := exec.ExecContext(ctx, query,
		rule.RuleID,
		rule.Name,
		rule.Category,
		string(rule.Severity),
		rule.MatchPattern,
		string(rule.Action),
		rule.Description,
		rule.Remediation,
		now,
		now,
	)
	if err != nil {
		r.logger.Error("Failed to upsert rule", zap.String("rule_id", rule.RuleID), zap.Error(err))
		return fmt.Errorf("failed to upsert rule: %w", err)
	}

	for _, roleID := range rule.ApplicableRoles {
		_, err := exec.ExecContext(ctx,
			`INSERT OR IGNORE INTO policy_rule_roles (rule_id, role_id) VALUES (?, ?)`,
			rule.RuleID, roleID)
		if err != nil {
			r.logger.Error("Failed to bind rule to role",
				zap.String("rule_id", rule.RuleID),
				zap.String("role_id", roleID),
				zap.Error(err))
			return fmt.Errorf("failed to bind rule role: %w", err)
		}
	}

	if err := pruneBindings(ctx, exec, "policy_rule_roles", "rule_id", rule.RuleID, rule.ApplicableRoles); err != nil {
		return fmt.Errorf("failed to prune rule roles: %w", err)
	}

	rule.UpdatedAt = now
	return nil
}

// GetByID retrieves a rule by id
func (r *RuleRepository) GetByID(ctx context.Context, ruleID string) (*entity.PolicyRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM policy_rules r WHERE r.rule_id = ?`

	rule, err := scanRule(sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, ruleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("rule %s: %w", ruleID, entity.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get rule", zap.String("rule_id", ruleID), zap.Error(err))
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return rule, nil
}

// List returns every rule ordered by id
func (r *RuleRepository) List(ctx context.Context) ([]*entity.PolicyRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM policy_rules r ORDER BY r.rule_id`
	return r.query(ctx, query)
}

// ListByRole returns the rules applicable to roleID ordered by id
func (r *RuleRepository) ListByRole(ctx context.Context, roleID string) ([]*entity.PolicyRule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM policy_rules r
		JOIN policy_rule_roles rr ON rr.rule_id = r.rule_id
		WHERE rr.role_id = ?
		ORDER BY r.rule_id
	`
	return r.query(ctx, query, roleID)
}

func (r *RuleRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.PolicyRule, error) {
	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query rules", zap.Error(err))
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var rules []*entity.PolicyRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func scanRule(row rowScanner) (*entity.PolicyRule, error) {
	var rule entity.PolicyRule
	var severity, action, roles string
	err := row.Scan(
		&rule.RuleID,
		&rule.Name,
		&rule.Category,
		&severity,
		&rule.MatchPattern,
		&action,
		&rule.Description,
		&rule.Remediation,
		&rule.CreatedAt,
		&rule.UpdatedAt,
		&roles,
	)
	if err != nil {
		return nil, err
	}
	rule.Severity = entity.Severity(severity)
	rule.Action = entity.Action(action)
	rule.ApplicableRoles = splitIDs(roles)
	return &rule, nil
}

// splitIDs turns a GROUP_CONCAT result into a sorted id list
func splitIDs(joined string) []string {
	if joined == "" {
		return []string{}
	}
	ids := strings.Split(joined, ",")
	sort.Strings(ids)
	return ids
}
