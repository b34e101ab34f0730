package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/agent-orchestrator/internal/application/port"
	"github.com/garyjia/agent-orchestrator/internal/domain/entity"
	"github.com/garyjia/agent-orchestrator/internal/infrastructure/persistence/sqlite"
)

// AssessmentRepository implements port.AssessmentRepository.
// The table rejects UPDATE and DELETE at the schema level.
type AssessmentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAssessmentRepository creates a new assessment repository
func NewAssessmentRepository(db *sql.DB, logger *zap.Logger) port.AssessmentRepository {
	return &AssessmentRepository{db: db, logger: logger}
}

const assessmentColumns = `assessment_id, agent_id, role_id, content_digest, timestamp,
	passed, violations, summary, recommendations`

const defaultAssessmentLimit = 100

// Create appends an assessment
func (r *AssessmentRepository) Create(ctx context.Context, a *entity.Assessment) error {
	violations, err := encodeJSON(a.Violations)
	if err != nil {
		return err
	}
	summary, err := encodeJSON(a.Summary)
	if err != nil {
		return err
	}
	recommendations, err := encodeJSON(a.Recommendations)
	if err != nil {
		return err
	}

	query := `INSERT INTO assessments (` + assessmentColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		a.AssessmentID,
		a.AgentID,
		a.RoleID,
		a.ContentDigest,
		a.Timestamp.UTC(),
		a.Passed,
		violations,
		summary,
		recommendations,
	)
	if err != nil {
		r.logger.Error("Failed to create assessment",
			zap.String("assessment_id", a.AssessmentID),
			zap.Error(err))
		return fmt.Errorf("failed to create assessment: %w", err)
	}
	return nil
}

// GetByID retrieves an assessment by id
func (r *AssessmentRepository) GetByID(ctx context.Context, assessmentID string) (*entity.Assessment, error) {
	query := `SELECT ` + assessmentColumns + ` FROM assessments WHERE assessment_id = ?`

	a, err := scanAssessment(sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, assessmentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("assessment %s: %w", assessmentID, entity.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get assessment", zap.String("assessment_id", assessmentID), zap.Error(err))
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}
	return a, nil
}

// List returns assessments newest first
func (r *AssessmentRepository) List(ctx context.Context, filter entity.AssessmentFilter) ([]*entity.Assessment, error) {
	var where []string
	var args []interface{}
	if filter.RoleID != "" {
		where = append(where, "role_id = ?")
		args = append(args, filter.RoleID)
	}
	if filter.AgentID != "" {
		where = append(where, "agent_id = ?")
		args = append(args, filter.AgentID)
	}

	query := `SELECT ` + assessmentColumns + ` FROM assessments`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultAssessmentLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += ` ORDER BY timestamp DESC, assessment_id LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list assessments", zap.Error(err))
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}
	defer rows.Close()

	var out []*entity.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assessment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAssessment(row rowScanner) (*entity.Assessment, error) {
	var a entity.Assessment
	var violations, summary, recommendations string
	err := row.Scan(
		&a.AssessmentID,
		&a.AgentID,
		&a.RoleID,
		&a.ContentDigest,
		&a.Timestamp,
		&a.Passed,
		&violations,
		&summary,
		&recommendations,
	)
	if err != nil {
		return nil, err
	}
	if err := decodeJSON(violations, &a.Violations); err != nil {
		return nil, err
	}
	if err := decodeJSON(summary, &a.Summary); err != nil {
		return nil, err
	}
	if err := decodeJSON(recommendations, &a.Recommendations); err != nil {
		return nil, err
	}
	return &a, nil
}

var _ port.AssessmentRepository = (*AssessmentRepository)(nil)
