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

// KnowledgeRepository implements port.KnowledgeRepository
type KnowledgeRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewKnowledgeRepository creates a new knowledge base repository
func NewKnowledgeRepository(db *sql.DB, logger *zap.Logger) port.KnowledgeRepository {
	return &KnowledgeRepository{db: db, logger: logger}
}

const knowledgeColumns = `k.entry_id, k.title, k.content, k.category, k.tags, k.version,
	k.created_at, k.updated_at,
	COALESCE((SELECT GROUP_CONCAT(role_id, ',') FROM knowledge_roles WHERE entry_id = k.entry_id), '')`

// Upsert writes the entry and replaces its role bindings
func (r *KnowledgeRepository) Upsert(ctx context.Context, entry *entity.KnowledgeEntry) error {
	exec := sqlite.ExecutorFor(ctx, r.db)
	tags, err := encodeJSON(entry.Tags)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO knowledge_base (
			entry_id, title, content, category, tags, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(entry_id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			category = excluded.category,
			tags = excluded.tags,
			version = excluded.version,
			updated_at = excluded.updated_at
	`
	_, err = exec.ExecContext(ctx, query,
		entry.EntryID,
		entry.Title,
		entry.Content,
		entry.Category,
		tags,
		entry.Version,
		now,
		now,
	)
	if err != nil {
		r.logger.Error("Failed to upsert knowledge entry", zap.String("entry_id", entry.EntryID), zap.Error(err))
		return fmt.Errorf("failed to upsert knowledge entry: %w", err)
	}

	for _, roleID := range entry.ApplicableRoles {
		_, err := exec.ExecContext(ctx,
			`INSERT OR IGNORE INTO knowledge_roles (entry_id, role_id) VALUES (?, ?)`,
			entry.EntryID, roleID)
		if err != nil {
			return fmt.Errorf("failed to bind knowledge role: %w", err)
		}
	}

	if err := pruneBindings(ctx, exec, "knowledge_roles", "entry_id", entry.EntryID, entry.ApplicableRoles); err != nil {
		return fmt.Errorf("failed to prune knowledge roles: %w", err)
	}

	entry.UpdatedAt = now
	return nil
}

// GetByID retrieves an entry by id
func (r *KnowledgeRepository) GetByID(ctx context.Context, entryID string) (*entity.KnowledgeEntry, error) {
	query := `SELECT ` + knowledgeColumns + ` FROM knowledge_base k WHERE k.entry_id = ?`

	entry, err := scanKnowledge(sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, entryID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("knowledge entry %s: %w", entryID, entity.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get knowledge entry", zap.String("entry_id", entryID), zap.Error(err))
		return nil, fmt.Errorf("failed to get knowledge entry: %w", err)
	}
	return entry, nil
}

// List returns every entry ordered by id
func (r *KnowledgeRepository) List(ctx context.Context) ([]*entity.KnowledgeEntry, error) {
	return r.query(ctx, `SELECT `+knowledgeColumns+` FROM knowledge_base k ORDER BY k.entry_id`)
}

// ListByRole returns entries attached to roleID ordered by id
func (r *KnowledgeRepository) ListByRole(ctx context.Context, roleID string) ([]*entity.KnowledgeEntry, error) {
	query := `
		SELECT ` + knowledgeColumns + `
		FROM knowledge_base k
		JOIN knowledge_roles kr ON kr.entry_id = k.entry_id
		WHERE kr.role_id = ?
		ORDER BY k.entry_id
	`
	return r.query(ctx, query, roleID)
}

func (r *KnowledgeRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.KnowledgeEntry, error) {
	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query knowledge base", zap.Error(err))
		return nil, fmt.Errorf("failed to query knowledge base: %w", err)
	}
	defer rows.Close()

	var entries []*entity.KnowledgeEntry
	for rows.Next() {
		entry, err := scanKnowledge(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan knowledge entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanKnowledge(row rowScanner) (*entity.KnowledgeEntry, error) {
	var entry entity.KnowledgeEntry
	var tags, roles string
	err := row.Scan(
		&entry.EntryID,
		&entry.Title,
		&entry.Content,
		&entry.Category,
		&tags,
		&entry.Version,
		&entry.CreatedAt,
		&entry.UpdatedAt,
		&roles,
	)
	if err != nil {
		return nil, err
	}
	if err := decodeJSON(tags, &entry.Tags); err != nil {
		return nil, err
	}
	entry.ApplicableRoles = splitIDs(roles)
	return &entry, nil
}

var _ port.KnowledgeRepository = (*KnowledgeRepository)(nil)
