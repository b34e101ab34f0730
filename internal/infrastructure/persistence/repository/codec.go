package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/garyjia/agent-orchestrator/internal/infrastructure/persistence/sqlite"
)

// encodeJSON serialises list and struct columns; nil slices become "[]"
func encodeJSON(v interface{}) (string, error) {
	switch s := v.(type) {
	case []string:
		if s == nil {
			return "[]", nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode column: %w", err)
	}
	return string(b), nil
}

func decodeJSON(raw string, v interface{}) error {
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("failed to decode column: %w", err)
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// pruneBindings removes the role bindings of owner that are not in keep.
// Bindings that survive are never deleted, so a reader outside the writing
// transaction never observes the owner without them.
func pruneBindings(ctx context.Context, exec sqlite.Executor, table, ownerColumn, ownerID string, keep []string) error {
	query := `DELETE FROM ` + table + ` WHERE ` + ownerColumn + ` = ?`
	args := []interface{}{ownerID}
	if len(keep) > 0 {
		query += ` AND role_id NOT IN (?` + strings.Repeat(`, ?`, len(keep)-1) + `)`
		for _, roleID := range keep {
			args = append(args, roleID)
		}
	}
	_, err := exec.ExecContext(ctx, query, args...)
	return err
}
