package policy

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/agent-orchestrator/internal/domain/entity"
	"github.com/garyjia/agent-orchestrator/internal/infrastructure/persistence/repository"
	"github.com/garyjia/agent-orchestrator/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/agent-orchestrator/pkg/database"
)

func newStoreEngine(t *testing.T) *Engine {
	t.Helper()
	logger := zap.NewNop()
	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "policy.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = database.NewMigrator(db, logger).Run()
	require.NoError(t, err)

	repos := Repositories{
		Roles:       repository.NewRoleRepository(db.DB, logger),
		Rules:       repository.NewRuleRepository(db.DB, logger),
		Knowledge:   repository.NewKnowledgeRepository(db.DB, logger),
		Assessments: repository.NewAssessmentRepository(db.DB, logger),
	}
	return NewEngine(repos, sqlite.NewDB(db.DB, logger), logger)
}

func TestAssess_ConcurrentReRegistrationKeepsRuleBound(t *testing.T) {
	engine := newStoreEngine(t)
	ctx := context.Background()

	secret := &entity.PolicyRule{
		RuleID:          "sec-literal-secret",
		Name:            "No secret literals",
		Category:        entity.CategorySecurity,
		Severity:        entity.SeverityCritical,
		MatchPattern:    `secret`,
		Action:          entity.ActionBlock,
		ApplicableRoles: []string{entity.RoleDeveloper},
	}
	require.NoError(t, engine.RegisterRule(ctx, secret))

	stop := make(chan struct{})
	var wg sync.WaitGroup
	var writeErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			rule := *secret
			rule.ApplicableRoles = []string{entity.RoleDeveloper}
			if err := engine.RegisterRule(ctx, &rule); err != nil {
				writeErr = err
				return
			}
		}
	}()

	passed := 0
	for i := 0; i < 200; i++ {
		a, err := engine.Assess(ctx, "agent-1", entity.RoleDeveloper, "my secret")
		require.NoError(t, err)
		if a.Passed {
			passed++
		}
	}
	close(stop)
	wg.Wait()

	require.NoError(t, writeErr)
	assert.Zero(t, passed, "assessments ran while the rule had no role bindings")
}

func TestRegisterRule_RebindingKeepsSharedRoles(t *testing.T) {
	engine := newStoreEngine(t)
	ctx := context.Background()

	rule := &entity.PolicyRule{
		RuleID:          "sec-literal-secret",
		Name:            "No secret literals",
		Category:        entity.CategorySecurity,
		Severity:        entity.SeverityHigh,
		MatchPattern:    `secret`,
		Action:          entity.ActionFlag,
		ApplicableRoles: []string{entity.RoleDeveloper, entity.RoleQA},
	}
	require.NoError(t, engine.RegisterRule(ctx, rule))

	rule.ApplicableRoles = []string{entity.RoleDeveloper, entity.RoleDevOps}
	require.NoError(t, engine.RegisterRule(ctx, rule))

	got, err := engine.GetRule(ctx, rule.RuleID)
	require.NoError(t, err)
	assert.Equal(t, []string{entity.RoleDeveloper, entity.RoleDevOps}, got.ApplicableRoles)

	qa, err := engine.ListRules(ctx, entity.RoleQA)
	require.NoError(t, err)
	assert.Empty(t, qa)
}
