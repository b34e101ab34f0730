package policy

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/garyjia/agent-orchestrator/internal/domain/entity"
)

type memRoleRepo struct {
	mu    sync.Mutex
	roles map[string]*entity.Role
}

func (m *memRoleRepo) Upsert(ctx context.Context, role *entity.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *role
	m.roles[role.RoleID] = &cp
	return nil
}

func (m *memRoleRepo) GetByID(ctx context.Context, roleID string) (*entity.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	role, ok := m.roles[roleID]
	if !ok {
		return nil, entity.ErrNotFound
	}
	cp := *role
	return &cp, nil
}

func (m *memRoleRepo) List(ctx context.Context) ([]*entity.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Role
	for _, r := range m.roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoleID < out[j].RoleID })
	return out, nil
}

type memRuleRepo struct {
	mu      sync.Mutex
	rules   map[string]*entity.PolicyRule
	listErr error
}

func (m *memRuleRepo) Upsert(ctx context.Context, rule *entity.PolicyRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rule
	m.rules[rule.RuleID] = &cp
	return nil
}

func (m *memRuleRepo) GetByID(ctx context.Context, ruleID string) (*entity.PolicyRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rule, ok := m.rules[ruleID]
	if !ok {
		return nil, entity.ErrNotFound
	}
	cp := *rule
	return &cp, nil
}

func (m *memRuleRepo) List(ctx context.Context) ([]*entity.PolicyRule, error) {
	return m.ListByRole(ctx, "")
}

func (m *memRuleRepo) ListByRole(ctx context.Context, roleID string) ([]*entity.PolicyRule, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.PolicyRule
	for _, r := range m.rules {
		if roleID == "" || r.AppliesTo(roleID) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RuleID < out[j].RuleID })
	return out, nil
}

type memKnowledgeRepo struct {
	mu      sync.Mutex
	entries map[string]*entity.KnowledgeEntry
}

func (m *memKnowledgeRepo) Upsert(ctx context.Context, entry *entity.KnowledgeEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *entry
	m.entries[entry.EntryID] = &cp
	return nil
}

func (m *memKnowledgeRepo) GetByID(ctx context.Context, entryID string) (*entity.KnowledgeEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[entryID]
	if !ok {
		return nil, entity.ErrNotFound
	}
	return entry, nil
}

func (m *memKnowledgeRepo) List(ctx context.Context) ([]*entity.KnowledgeEntry, error) {
	return m.ListByRole(ctx, "")
}

func (m *memKnowledgeRepo) ListByRole(ctx context.Context, roleID string) ([]*entity.KnowledgeEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.KnowledgeEntry
	for _, e := range m.entries {
		if roleID == "" {
			out = append(out, e)
			continue
		}
		for _, r := range e.ApplicableRoles {
			if r == roleID {
				out = append(out, e)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntryID < out[j].EntryID })
	return out, nil
}

type memAssessmentRepo struct {
	mu        sync.Mutex
	items     []*entity.Assessment
	createErr error
}

func (m *memAssessmentRepo) Create(ctx context.Context, a *entity.Assessment) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, a)
	return nil
}

func (m *memAssessmentRepo) GetByID(ctx context.Context, id string) (*entity.Assessment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.items {
		if a.AssessmentID == id {
			return a, nil
		}
	}
	return nil, entity.ErrNotFound
}

func (m *memAssessmentRepo) List(ctx context.Context, filter entity.AssessmentFilter) ([]*entity.Assessment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Assessment
	for _, a := range m.items {
		if filter.RoleID != "" && a.RoleID != filter.RoleID {
			continue
		}
		if filter.AgentID != "" && a.AgentID != filter.AgentID {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

type passthroughTx struct {
	calls int
}

func (p *passthroughTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	p.calls++
	return fn(ctx)
}

var errStoreDown = errors.New("store down")

func newRepos() Repositories {
	return Repositories{
		Roles:       &memRoleRepo{roles: make(map[string]*entity.Role)},
		Rules:       &memRuleRepo{rules: make(map[string]*entity.PolicyRule)},
		Knowledge:   &memKnowledgeRepo{entries: make(map[string]*entity.KnowledgeEntry)},
		Assessments: &memAssessmentRepo{},
	}
}
