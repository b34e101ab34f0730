package policy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/agent-orchestrator/internal/application/dispatcher"
	"github.com/garyjia/agent-orchestrator/internal/application/port"
	"github.com/garyjia/agent-orchestrator/internal/domain/entity"
	"github.com/garyjia/agent-orchestrator/internal/domain/event"
)

// Recommendation texts attached to failing assessments
const (
	RecommendRemediateNow       = "Critical violations found: remediate immediately before any downstream action"
	RecommendArchitectureReview = "Infrastructure policy violated: request an architecture review before proceeding"
)

// SeedMode controls how Seed treats rows that already exist
type SeedMode string

const (
	// SeedMissing inserts defaults that are absent and leaves edited rows alone
	SeedMissing SeedMode = "missing"
	// SeedOverwrite upserts every default
	SeedOverwrite SeedMode = "overwrite"
	// SeedOff skips seeding
	SeedOff SeedMode = "off"
)

// Repositories groups the Policy Store ports the engine reads and writes
type Repositories struct {
	Roles       port.RoleRepository
	Rules       port.RuleRepository
	Knowledge   port.KnowledgeRepository
	Assessments port.AssessmentRepository
}

// Engine evaluates content against the policy rules of a role and keeps the
// resulting audit trail.
type Engine struct {
	repos      Repositories
	txManager  port.TransactionManager
	matcher    *PatternMatcher
	dispatcher dispatcher.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
	newID      func() string

	// registration is rare; one lock keeps upserts of related rows ordered
	mu sync.Mutex
}

// Option configures the engine
type Option func(*Engine)

// WithDispatcher emits assessment.recorded events
func WithDispatcher(d dispatcher.Dispatcher) Option {
	return func(e *Engine) {
		e.dispatcher = d
	}
}

// WithClock overrides the assessment timestamp source
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithIDGenerator overrides assessment id generation
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) {
		e.newID = gen
	}
}

// NewEngine creates a compliance engine backed by the given repositories
func NewEngine(repos Repositories, txManager port.TransactionManager, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		repos:     repos,
		txManager: txManager,
		matcher:   NewPatternMatcher(),
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RegisterRole inserts or replaces a role
func (e *Engine) RegisterRole(ctx context.Context, role *entity.Role) error {
	if role == nil {
		return fmt.Errorf("%w: role cannot be nil", entity.ErrInvalidInput)
	}
	role.RoleID = normalizeRoleID(role.RoleID)
	if err := role.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		return e.repos.Roles.Upsert(ctx, role)
	})
	if err != nil {
		return fmt.Errorf("failed to register role %s: %w", role.RoleID, err)
	}
	e.logger.Info("Role registered", zap.String("role_id", role.RoleID))
	return nil
}

// RegisterRule inserts or replaces a rule. A pattern that does not compile is
// still stored; it is reported here and at every assessment.
func (e *Engine) RegisterRule(ctx context.Context, rule *entity.PolicyRule) error {
	if rule == nil {
		return fmt.Errorf("%w: rule cannot be nil", entity.ErrInvalidInput)
	}
	rule.ApplicableRoles = normalizeRoleIDs(rule.ApplicableRoles)
	if err := rule.Validate(); err != nil {
		return err
	}
	if err := e.matcher.Validate(rule.MatchPattern); err != nil {
		e.logger.Warn("Malformed rule pattern",
			zap.String("rule_id", rule.RuleID),
			zap.String("pattern", rule.MatchPattern),
			zap.Error(err))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// The rule row and its role bindings change together; an assessment
	// never sees the rule unbound.
	err := e.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		return e.repos.Rules.Upsert(ctx, rule)
	})
	if err != nil {
		return fmt.Errorf("failed to register rule %s: %w", rule.RuleID, err)
	}
	e.logger.Info("Policy rule registered",
		zap.String("rule_id", rule.RuleID),
		zap.Strings("roles", rule.ApplicableRoles))
	return nil
}

// RegisterKnowledgeEntry inserts or replaces a knowledge base entry
func (e *Engine) RegisterKnowledgeEntry(ctx context.Context, entry *entity.KnowledgeEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: knowledge entry cannot be nil", entity.ErrInvalidInput)
	}
	entry.ApplicableRoles = normalizeRoleIDs(entry.ApplicableRoles)
	if err := entry.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		return e.repos.Knowledge.Upsert(ctx, entry)
	})
	if err != nil {
		return fmt.Errorf("failed to register knowledge entry %s: %w", entry.EntryID, err)
	}
	e.logger.Info("Knowledge entry registered", zap.String("entry_id", entry.EntryID))
	return nil
}

// Assess checks content against every rule applicable to roleID and records
// the outcome. Violations are data: the only errors are Policy Store failures.
func (e *Engine) Assess(ctx context.Context, agentID, roleID, content string) (*entity.Assessment, error) {
	roleID = normalizeRoleID(roleID)
	rules, err := e.repos.Rules.ListByRole(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules for role %s: %w", roleID, err)
	}

	assessment := e.evaluate(rules, content)
	assessment.AssessmentID = e.newID()
	assessment.AgentID = agentID
	assessment.RoleID = roleID
	assessment.ContentDigest = Digest(content)
	assessment.Timestamp = e.now()

	if err := e.repos.Assessments.Create(ctx, assessment); err != nil {
		return nil, fmt.Errorf("failed to record assessment: %w", err)
	}

	e.logger.Info("Assessment recorded",
		zap.String("assessment_id", assessment.AssessmentID),
		zap.String("agent_id", agentID),
		zap.String("role_id", roleID),
		zap.Int("rules", len(rules)),
		zap.Int("violations", assessment.Summary.Total))

	if e.dispatcher != nil {
		evt := event.NewEvent(event.TypeAssessmentRecorded, "", map[string]interface{}{
			event.KeyAssessmentID: assessment.AssessmentID,
			event.KeyAgentID:      agentID,
			event.KeyRoleID:       roleID,
			event.KeyPassed:       assessment.Passed,
			event.KeyViolations:   assessment.Summary.Total,
		})
		e.dispatcher.DispatchAsync(ctx, evt)
	}

	return assessment, nil
}

func (e *Engine) evaluate(rules []*entity.PolicyRule, content string) *entity.Assessment {
	assessment := &entity.Assessment{
		Violations:      []entity.Violation{},
		Recommendations: []string{},
	}

	infrastructure := false
	for _, rule := range rules {
		matched, err := e.matcher.Match(rule.MatchPattern, content)
		if err != nil {
			e.logger.Warn("Malformed rule pattern",
				zap.String("rule_id", rule.RuleID),
				zap.String("pattern", rule.MatchPattern),
				zap.Error(err))
			continue
		}
		if !matched {
			continue
		}

		assessment.Violations = append(assessment.Violations, entity.Violation{
			RuleID:      rule.RuleID,
			Category:    rule.Category,
			Severity:    rule.Severity,
			Action:      rule.Action,
			Description: rule.Description,
			Remediation: rule.Remediation,
		})
		assessment.Summary.Add(rule.Severity)
		if rule.Category == entity.CategoryInfrastructure {
			infrastructure = true
		}
	}

	assessment.Passed = len(assessment.Violations) == 0
	if assessment.Summary.Critical > 0 {
		assessment.Recommendations = append(assessment.Recommendations, RecommendRemediateNow)
	}
	if infrastructure {
		assessment.Recommendations = append(assessment.Recommendations, RecommendArchitectureReview)
	}
	return assessment
}

// Digest is the hex sha256 of content; the raw content is never stored
func Digest(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Role ids are stored lowercase; lookups accept any case and surrounding space.
func normalizeRoleID(roleID string) string {
	return strings.ToLower(strings.TrimSpace(roleID))
}

func normalizeRoleIDs(roleIDs []string) []string {
	out := make([]string, 0, len(roleIDs))
	for _, id := range roleIDs {
		if id = normalizeRoleID(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// GetKnowledgeForRole returns the reference material attached to roleID
func (e *Engine) GetKnowledgeForRole(ctx context.Context, roleID string) ([]*entity.KnowledgeEntry, error) {
	roleID = normalizeRoleID(roleID)
	entries, err := e.repos.Knowledge.ListByRole(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load knowledge for role %s: %w", roleID, err)
	}
	return entries, nil
}

// GetRole returns a role by id
func (e *Engine) GetRole(ctx context.Context, roleID string) (*entity.Role, error) {
	return e.repos.Roles.GetByID(ctx, roleID)
}

// ListRoles returns every role
func (e *Engine) ListRoles(ctx context.Context) ([]*entity.Role, error) {
	return e.repos.Roles.List(ctx)
}

// GetRule returns a rule by id
func (e *Engine) GetRule(ctx context.Context, ruleID string) (*entity.PolicyRule, error) {
	return e.repos.Rules.GetByID(ctx, ruleID)
}

// ListRules returns every rule, or only those applicable to roleID
func (e *Engine) ListRules(ctx context.Context, roleID string) ([]*entity.PolicyRule, error) {
	if roleID = normalizeRoleID(roleID); roleID != "" {
		return e.repos.Rules.ListByRole(ctx, roleID)
	}
	return e.repos.Rules.List(ctx)
}

// GetKnowledgeEntry returns a knowledge entry by id
func (e *Engine) GetKnowledgeEntry(ctx context.Context, entryID string) (*entity.KnowledgeEntry, error) {
	return e.repos.Knowledge.GetByID(ctx, entryID)
}

// ListKnowledge returns every knowledge entry
func (e *Engine) ListKnowledge(ctx context.Context) ([]*entity.KnowledgeEntry, error) {
	return e.repos.Knowledge.List(ctx)
}

// GetAssessment returns a recorded assessment
func (e *Engine) GetAssessment(ctx context.Context, assessmentID string) (*entity.Assessment, error) {
	return e.repos.Assessments.GetByID(ctx, assessmentID)
}

// ListAssessments returns recorded assessments, newest first
func (e *Engine) ListAssessments(ctx context.Context, filter entity.AssessmentFilter) ([]*entity.Assessment, error) {
	return e.repos.Assessments.List(ctx, filter)
}

// Seed registers the default roles, rules and knowledge in one transaction
func (e *Engine) Seed(ctx context.Context, mode SeedMode) error {
	if mode == SeedOff {
		e.logger.Info("Policy seeding disabled")
		return nil
	}
	if mode != SeedMissing && mode != SeedOverwrite {
		return fmt.Errorf("%w: unknown seed mode %q", entity.ErrInvalidInput, mode)
	}

	seeded := 0
	err := e.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		for _, role := range DefaultRoles() {
			ok, err := e.shouldSeed(mode, func() error {
				_, err := e.repos.Roles.GetByID(ctx, role.RoleID)
				return err
			})
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if err := e.RegisterRole(ctx, role); err != nil {
				return err
			}
			seeded++
		}

		for _, rule := range DefaultRules() {
			ok, err := e.shouldSeed(mode, func() error {
				_, err := e.repos.Rules.GetByID(ctx, rule.RuleID)
				return err
			})
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if err := e.RegisterRule(ctx, rule); err != nil {
				return err
			}
			seeded++
		}

		for _, entry := range DefaultKnowledge() {
			ok, err := e.shouldSeed(mode, func() error {
				_, err := e.repos.Knowledge.GetByID(ctx, entry.EntryID)
				return err
			})
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if err := e.RegisterKnowledgeEntry(ctx, entry); err != nil {
				return err
			}
			seeded++
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to seed policy store: %w", err)
	}

	e.logger.Info("Policy store seeded", zap.String("mode", string(mode)), zap.Int("records", seeded))
	return nil
}

// shouldSeed reports whether a default row must be written. lookup returns
// nil when the row exists.
func (e *Engine) shouldSeed(mode SeedMode, lookup func() error) (bool, error) {
	if mode == SeedOverwrite {
		return true, nil
	}
	err := lookup()
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, entity.ErrNotFound):
		return true, nil
	default:
		return false, err
	}
}
