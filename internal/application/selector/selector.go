// Package selector routes free-form task text to a role.
package selector

import (
	"context"

	"go.uber.org/zap"

	"github.com/garyjia/agent-orchestrator/internal/application/port"
	"github.com/garyjia/agent-orchestrator/internal/application/registry"
	"github.com/garyjia/agent-orchestrator/internal/domain/entity"
)

// Selection sources
const (
	SourceHint    = "hint"
	SourceDefault = "default"
)

// Selection explains which role was picked and why
type Selection struct {
	RoleID     string  `json:"role_id"`
	Source     string  `json:"source"`
	Confidence float64 `json:"confidence"`
}

// Selector applies explicit hint, then classifiers in order, then the
// default role. It always returns a registered role.
type Selector struct {
	registry    *registry.Registry
	classifiers []port.Classifier
	defaultRole string
	logger      *zap.Logger
}

// Option configures the selector
type Option func(*Selector)

// WithClassifiers replaces the classifier chain
func WithClassifiers(classifiers ...port.Classifier) Option {
	return func(s *Selector) {
		s.classifiers = classifiers
	}
}

// WithDefaultRole overrides the fallback role
func WithDefaultRole(roleID string) Option {
	return func(s *Selector) {
		s.defaultRole = roleID
	}
}

// New creates a selector with a keyword classifier chain
func New(reg *registry.Registry, logger *zap.Logger, opts ...Option) *Selector {
	s := &Selector{
		registry:    reg,
		classifiers: []port.Classifier{NewKeywordClassifier()},
		defaultRole: entity.DefaultRoleID,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if !reg.Has(s.defaultRole) {
		// Totality needs a registered fallback.
		if ids := reg.RoleIDs(); len(ids) > 0 {
			s.defaultRole = ids[0]
		}
	}
	return s
}

// SelectRole returns the role that should receive taskText
func (s *Selector) SelectRole(ctx context.Context, taskText, explicitHint string) string {
	return s.Select(ctx, taskText, explicitHint).RoleID
}

// Select is SelectRole with the reasoning attached
func (s *Selector) Select(ctx context.Context, taskText, explicitHint string) Selection {
	if explicitHint != "" {
		if id, ok := s.registry.Normalize(explicitHint); ok {
			return Selection{RoleID: id, Source: SourceHint, Confidence: 1}
		}
		s.logger.Debug("Ignoring unknown role hint", zap.String("hint", explicitHint))
	}

	for _, c := range s.classifiers {
		result, ok, err := c.Classify(ctx, taskText)
		if err != nil {
			s.logger.Warn("Classifier failed, falling back",
				zap.String("classifier", c.Name()),
				zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		id, known := s.registry.Normalize(result.RoleID)
		if !known {
			s.logger.Warn("Classifier returned unknown role",
				zap.String("classifier", c.Name()),
				zap.String("role_id", result.RoleID))
			continue
		}
		return Selection{RoleID: id, Source: result.Source, Confidence: result.Confidence}
	}

	return Selection{RoleID: s.defaultRole, Source: SourceDefault}
}
