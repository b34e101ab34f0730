package entity

import "time"

// Severity grades a policy rule and the violations it produces
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// IsValid reports whether s is a known severity
func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Action is the enforcement a caller should take when a rule matches
type Action string

const (
	ActionBlock                Action = "block"
	ActionFlag                 Action = "flag"
	ActionRequireJustification Action = "require-justification"
)

// IsValid reports whether a is a known action
func (a Action) IsValid() bool {
	switch a {
	case ActionBlock, ActionFlag, ActionRequireJustification:
		return true
	}
	return false
}

// PolicyRule is a single compliance constraint matched against content
type PolicyRule struct {
	RuleID          string    `json:"rule_id"`
	Name            string    `json:"name"`
	Category        string    `json:"category"`
	Severity        Severity  `json:"severity"`
	MatchPattern    string    `json:"match_pattern"`
	Action          Action    `json:"action"`
	Description     string    `json:"description"`
	Remediation     string    `json:"remediation"`
	ApplicableRoles []string  `json:"applicable_roles"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// AppliesTo reports whether the rule is checked for roleID
func (r *PolicyRule) AppliesTo(roleID string) bool {
	for _, id := range r.ApplicableRoles {
		if id == roleID {
			return true
		}
	}
	return false
}

// Validate checks the fields required for an upsert. The pattern itself is
// not compiled here; a broken pattern is stored and reported at assessment.
func (r *PolicyRule) Validate() error {
	if r.RuleID == "" {
		return invalidf("rule_id is required")
	}
	if r.MatchPattern == "" {
		return invalidf("match_pattern is required for rule %s", r.RuleID)
	}
	if !r.Severity.IsValid() {
		return invalidf("unknown severity %q for rule %s", r.Severity, r.RuleID)
	}
	if r.Action == "" {
		r.Action = ActionFlag
	}
	if !r.Action.IsValid() {
		return invalidf("unknown action %q for rule %s", r.Action, r.RuleID)
	}
	if len(r.ApplicableRoles) == 0 {
		return invalidf("rule %s must apply to at least one role", r.RuleID)
	}
	return nil
}
