package entity

import "time"

// RiskLevel grades how much damage a role can do unsupervised
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// IsValid reports whether r is a known risk level
func (r RiskLevel) IsValid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	}
	return false
}

// Role is a named capability profile a worker acts under
type Role struct {
	RoleID           string    `json:"role_id"`
	Name             string    `json:"name"`
	Responsibilities []string  `json:"responsibilities"`
	PolicyRefs       []string  `json:"policy_refs"`
	KnowledgeRefs    []string  `json:"knowledge_refs"`
	RiskLevel        RiskLevel `json:"risk_level"`
	ApprovalRequired bool      `json:"approval_required"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Validate checks the fields required for an upsert
func (r *Role) Validate() error {
	if r.RoleID == "" {
		return invalidf("role_id is required")
	}
	if r.Name == "" {
		return invalidf("name is required for role %s", r.RoleID)
	}
	if r.RiskLevel == "" {
		r.RiskLevel = RiskMedium
	}
	if !r.RiskLevel.IsValid() {
		return invalidf("unknown risk level %q", r.RiskLevel)
	}
	return nil
}
