package entity

import "time"

// Violation is one rule that matched assessed content
type Violation struct {
	RuleID      string   `json:"rule_id"`
	Category    string   `json:"category"`
	Severity    Severity `json:"severity"`
	Action      Action   `json:"action"`
	Description string   `json:"description"`
	Remediation string   `json:"remediation"`
}

// SeveritySummary counts violations per severity tier
type SeveritySummary struct {
	Total    int `json:"total"`
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// Add counts one violation of the given severity
func (s *SeveritySummary) Add(sev Severity) {
	s.Total++
	switch sev {
	case SeverityCritical:
		s.Critical++
	case SeverityHigh:
		s.High++
	case SeverityMedium:
		s.Medium++
	case SeverityLow:
		s.Low++
	}
}

// Assessment is the immutable record of one compliance check. Only a digest
// of the assessed content is kept.
type Assessment struct {
	AssessmentID    string          `json:"assessment_id"`
	AgentID         string          `json:"agent_id"`
	RoleID          string          `json:"role_id"`
	ContentDigest   string          `json:"content_digest"`
	Timestamp       time.Time       `json:"timestamp"`
	Passed          bool            `json:"passed"`
	Violations      []Violation     `json:"violations"`
	Summary         SeveritySummary `json:"summary"`
	Recommendations []string        `json:"recommendations"`
}

// HasBlocking reports whether any violation asks the caller to block
func (a *Assessment) HasBlocking() bool {
	for _, v := range a.Violations {
		if v.Action == ActionBlock {
			return true
		}
	}
	return false
}

// AssessmentFilter narrows ListAssessments. Zero values match everything.
type AssessmentFilter struct {
	RoleID  string
	AgentID string
	Limit   int
	Offset  int
}
