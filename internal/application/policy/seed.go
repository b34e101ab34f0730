package policy

import "github.com/garyjia/agent-orchestrator/internal/domain/entity"

// Seeded rule ids
const (
	RuleManagedCompute   = "infra-managed-compute"
	RuleHardcodedSecret  = "sec-hardcoded-secret"
	RulePrivateKey       = "sec-private-key"
	RuleManualProdChange = "ops-manual-prod-change"
	RuleSkippedTests     = "qa-skipped-tests"
)

// DefaultRoles returns the five standard role profiles
func DefaultRoles() []*entity.Role {
	return []*entity.Role{
		{
			RoleID:           entity.RoleArchitect,
			Name:             "Architect",
			Responsibilities: []string{"system design", "technology selection", "architecture review"},
			PolicyRefs:       []string{RuleManagedCompute},
			KnowledgeRefs:    []string{"kb-managed-compute"},
			RiskLevel:        entity.RiskHigh,
		},
		{
			RoleID:           entity.RoleDeveloper,
			Name:             "Developer",
			Responsibilities: []string{"implementation", "bug fixing", "code review"},
			PolicyRefs:       []string{RuleManagedCompute, RuleHardcodedSecret, RulePrivateKey},
			KnowledgeRefs:    []string{"kb-managed-compute", "kb-secret-handling"},
			RiskLevel:        entity.RiskMedium,
		},
		{
			RoleID:           entity.RoleDevOps,
			Name:             "DevOps Engineer",
			Responsibilities: []string{"deployment", "infrastructure", "monitoring"},
			PolicyRefs:       []string{RuleManagedCompute, RuleHardcodedSecret, RulePrivateKey, RuleManualProdChange},
			KnowledgeRefs:    []string{"kb-managed-compute", "kb-secret-handling", "kb-release-checklist"},
			RiskLevel:        entity.RiskHigh,
			ApprovalRequired: true,
		},
		{
			RoleID:           entity.RoleQA,
			Name:             "QA Engineer",
			Responsibilities: []string{"test planning", "regression testing", "quality gates"},
			PolicyRefs:       []string{RuleSkippedTests},
			KnowledgeRefs:    []string{"kb-release-checklist"},
			RiskLevel:        entity.RiskLow,
		},
		{
			RoleID:           entity.RoleManager,
			Name:             "Manager",
			Responsibilities: []string{"prioritisation", "approvals", "escalation"},
			KnowledgeRefs:    []string{"kb-escalation"},
			RiskLevel:        entity.RiskMedium,
		},
	}
}

// DefaultRules returns the mandatory policy rules
func DefaultRules() []*entity.PolicyRule {
	return []*entity.PolicyRule{
		{
			RuleID:          RuleManagedCompute,
			Name:            "Prefer managed compute",
			Category:        entity.CategoryInfrastructure,
			Severity:        entity.SeverityHigh,
			MatchPattern:    `\b(ec2|aws_instance|run[_-]instances|self[- ]managed (servers?|instances?|vms?)|bare[- ]metal|virtual machines?|vm instances?)\b`,
			Action:          entity.ActionRequireJustification,
			Description:     "Self-managed compute instances proposed instead of managed compute",
			Remediation:     "Use managed compute (managed container platform or serverless functions) or document why a self-managed instance is required",
			ApplicableRoles: []string{entity.RoleArchitect, entity.RoleDeveloper, entity.RoleDevOps},
		},
		{
			RuleID:          RuleHardcodedSecret,
			Name:            "No hardcoded secrets",
			Category:        entity.CategorySecurity,
			Severity:        entity.SeverityCritical,
			MatchPattern:    `(api[_-]?key|secret|passw(or)?d|pwd|token)\s*[:=]\s*['"][^'"\s]+['"]`,
			Action:          entity.ActionBlock,
			Description:     "Credential assigned from a string literal",
			Remediation:     "Remove the literal and read the value from a secret manager or environment variable; rotate the exposed credential",
			ApplicableRoles: []string{entity.RoleDeveloper, entity.RoleDevOps},
		},
		{
			RuleID:          RulePrivateKey,
			Name:            "No embedded private keys",
			Category:        entity.CategorySecurity,
			Severity:        entity.SeverityCritical,
			MatchPattern:    `-----BEGIN (RSA |DSA |EC |OPENSSH |PGP )?PRIVATE KEY( BLOCK)?-----`,
			Action:          entity.ActionBlock,
			Description:     "Private key material embedded in content",
			Remediation:     "Store keys in a secret manager and reference them by name; revoke the embedded key",
			ApplicableRoles: []string{entity.RoleDeveloper, entity.RoleDevOps},
		},
		{
			RuleID:          RuleManualProdChange,
			Name:            "No manual production changes",
			Category:        entity.CategoryOperations,
			Severity:        entity.SeverityHigh,
			MatchPattern:    `\b(ssh (in)?to prod\w*|manual(ly)? (change|edit|patch|hotfix)\w* (in |on )?prod\w*)\b`,
			Action:          entity.ActionFlag,
			Description:     "Manual change to production outside the delivery pipeline",
			Remediation:     "Ship the change through the deployment pipeline so it is reviewed and reproducible",
			ApplicableRoles: []string{entity.RoleDevOps},
		},
		{
			RuleID:          RuleSkippedTests,
			Name:            "Tests must not be skipped",
			Category:        entity.CategoryQuality,
			Severity:        entity.SeverityMedium,
			MatchPattern:    `\b(skip(ping)? (the )?tests?|disabl(e|ed|ing) (the )?tests?|t\.skip\()`,
			Action:          entity.ActionRequireJustification,
			Description:     "Test execution skipped or disabled",
			Remediation:     "Fix or quarantine the failing test with a tracked issue instead of skipping it",
			ApplicableRoles: []string{entity.RoleQA, entity.RoleDeveloper},
		},
	}
}

// DefaultKnowledge returns the reference entries attached to the default roles
func DefaultKnowledge() []*entity.KnowledgeEntry {
	return []*entity.KnowledgeEntry{
		{
			EntryID:         "kb-managed-compute",
			Title:           "Managed compute standard",
			Content:         "Workloads run on managed container platforms or serverless functions. Self-managed instances need an approved exception recorded with the architecture review.",
			Category:        entity.CategoryInfrastructure,
			Tags:            []string{"compute", "standards"},
			ApplicableRoles: []string{entity.RoleArchitect, entity.RoleDeveloper, entity.RoleDevOps},
			Version:         1,
		},
		{
			EntryID:         "kb-secret-handling",
			Title:           "Secret handling",
			Content:         "Credentials are injected at runtime from the secret manager. Never commit keys, tokens or passwords; rotate anything that leaked.",
			Category:        entity.CategorySecurity,
			Tags:            []string{"secrets", "security"},
			ApplicableRoles: []string{entity.RoleDeveloper, entity.RoleDevOps},
			Version:         1,
		},
		{
			EntryID:         "kb-release-checklist",
			Title:           "Release checklist",
			Content:         "All tests green, changelog updated, rollback plan written, deployment through the pipeline only.",
			Category:        entity.CategoryOperations,
			Tags:            []string{"release"},
			ApplicableRoles: []string{entity.RoleDevOps, entity.RoleQA},
			Version:         1,
		},
		{
			EntryID:         "kb-escalation",
			Title:           "Escalation path",
			Content:         "Critical violations and failed high-risk workflows are escalated to the on-call manager for approval or rollback.",
			Category:        entity.CategoryOperations,
			Tags:            []string{"escalation"},
			ApplicableRoles: []string{entity.RoleManager},
			Version:         1,
		},
	}
}
