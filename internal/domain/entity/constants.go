package entity

// Role identifiers known to the system
const (
	RoleArchitect = "architect"
	RoleDeveloper = "developer"
	RoleDevOps    = "devops"
	RoleQA        = "qa"
	RoleManager   = "manager"
)

// DefaultRoleID receives any task no classifier could place
const DefaultRoleID = RoleDeveloper

// KnownRoleIDs lists every role in registry order
var KnownRoleIDs = []string{RoleArchitect, RoleDeveloper, RoleDevOps, RoleQA, RoleManager}

// Rule categories
const (
	CategoryInfrastructure = "infrastructure"
	CategorySecurity       = "security"
	CategoryArchitecture   = "architecture"
	CategoryQuality        = "quality"
	CategoryOperations     = "operations"
)

// Task priorities
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

// Task result statuses reported by workers
const (
	TaskStatusCompleted = "completed"
	TaskStatusFailed    = "failed"
)

// Hint keys accepted by CreateWorkflow
const (
	HintCategory = "category"
	HintRole     = "role"
	HintPriority = "priority"
	HintAgentID  = "agent_id"
	HintSource   = "source"
)
