package http

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/agent-orchestrator/internal/application/selector"
	"github.com/garyjia/agent-orchestrator/internal/application/workflow"
	"github.com/garyjia/agent-orchestrator/internal/domain/entity"
)

// PolicyEngine is the compliance engine surface used by the admin API
type PolicyEngine interface {
	RegisterRole(ctx context.Context, role *entity.Role) error
	RegisterRule(ctx context.Context, rule *entity.PolicyRule) error
	RegisterKnowledgeEntry(ctx context.Context, entry *entity.KnowledgeEntry) error
	Assess(ctx context.Context, agentID, roleID, content string) (*entity.Assessment, error)

	GetRole(ctx context.Context, roleID string) (*entity.Role, error)
	ListRoles(ctx context.Context) ([]*entity.Role, error)
	GetRule(ctx context.Context, ruleID string) (*entity.PolicyRule, error)
	ListRules(ctx context.Context, roleID string) ([]*entity.PolicyRule, error)
	GetKnowledgeEntry(ctx context.Context, entryID string) (*entity.KnowledgeEntry, error)
	ListKnowledge(ctx context.Context) ([]*entity.KnowledgeEntry, error)
	GetKnowledgeForRole(ctx context.Context, roleID string) ([]*entity.KnowledgeEntry, error)
	GetAssessment(ctx context.Context, assessmentID string) (*entity.Assessment, error)
	ListAssessments(ctx context.Context, filter entity.AssessmentFilter) ([]*entity.Assessment, error)
}

// RoleSelector picks a role for free text
type RoleSelector interface {
	Select(ctx context.Context, taskText, explicitHint string) selector.Selection
}

// Scheduler runs planned workflows in the background
type Scheduler interface {
	Enqueue(workflowID string) error
}

// ReportExporter renders assessments as a downloadable report
type ReportExporter interface {
	Export(assessments []*entity.Assessment, w io.Writer) error
	ContentType() string
	FileExtension() string
}

// TextExtractor turns an uploaded document into plain text
type TextExtractor interface {
	ExtractText(data []byte) (string, error)
}

// HealthReporter reports per-component health, "ok" or a reason
type HealthReporter interface {
	Health(ctx context.Context) map[string]string
}

// Dependencies groups what the handlers need. Only Orchestrator, Policy and
// Selector are required.
type Dependencies struct {
	Orchestrator workflow.Orchestrator
	Policy       PolicyEngine
	Selector     RoleSelector
	Scheduler    Scheduler
	Exporter     ReportExporter
	Extractor    TextExtractor
	Health       HealthReporter
	Version      string
}

// Handlers contains all HTTP request handlers
type Handlers struct {
	deps   Dependencies
	logger Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(deps Dependencies, logger Logger) *Handlers {
	if deps.Version == "" {
		deps.Version = "dev"
	}
	return &Handlers{deps: deps, logger: logger}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string            `json:"status"`
	Timestamp  string            `json:"timestamp"`
	Version    string            `json:"version"`
	Components map[string]string `json:"components,omitempty"`
}

// CreateWorkflowRequest is the body of POST /api/workflows
type CreateWorkflowRequest struct {
	TaskDescription string            `json:"task_description"`
	Hints           map[string]string `json:"hints"`
	AutoRun         bool              `json:"auto_run"`
}

// SelectRoleRequest is the body of POST /api/select-role
type SelectRoleRequest struct {
	Task string `json:"task"`
	Hint string `json:"hint"`
}

// HealthCheck handles GET /health. Any component not reporting "ok" turns
// the response into 503.
func (h *Handlers) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   h.deps.Version,
	}

	status := http.StatusOK
	if h.deps.Health != nil {
		resp.Components = h.deps.Health.Health(c.Request.Context())
		for _, state := range resp.Components {
			if state != "ok" {
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				break
			}
		}
	}

	c.JSON(status, Response{Success: status == http.StatusOK, Data: resp})
}

// SelectRole handles POST /api/select-role
func (h *Handlers) SelectRole(c *gin.Context) {
	var req SelectRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	sel := h.deps.Selector.Select(c.Request.Context(), req.Task, req.Hint)
	c.JSON(http.StatusOK, Response{Success: true, Data: sel})
}

// CreateWorkflow handles POST /api/workflows
func (h *Handlers) CreateWorkflow(c *gin.Context) {
	var req CreateWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	wf, err := h.deps.Orchestrator.CreateWorkflow(c.Request.Context(), req.TaskDescription, req.Hints)
	if err != nil {
		h.fail(c, "Failed to create workflow", err)
		return
	}

	if !req.AutoRun {
		c.JSON(http.StatusCreated, Response{Success: true, Data: wf})
		return
	}

	if h.deps.Scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, Response{
			Success: false,
			Data:    wf,
			Error:   "background scheduler is not enabled",
		})
		return
	}
	if err := h.deps.Scheduler.Enqueue(wf.WorkflowID); err != nil {
		h.logger.Error("Failed to enqueue workflow", "workflow_id", wf.WorkflowID, "error", err)
		c.JSON(http.StatusServiceUnavailable, Response{Success: false, Data: wf, Error: err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, Response{Success: true, Data: wf})
}

// ListWorkflows handles GET /api/workflows
func (h *Handlers) ListWorkflows(c *gin.Context) {
	wfs, err := h.deps.Orchestrator.ListWorkflows(c.Request.Context())
	if err != nil {
		h.fail(c, "Failed to list workflows", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: wfs})
}

// ListActiveWorkflows handles GET /api/workflows/active
func (h *Handlers) ListActiveWorkflows(c *gin.Context) {
	wfs, err := h.deps.Orchestrator.ListActiveWorkflows(c.Request.Context())
	if err != nil {
		h.fail(c, "Failed to list active workflows", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: wfs})
}

// GetWorkflow handles GET /api/workflows/:id
func (h *Handlers) GetWorkflow(c *gin.Context) {
	wf, err := h.deps.Orchestrator.GetWorkflow(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "Failed to get workflow", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: wf})
}

// RunWorkflow handles POST /api/workflows/:id/run. With ?async=true the run
// is handed to the scheduler and 202 is returned; otherwise the call blocks
// until the workflow is terminal.
func (h *Handlers) RunWorkflow(c *gin.Context) {
	id := c.Param("id")

	if strings.EqualFold(c.Query("async"), "true") {
		if _, err := h.deps.Orchestrator.GetWorkflow(c.Request.Context(), id); err != nil {
			h.fail(c, "Failed to get workflow", err)
			return
		}
		if h.deps.Scheduler == nil {
			c.JSON(http.StatusServiceUnavailable, Response{Success: false, Error: "background scheduler is not enabled"})
			return
		}
		if err := h.deps.Scheduler.Enqueue(id); err != nil {
			c.JSON(http.StatusServiceUnavailable, Response{Success: false, Error: err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, Response{Success: true, Data: gin.H{"workflow_id": id}})
		return
	}

	// A dropped client connection must not abort a half-run workflow
	ctx := context.WithoutCancel(c.Request.Context())
	wf, err := h.deps.Orchestrator.RunWorkflow(ctx, id)
	if err != nil {
		h.fail(c, "Failed to run workflow", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: wf})
}

// CancelWorkflow handles POST /api/workflows/:id/cancel
func (h *Handlers) CancelWorkflow(c *gin.Context) {
	id := c.Param("id")
	if err := h.deps.Orchestrator.CancelWorkflow(c.Request.Context(), id); err != nil {
		h.fail(c, "Failed to cancel workflow", err)
		return
	}

	wf, err := h.deps.Orchestrator.GetWorkflow(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "Failed to get workflow", err)
		return
	}
	c.JSON(http.StatusAccepted, Response{Success: true, Data: wf})
}
