package http

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/agent-orchestrator/internal/domain/entity"
)

const maxUploadBytes = 20 << 20

// AssessRequest is the body of POST /api/assessments
type AssessRequest struct {
	AgentID string `json:"agent_id"`
	RoleID  string `json:"role_id"`
	Content string `json:"content"`
}

// ListRoles handles GET /api/roles
func (h *Handlers) ListRoles(c *gin.Context) {
	roles, err := h.deps.Policy.ListRoles(c.Request.Context())
	if err != nil {
		h.fail(c, "Failed to list roles", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: roles})
}

// RegisterRole handles POST /api/roles. Registering an existing id replaces it.
func (h *Handlers) RegisterRole(c *gin.Context) {
	var role entity.Role
	if err := c.ShouldBindJSON(&role); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if err := h.deps.Policy.RegisterRole(c.Request.Context(), &role); err != nil {
		h.fail(c, "Failed to register role", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: role})
}

// GetRole handles GET /api/roles/:id
func (h *Handlers) GetRole(c *gin.Context) {
	role, err := h.deps.Policy.GetRole(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "Failed to get role", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: role})
}

// GetKnowledgeForRole handles GET /api/roles/:id/knowledge
func (h *Handlers) GetKnowledgeForRole(c *gin.Context) {
	entries, err := h.deps.Policy.GetKnowledgeForRole(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "Failed to get knowledge for role", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: entries})
}

// ListRules handles GET /api/rules?role_id=
func (h *Handlers) ListRules(c *gin.Context) {
	rules, err := h.deps.Policy.ListRules(c.Request.Context(), c.Query("role_id"))
	if err != nil {
		h.fail(c, "Failed to list rules", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: rules})
}

// RegisterRule handles POST /api/rules
func (h *Handlers) RegisterRule(c *gin.Context) {
	var rule entity.PolicyRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if err := h.deps.Policy.RegisterRule(c.Request.Context(), &rule); err != nil {
		h.fail(c, "Failed to register rule", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: rule})
}

// GetRule handles GET /api/rules/:id
func (h *Handlers) GetRule(c *gin.Context) {
	rule, err := h.deps.Policy.GetRule(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "Failed to get rule", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: rule})
}

// ListKnowledge handles GET /api/knowledge
func (h *Handlers) ListKnowledge(c *gin.Context) {
	entries, err := h.deps.Policy.ListKnowledge(c.Request.Context())
	if err != nil {
		h.fail(c, "Failed to list knowledge", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: entries})
}

// RegisterKnowledgeEntry handles POST /api/knowledge
func (h *Handlers) RegisterKnowledgeEntry(c *gin.Context) {
	var entry entity.KnowledgeEntry
	if err := c.ShouldBindJSON(&entry); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if err := h.deps.Policy.RegisterKnowledgeEntry(c.Request.Context(), &entry); err != nil {
		h.fail(c, "Failed to register knowledge entry", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: entry})
}

// GetKnowledgeEntry handles GET /api/knowledge/:id
func (h *Handlers) GetKnowledgeEntry(c *gin.Context) {
	entry, err := h.deps.Policy.GetKnowledgeEntry(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "Failed to get knowledge entry", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: entry})
}

// ImportKnowledgePDF handles POST /api/knowledge/import (multipart). The
// uploaded PDF's text becomes the entry content.
//
// Form fields: file, entry_id, title, category, roles (comma separated), tags.
func (h *Handlers) ImportKnowledgePDF(c *gin.Context) {
	if h.deps.Extractor == nil {
		c.JSON(http.StatusServiceUnavailable, Response{Success: false, Error: "document import is not enabled"})
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "file is required")
		return
	}
	if fh.Size > maxUploadBytes {
		badRequest(c, fmt.Sprintf("file exceeds %d bytes", maxUploadBytes))
		return
	}

	f, err := fh.Open()
	if err != nil {
		h.fail(c, "Failed to open upload", err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		h.fail(c, "Failed to read upload", err)
		return
	}

	text, err := h.deps.Extractor.ExtractText(data)
	if err != nil {
		h.logger.Error("PDF text extraction failed", "file", fh.Filename, "error", err)
		c.JSON(http.StatusUnprocessableEntity, Response{Success: false, Error: err.Error()})
		return
	}

	title := c.PostForm("title")
	if title == "" {
		title = strings.TrimSuffix(fh.Filename, ".pdf")
	}
	entry := &entity.KnowledgeEntry{
		EntryID:         c.PostForm("entry_id"),
		Title:           title,
		Content:         text,
		Category:        c.PostForm("category"),
		Tags:            splitList(c.PostForm("tags")),
		ApplicableRoles: splitList(c.PostForm("roles")),
	}
	if err := h.deps.Policy.RegisterKnowledgeEntry(c.Request.Context(), entry); err != nil {
		h.fail(c, "Failed to register imported entry", err)
		return
	}

	h.logger.Info("Knowledge entry imported from PDF",
		"entry_id", entry.EntryID,
		"file", fh.Filename,
		"chars", len(text))
	c.JSON(http.StatusOK, Response{Success: true, Data: entry})
}

// Assess handles POST /api/assessments
func (h *Handlers) Assess(c *gin.Context) {
	var req AssessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if req.RoleID == "" {
		badRequest(c, "role_id is required")
		return
	}

	assessment, err := h.deps.Policy.Assess(c.Request.Context(), req.AgentID, req.RoleID, req.Content)
	if err != nil {
		h.fail(c, "Assessment failed", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: assessment})
}

// GetAssessment handles GET /api/assessments/:id
func (h *Handlers) GetAssessment(c *gin.Context) {
	assessment, err := h.deps.Policy.GetAssessment(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "Failed to get assessment", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: assessment})
}

// ListAssessments handles GET /api/assessments?role_id=&agent_id=&limit=&offset=
func (h *Handlers) ListAssessments(c *gin.Context) {
	filter, ok := assessmentFilter(c, 50)
	if !ok {
		return
	}
	items, err := h.deps.Policy.ListAssessments(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, "Failed to list assessments", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: items})
}

// ExportAssessments handles GET /api/assessments/export with the same
// filters as the listing
func (h *Handlers) ExportAssessments(c *gin.Context) {
	if h.deps.Exporter == nil {
		c.JSON(http.StatusServiceUnavailable, Response{Success: false, Error: "export is not enabled"})
		return
	}
	filter, ok := assessmentFilter(c, 1000)
	if !ok {
		return
	}
	items, err := h.deps.Policy.ListAssessments(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, "Failed to list assessments", err)
		return
	}

	name := fmt.Sprintf("assessments_%s%s", time.Now().UTC().Format("20060102_150405"), h.deps.Exporter.FileExtension())
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Header("Content-Type", h.deps.Exporter.ContentType())
	c.Status(http.StatusOK)

	if err := h.deps.Exporter.Export(items, c.Writer); err != nil {
		h.logger.Error("Assessment export failed", "error", err)
	}
}

func assessmentFilter(c *gin.Context, defaultLimit int) (entity.AssessmentFilter, bool) {
	filter := entity.AssessmentFilter{
		RoleID:  c.Query("role_id"),
		AgentID: c.Query("agent_id"),
		Limit:   defaultLimit,
	}
	for _, q := range []struct {
		key string
		dst *int
	}{{"limit", &filter.Limit}, {"offset", &filter.Offset}} {
		raw := c.Query(q.key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			badRequest(c, "invalid "+q.key)
			return filter, false
		}
		*q.dst = n
	}
	return filter, true
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
