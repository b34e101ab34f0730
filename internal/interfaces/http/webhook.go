package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/go-github/v57/github"
	"golang.org/x/time/rate"

	"github.com/garyjia/agent-orchestrator/internal/domain/entity"
)

const maxWebhookBody = 1 << 20

// WorkflowCreator plans workflows from inbound tasks
type WorkflowCreator interface {
	CreateWorkflow(ctx context.Context, taskDescription string, hints map[string]string) (*entity.WorkflowInstance, error)
}

// WebhookConfig configures the GitHub triage webhook
type WebhookConfig struct {
	Secret string
	// RatePerSecond and Burst bound requests per client IP
	RatePerSecond float64
	Burst         int
	// AutoRun enqueues created workflows on the scheduler
	AutoRun bool
}

// WebhookHandler turns GitHub issue events into planned workflows
type WebhookHandler struct {
	config    WebhookConfig
	creator   WorkflowCreator
	scheduler Scheduler
	logger    Logger

	mu           sync.Mutex
	rateLimiters map[string]*rate.Limiter
	lastCleanup  time.Time
}

// NewWebhookHandler creates the handler. scheduler may be nil when AutoRun is off.
func NewWebhookHandler(config WebhookConfig, creator WorkflowCreator, scheduler Scheduler, logger Logger) *WebhookHandler {
	if config.RatePerSecond <= 0 {
		config.RatePerSecond = 1
	}
	if config.Burst <= 0 {
		config.Burst = 10
	}
	return &WebhookHandler{
		config:       config,
		creator:      creator,
		scheduler:    scheduler,
		logger:       logger,
		rateLimiters: make(map[string]*rate.Limiter),
		lastCleanup:  time.Now(),
	}
}

func (w *WebhookHandler) limiter(ip string) *rate.Limiter {
	w.mu.Lock()
	defer w.mu.Unlock()

	// Forget idle clients once an hour
	if time.Since(w.lastCleanup) > time.Hour {
		w.rateLimiters = make(map[string]*rate.Limiter)
		w.lastCleanup = time.Now()
	}

	l, ok := w.rateLimiters[ip]
	if !ok {
		l = rate.NewLimiter(rate.Limit(w.config.RatePerSecond), w.config.Burst)
		w.rateLimiters[ip] = l
	}
	return l
}

// Handle handles POST /webhooks/github
func (w *WebhookHandler) Handle(c *gin.Context) {
	ip := c.ClientIP()
	if !w.limiter(ip).Allow() {
		w.logger.Info("Webhook rate limit exceeded", "ip", ip)
		c.JSON(http.StatusTooManyRequests, Response{Success: false, Error: "rate limit exceeded"})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)

	payload, err := github.ValidatePayload(c.Request, []byte(w.config.Secret))
	if err != nil {
		w.logger.Info("Invalid webhook signature", "ip", ip, "error", err)
		c.JSON(http.StatusUnauthorized, Response{Success: false, Error: "invalid signature"})
		return
	}

	evt, err := github.ParseWebHook(github.WebHookType(c.Request), payload)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid payload"})
		return
	}

	switch e := evt.(type) {
	case *github.IssuesEvent:
		w.handleIssue(c, e)
	case *github.PingEvent:
		c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{"pong": true}})
	default:
		c.JSON(http.StatusAccepted, Response{Success: true, Data: gin.H{"ignored": github.WebHookType(c.Request)}})
	}
}

func (w *WebhookHandler) handleIssue(c *gin.Context, e *github.IssuesEvent) {
	action := e.GetAction()
	if action != "opened" && action != "reopened" {
		c.JSON(http.StatusAccepted, Response{Success: true, Data: gin.H{"ignored": "issues." + action}})
		return
	}

	description, hints := issueTask(e)
	wf, err := w.creator.CreateWorkflow(c.Request.Context(), description, hints)
	if err != nil {
		w.logger.Error("Failed to create workflow from issue",
			"repo", e.GetRepo().GetFullName(),
			"issue", e.GetIssue().GetNumber(),
			"error", err)
		c.JSON(statusFor(err), Response{Success: false, Error: err.Error()})
		return
	}

	w.logger.Info("Workflow created from issue",
		"workflow_id", wf.WorkflowID,
		"repo", e.GetRepo().GetFullName(),
		"issue", e.GetIssue().GetNumber(),
		"template", wf.Template)

	if w.config.AutoRun && w.scheduler != nil {
		if err := w.scheduler.Enqueue(wf.WorkflowID); err != nil {
			w.logger.Error("Failed to enqueue workflow", "workflow_id", wf.WorkflowID, "error", err)
		}
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: wf})
}

// issueTask builds the task text and hints for an issue. Labels are appended
// to the text so template selection sees "bug" and "feature" labels.
// "priority:<p>" and "role:<r>" labels become hints.
func issueTask(e *github.IssuesEvent) (string, map[string]string) {
	issue := e.GetIssue()
	hints := map[string]string{
		entity.HintSource:  "github",
		entity.HintAgentID: "github:" + e.GetSender().GetLogin(),
	}
	if url := issue.GetHTMLURL(); url != "" {
		hints["issue_url"] = url
	}

	var labels []string
	for _, l := range issue.Labels {
		name := strings.ToLower(strings.TrimSpace(l.GetName()))
		switch {
		case strings.HasPrefix(name, "priority:"):
			hints[entity.HintPriority] = strings.TrimPrefix(name, "priority:")
		case strings.HasPrefix(name, "role:"):
			hints[entity.HintRole] = strings.TrimPrefix(name, "role:")
		case name != "":
			labels = append(labels, name)
		}
	}
	if len(labels) > 0 {
		hints[entity.HintCategory] = labels[0]
	}

	var b strings.Builder
	b.WriteString(issue.GetTitle())
	if body := strings.TrimSpace(issue.GetBody()); body != "" {
		b.WriteString("\n\n")
		b.WriteString(body)
	}
	if len(labels) > 0 {
		fmt.Fprintf(&b, "\n\nLabels: %s", strings.Join(labels, ", "))
	}
	return b.String(), hints
}
