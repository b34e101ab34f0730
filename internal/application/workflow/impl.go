package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/agent-orchestrator/internal/application/dispatcher"
	"github.com/garyjia/agent-orchestrator/internal/application/port"
	"github.com/garyjia/agent-orchestrator/internal/application/registry"
	"github.com/garyjia/agent-orchestrator/internal/domain/entity"
	"github.com/garyjia/agent-orchestrator/internal/domain/event"
	domainwf "github.com/garyjia/agent-orchestrator/internal/domain/workflow"
)

// DefaultStageTimeout bounds each worker call
const DefaultStageTimeout = 30 * time.Second

// PreflightMode controls the policy check run before each stage
type PreflightMode string

const (
	PreflightOff     PreflightMode = "off"
	PreflightAudit   PreflightMode = "audit"
	PreflightEnforce PreflightMode = "enforce"
)

// IsValid reports whether m is a known mode
func (m PreflightMode) IsValid() bool {
	return m == PreflightOff || m == PreflightAudit || m == PreflightEnforce
}

// orchestrator is the concrete implementation of Orchestrator
type orchestrator struct {
	registry   *registry.Registry
	worker     port.WorkerClient
	dispatcher dispatcher.Dispatcher
	logger     *zap.Logger

	checker   port.ComplianceChecker
	roles     port.RoleRepository
	preflight PreflightMode

	selector RoleSelector

	stageTimeout time.Duration
	now          func() time.Time
	newID        func() string

	// mu guards workflows, cancelled and every field of the stored instances
	mu        sync.Mutex
	workflows map[string]*entity.WorkflowInstance
	cancelled map[string]bool
}

// Option configures the orchestrator
type Option func(*orchestrator)

// WithDispatcher sets the event dispatcher for emitting lifecycle events
func WithDispatcher(d dispatcher.Dispatcher) Option {
	return func(o *orchestrator) {
		o.dispatcher = d
	}
}

// WithStageTimeout bounds each worker call
func WithStageTimeout(d time.Duration) Option {
	return func(o *orchestrator) {
		if d > 0 {
			o.stageTimeout = d
		}
	}
}

// WithPreflight assesses each stage's task text before dispatch. roles is
// used to look up approval requirements and may be nil.
func WithPreflight(mode PreflightMode, checker port.ComplianceChecker, roles port.RoleRepository) Option {
	return func(o *orchestrator) {
		o.preflight = mode
		o.checker = checker
		o.roles = roles
	}
}

// RoleSelector picks a registered role for free text. An explicit hint
// naming a registered role wins.
type RoleSelector interface {
	SelectRole(ctx context.Context, taskText, explicitHint string) string
}

// WithRoleSelector fills template stages whose role is not registered.
// Without it such a template is rejected with ErrUnknownRole.
func WithRoleSelector(s RoleSelector) Option {
	return func(o *orchestrator) {
		o.selector = s
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(o *orchestrator) {
		o.now = now
	}
}

// WithIDGenerator overrides workflow and task id generation
func WithIDGenerator(gen func() string) Option {
	return func(o *orchestrator) {
		o.newID = gen
	}
}

// NewOrchestrator creates an orchestrator dispatching stages to worker
func NewOrchestrator(reg *registry.Registry, worker port.WorkerClient, logger *zap.Logger, opts ...Option) Orchestrator {
	o := &orchestrator{
		registry:     reg,
		worker:       worker,
		logger:       logger,
		preflight:    PreflightOff,
		stageTimeout: DefaultStageTimeout,
		now:          func() time.Time { return time.Now().UTC() },
		newID:        uuid.NewString,
		workflows:    make(map[string]*entity.WorkflowInstance),
		cancelled:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.checker == nil {
		o.preflight = PreflightOff
	}
	return o
}

// CreateWorkflow plans a workflow from the task description
func (o *orchestrator) CreateWorkflow(ctx context.Context, taskDescription string, hints map[string]string) (*entity.WorkflowInstance, error) {
	taskDescription = strings.TrimSpace(taskDescription)
	if taskDescription == "" {
		return nil, fmt.Errorf("%w: task description cannot be empty", entity.ErrInvalidInput)
	}

	hints = copyHints(hints)
	tmpl := TemplateFor(taskDescription, hints)
	stages := make([]*entity.Stage, 0, len(tmpl.Stages))
	for i, spec := range tmpl.Stages {
		roleID, err := o.resolveRole(ctx, tmpl, spec, taskDescription, hints[entity.HintRole])
		if err != nil {
			return nil, err
		}
		stages = append(stages, &entity.Stage{
			SequenceNumber: i,
			RoleID:         roleID,
			Name:           spec.Name,
			Status:         domainwf.StatePending,
		})
	}

	wf := &entity.WorkflowInstance{
		WorkflowID:       o.newID(),
		TaskDescription:  taskDescription,
		Hints:            hints,
		Template:         tmpl.Name,
		Status:           domainwf.StatePlanning,
		Stages:           stages,
		EstimatedMinutes: tmpl.EstimatedMinutes(),
		CreatedAt:        o.now(),
	}

	o.mu.Lock()
	o.workflows[wf.WorkflowID] = wf
	snapshot := wf.Clone()
	o.mu.Unlock()

	o.logger.Info("Workflow created",
		zap.String("workflow_id", wf.WorkflowID),
		zap.String("template", tmpl.Name),
		zap.Strings("roles", wf.RoleSequence()))

	o.emit(ctx, event.TypeWorkflowCreated, wf.WorkflowID, map[string]interface{}{
		event.KeyTemplate: tmpl.Name,
	})
	return snapshot, nil
}

// resolveRole returns the template role when it is registered. Otherwise the
// selector places the stage, with the role hint taking precedence.
func (o *orchestrator) resolveRole(ctx context.Context, tmpl Template, spec StageSpec, taskDescription, roleHint string) (string, error) {
	if o.registry.Has(spec.RoleID) {
		return spec.RoleID, nil
	}
	if o.selector == nil {
		return "", fmt.Errorf("template %s stage %q: %w: %s", tmpl.Name, spec.Name, entity.ErrUnknownRole, spec.RoleID)
	}

	roleID := o.selector.SelectRole(ctx, spec.Name+": "+taskDescription, roleHint)
	if !o.registry.Has(roleID) {
		return "", fmt.Errorf("template %s stage %q: %w: %s", tmpl.Name, spec.Name, entity.ErrUnknownRole, roleID)
	}
	o.logger.Info("Stage role substituted",
		zap.String("template", tmpl.Name),
		zap.String("stage", spec.Name),
		zap.String("template_role", spec.RoleID),
		zap.String("role_id", roleID))
	return roleID, nil
}

// RunWorkflow drives the workflow to a terminal status
func (o *orchestrator) RunWorkflow(ctx context.Context, workflowID string) (*entity.WorkflowInstance, error) {
	o.mu.Lock()
	wf, ok := o.workflows[workflowID]
	if !ok {
		o.mu.Unlock()
		return nil, fmt.Errorf("workflow %s: %w", workflowID, entity.ErrNotFound)
	}
	if wf.Status != domainwf.StatePlanning {
		status := wf.Status
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: workflow %s is %s", entity.ErrWorkflowNotRunnable, workflowID, status)
	}
	if err := fireWorkflow(ctx, wf, domainwf.TriggerStart); err != nil {
		o.mu.Unlock()
		return nil, err
	}
	started := o.now()
	wf.StartedAt = &started
	o.mu.Unlock()

	o.logger.Info("Workflow started", zap.String("workflow_id", workflowID))
	o.emit(ctx, event.TypeWorkflowStarted, workflowID, nil)

	for i := range wf.Stages {
		if o.cancelAtBoundary(ctx, wf, i) {
			return o.snapshot(wf), nil
		}
		if !o.runStage(ctx, wf, i) {
			return o.snapshot(wf), nil
		}
	}

	o.mu.Lock()
	err := fireWorkflow(ctx, wf, domainwf.TriggerComplete)
	done := o.now()
	wf.CompletedAt = &done
	delete(o.cancelled, workflowID)
	o.mu.Unlock()
	if err != nil {
		return nil, err
	}

	o.logger.Info("Workflow completed",
		zap.String("workflow_id", workflowID),
		zap.Duration("duration", done.Sub(started)))
	o.emit(ctx, event.TypeWorkflowCompleted, workflowID, map[string]interface{}{
		event.KeyDuration: done.Sub(started).Seconds(),
	})
	return o.snapshot(wf), nil
}

// cancelAtBoundary fails stage i and the workflow when cancellation was
// requested. It reports whether the workflow stopped.
func (o *orchestrator) cancelAtBoundary(ctx context.Context, wf *entity.WorkflowInstance, i int) bool {
	o.mu.Lock()
	if !o.cancelled[wf.WorkflowID] {
		o.mu.Unlock()
		return false
	}
	o.cancelLocked(ctx, wf, i)
	o.mu.Unlock()

	o.logger.Info("Workflow cancelled",
		zap.String("workflow_id", wf.WorkflowID),
		zap.Int("stage", i))
	o.emit(ctx, event.TypeWorkflowCancelled, wf.WorkflowID, map[string]interface{}{
		event.KeySequence: i,
		event.KeyError:    entity.ErrCancelled.Error(),
	})
	return true
}

// cancelLocked marks stage i cancelled and fails the workflow. Caller holds mu.
func (o *orchestrator) cancelLocked(ctx context.Context, wf *entity.WorkflowInstance, i int) {
	stage := wf.Stages[i]
	if err := fireStage(ctx, stage, domainwf.TriggerCancel); err != nil {
		o.logger.Error("Failed to cancel stage", zap.String("workflow_id", wf.WorkflowID), zap.Error(err))
	}
	stage.Error = entity.ErrCancelled.Error()
	now := o.now()
	stage.CompletedAt = &now

	if err := fireWorkflow(ctx, wf, domainwf.TriggerCancel); err != nil {
		o.logger.Error("Failed to cancel workflow", zap.String("workflow_id", wf.WorkflowID), zap.Error(err))
	}
	wf.CompletedAt = &now
	delete(o.cancelled, wf.WorkflowID)
}

// runStage executes stage i and reports whether it completed
func (o *orchestrator) runStage(ctx context.Context, wf *entity.WorkflowInstance, i int) bool {
	o.mu.Lock()
	stage := wf.Stages[i]
	for _, prior := range wf.Stages[:i] {
		if prior.Status != domainwf.StateCompleted {
			o.mu.Unlock()
			o.failWorkflow(ctx, wf, i, fmt.Errorf("stage %d is %s", prior.SequenceNumber, prior.Status))
			return false
		}
	}
	if err := fireStage(ctx, stage, domainwf.TriggerStart); err != nil {
		o.mu.Unlock()
		o.failWorkflow(ctx, wf, i, err)
		return false
	}
	started := o.now()
	stage.StartedAt = &started
	task := o.buildTask(wf, stage)
	o.mu.Unlock()

	log := o.logger.With(
		zap.String("workflow_id", wf.WorkflowID),
		zap.Int("stage", i),
		zap.String("role_id", stage.RoleID))
	log.Info("Stage started", zap.String("stage_name", stage.Name))
	o.emit(ctx, event.TypeStageStarted, wf.WorkflowID, stagePayload(stage))

	if err := o.runPreflight(ctx, wf, stage, task.Task); err != nil {
		log.Warn("Stage blocked by policy", zap.Error(err))
		o.failWorkflow(ctx, wf, i, err)
		return false
	}

	result, err := o.execute(ctx, stage.RoleID, task)
	if err == nil && !result.Succeeded() {
		msg := result.Error
		if msg == "" {
			msg = fmt.Sprintf("worker reported status %q", result.Status)
		}
		err = errors.New(msg)
	}
	if err != nil {
		log.Error("Stage failed", zap.Error(err))
		o.failWorkflow(ctx, wf, i, err)
		return false
	}

	o.mu.Lock()
	if err := fireStage(ctx, stage, domainwf.TriggerComplete); err != nil {
		o.mu.Unlock()
		o.failWorkflow(ctx, wf, i, err)
		return false
	}
	done := o.now()
	stage.CompletedAt = &done
	stage.Result = result.Result
	payload := stagePayload(stage)
	o.mu.Unlock()

	payload[event.KeyDuration] = done.Sub(started).Seconds()
	log.Info("Stage completed", zap.Duration("duration", done.Sub(started)))
	o.emit(ctx, event.TypeStageCompleted, wf.WorkflowID, payload)
	return true
}

func (o *orchestrator) execute(ctx context.Context, roleID string, task *entity.Task) (*entity.TaskResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.stageTimeout)
	defer cancel()

	result, err := o.worker.Execute(callCtx, roleID, task)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, entity.ErrTimeout) {
			err = fmt.Errorf("%w: %v", entity.ErrTimeout, err)
		}
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("%w: empty worker response", entity.ErrTransport)
	}
	return result, nil
}

// runPreflight assesses the stage task for its role. Only enforce mode with
// a blocking violation returns an error.
func (o *orchestrator) runPreflight(ctx context.Context, wf *entity.WorkflowInstance, stage *entity.Stage, content string) error {
	if o.preflight == PreflightOff {
		return nil
	}

	agentID := wf.Hints[entity.HintAgentID]
	if agentID == "" {
		agentID = "workflow:" + wf.WorkflowID
	}

	assessment, err := o.checker.Assess(ctx, agentID, stage.RoleID, content)
	if err != nil {
		// the audit trail is unavailable; the stage still runs
		o.logger.Error("Pre-flight assessment failed",
			zap.String("workflow_id", wf.WorkflowID),
			zap.String("role_id", stage.RoleID),
			zap.Error(err))
		return nil
	}

	o.mu.Lock()
	stage.AssessmentID = assessment.AssessmentID
	o.mu.Unlock()

	if assessment.Passed {
		return nil
	}

	if o.requiresApproval(ctx, stage.RoleID) {
		o.emit(ctx, event.TypeApprovalRequired, wf.WorkflowID, map[string]interface{}{
			event.KeyRoleID:       stage.RoleID,
			event.KeyStageName:    stage.Name,
			event.KeySequence:     stage.SequenceNumber,
			event.KeyAssessmentID: assessment.AssessmentID,
			event.KeyViolations:   assessment.Summary.Total,
		})
	}

	if o.preflight == PreflightEnforce && assessment.HasBlocking() {
		return fmt.Errorf("%w: assessment %s", entity.ErrPolicyBlocked, assessment.AssessmentID)
	}
	return nil
}

func (o *orchestrator) requiresApproval(ctx context.Context, roleID string) bool {
	if o.roles == nil {
		return false
	}
	role, err := o.roles.GetByID(ctx, roleID)
	if err != nil {
		if !errors.Is(err, entity.ErrNotFound) {
			o.logger.Warn("Failed to load role", zap.String("role_id", roleID), zap.Error(err))
		}
		return false
	}
	return role.ApprovalRequired
}

// failWorkflow fails stage i and the workflow; later stages stay pending
func (o *orchestrator) failWorkflow(ctx context.Context, wf *entity.WorkflowInstance, i int, cause error) {
	o.mu.Lock()
	stage := wf.Stages[i]
	if stage.Status == domainwf.StatePending {
		// never dispatched: pending stages can only leave through cancel
		_ = fireStage(ctx, stage, domainwf.TriggerCancel)
	} else if err := fireStage(ctx, stage, domainwf.TriggerFail); err != nil {
		o.logger.Error("Failed to fail stage", zap.String("workflow_id", wf.WorkflowID), zap.Error(err))
	}
	now := o.now()
	stage.CompletedAt = &now
	stage.Error = cause.Error()

	if err := fireWorkflow(ctx, wf, domainwf.TriggerFail); err != nil {
		o.logger.Error("Failed to fail workflow", zap.String("workflow_id", wf.WorkflowID), zap.Error(err))
	}
	wf.CompletedAt = &now
	delete(o.cancelled, wf.WorkflowID)

	payload := stagePayload(stage)
	if stage.StartedAt != nil {
		payload[event.KeyDuration] = now.Sub(*stage.StartedAt).Seconds()
	}
	o.mu.Unlock()

	o.emit(ctx, event.TypeStageFailed, wf.WorkflowID, payload)
	o.emit(ctx, event.TypeWorkflowFailed, wf.WorkflowID, payload)
}

// GetWorkflow returns a snapshot of one workflow
func (o *orchestrator) GetWorkflow(ctx context.Context, workflowID string) (*entity.WorkflowInstance, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	wf, ok := o.workflows[workflowID]
	if !ok {
		return nil, fmt.Errorf("workflow %s: %w", workflowID, entity.ErrNotFound)
	}
	return wf.Clone(), nil
}

// ListActiveWorkflows returns in-progress workflows, oldest first
func (o *orchestrator) ListActiveWorkflows(ctx context.Context) ([]*entity.WorkflowInstance, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	active := make([]*entity.WorkflowInstance, 0)
	for _, wf := range o.workflows {
		if wf.Status == domainwf.StateInProgress {
			active = append(active, wf.Clone())
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})
	return active, nil
}

// ListWorkflows returns every workflow, newest first
func (o *orchestrator) ListWorkflows(ctx context.Context) ([]*entity.WorkflowInstance, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	all := make([]*entity.WorkflowInstance, 0, len(o.workflows))
	for _, wf := range o.workflows {
		all = append(all, wf.Clone())
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return all, nil
}

// CancelWorkflow fails a planned workflow immediately. A running workflow
// stops before its next stage; the in-flight stage is allowed to finish.
func (o *orchestrator) CancelWorkflow(ctx context.Context, workflowID string) error {
	o.mu.Lock()
	wf, ok := o.workflows[workflowID]
	if !ok {
		o.mu.Unlock()
		return fmt.Errorf("workflow %s: %w", workflowID, entity.ErrNotFound)
	}

	switch wf.Status {
	case domainwf.StatePlanning:
		o.cancelLocked(ctx, wf, 0)
		o.mu.Unlock()
		o.logger.Info("Workflow cancelled before start", zap.String("workflow_id", workflowID))
		o.emit(ctx, event.TypeWorkflowCancelled, workflowID, map[string]interface{}{
			event.KeySequence: 0,
			event.KeyError:    entity.ErrCancelled.Error(),
		})
		return nil
	case domainwf.StateInProgress:
		o.cancelled[workflowID] = true
		o.mu.Unlock()
		o.logger.Info("Workflow cancellation requested", zap.String("workflow_id", workflowID))
		return nil
	default:
		status := wf.Status
		o.mu.Unlock()
		return fmt.Errorf("%w: workflow %s is %s", entity.ErrWorkflowNotRunnable, workflowID, status)
	}
}

// buildTask assembles the worker request. Caller holds mu.
func (o *orchestrator) buildTask(wf *entity.WorkflowInstance, stage *entity.Stage) *entity.Task {
	priority := wf.Hints[entity.HintPriority]
	if priority == "" {
		priority = entity.PriorityNormal
	}

	previous := make(map[string]interface{}, stage.SequenceNumber)
	for _, prior := range wf.Stages[:stage.SequenceNumber] {
		if prior.Result != nil {
			previous[prior.Name] = prior.Result
		}
	}

	return &entity.Task{
		TaskID:   o.newID(),
		Task:     fmt.Sprintf("%s: %s", stage.Name, wf.TaskDescription),
		Priority: priority,
		Context: map[string]interface{}{
			"workflow_id":      wf.WorkflowID,
			"stage":            stage.Name,
			"sequence_number":  stage.SequenceNumber,
			"template":         wf.Template,
			"previous_results": previous,
		},
	}
}

func (o *orchestrator) snapshot(wf *entity.WorkflowInstance) *entity.WorkflowInstance {
	o.mu.Lock()
	defer o.mu.Unlock()
	return wf.Clone()
}

func (o *orchestrator) emit(ctx context.Context, eventType event.Type, workflowID string, payload map[string]interface{}) {
	if o.dispatcher == nil {
		return
	}
	o.dispatcher.DispatchAsync(ctx, event.NewEvent(eventType, workflowID, payload))
}

func fireWorkflow(ctx context.Context, wf *entity.WorkflowInstance, trigger domainwf.Trigger) error {
	m := domainwf.NewWorkflowMachine(wf.Status)
	if err := m.Fire(ctx, trigger); err != nil {
		return fmt.Errorf("workflow %s: %w", wf.WorkflowID, err)
	}
	wf.Status = m.State()
	return nil
}

func fireStage(ctx context.Context, stage *entity.Stage, trigger domainwf.Trigger) error {
	m := domainwf.NewStageMachine(stage.Status)
	if err := m.Fire(ctx, trigger); err != nil {
		return fmt.Errorf("stage %d: %w", stage.SequenceNumber, err)
	}
	stage.Status = m.State()
	return nil
}

func stagePayload(stage *entity.Stage) map[string]interface{} {
	p := map[string]interface{}{
		event.KeyRoleID:    stage.RoleID,
		event.KeyStageName: stage.Name,
		event.KeySequence:  stage.SequenceNumber,
	}
	if stage.Error != "" {
		p[event.KeyError] = stage.Error
	}
	return p
}

func copyHints(hints map[string]string) map[string]string {
	out := make(map[string]string, len(hints))
	for k, v := range hints {
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return out
}
