package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/agent-orchestrator/internal/application/dispatcher"
	"github.com/garyjia/agent-orchestrator/internal/application/registry"
	"github.com/garyjia/agent-orchestrator/internal/domain/entity"
	"github.com/garyjia/agent-orchestrator/internal/domain/event"
	domainwf "github.com/garyjia/agent-orchestrator/internal/domain/workflow"
)

// Mock implementations

type fakeWorker struct {
	mu    sync.Mutex
	calls []string
	fn    func(ctx context.Context, roleID string, task *entity.Task) (*entity.TaskResult, error)
}

func (f *fakeWorker) Execute(ctx context.Context, roleID string, task *entity.Task) (*entity.TaskResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, roleID)
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(ctx, roleID, task)
	}
	return completed(task), nil
}

func (f *fakeWorker) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func completed(task *entity.Task) *entity.TaskResult {
	result, _ := json.Marshal(map[string]string{"summary": "done " + task.Task})
	return &entity.TaskResult{TaskID: task.TaskID, Status: entity.TaskStatusCompleted, Result: result}
}

type fakeChecker struct {
	mu       sync.Mutex
	verdicts map[string]*entity.Assessment
	seen     []string
}

func (f *fakeChecker) Assess(ctx context.Context, agentID, roleID, content string) (*entity.Assessment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, agentID+"/"+roleID)
	if a, ok := f.verdicts[roleID]; ok {
		cp := *a
		return &cp, nil
	}
	return &entity.Assessment{AssessmentID: "pass-" + roleID, Passed: true}, nil
}

type fakeRoles struct {
	roles map[string]*entity.Role
}

func (f *fakeRoles) Upsert(ctx context.Context, role *entity.Role) error { return nil }

func (f *fakeRoles) GetByID(ctx context.Context, roleID string) (*entity.Role, error) {
	if r, ok := f.roles[roleID]; ok {
		return r, nil
	}
	return nil, entity.ErrNotFound
}

func (f *fakeRoles) List(ctx context.Context) ([]*entity.Role, error) { return nil, nil }

type eventLog struct {
	mu     sync.Mutex
	events []*event.Event
}

func (l *eventLog) handle(ctx context.Context, evt *event.Event) error {
	l.mu.Lock()
	l.events = append(l.events, evt)
	l.mu.Unlock()
	return nil
}

func (l *eventLog) types() []event.Type {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]event.Type, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.Type)
	}
	return out
}

func newTestOrchestrator(t *testing.T, worker *fakeWorker, opts ...Option) Orchestrator {
	t.Helper()
	return NewOrchestrator(registry.Default(nil), worker, zap.NewNop(), opts...)
}

func stageStatuses(wf *entity.WorkflowInstance) []domainwf.State {
	out := make([]domainwf.State, len(wf.Stages))
	for i, s := range wf.Stages {
		out[i] = s.Status
	}
	return out
}

// Tests

func TestSelectTemplate(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		want  string
		roles []string
	}{
		{"feature", "Implement user login feature", TemplateFeature,
			[]string{entity.RoleArchitect, entity.RoleDeveloper, entity.RoleQA, entity.RoleDevOps}},
		{"bug", "Fix crash on empty cart", TemplateBug,
			[]string{entity.RoleDeveloper, entity.RoleDeveloper, entity.RoleQA, entity.RoleDevOps}},
		{"feature wins over bug", "Implement the fix for bug 42", TemplateFeature,
			[]string{entity.RoleArchitect, entity.RoleDeveloper, entity.RoleQA, entity.RoleDevOps}},
		{"default", "Review quarterly cloud costs", TemplateDefault,
			[]string{entity.RoleArchitect, entity.RoleDeveloper, entity.RoleQA}},
		{"case insensitive", "BUGFIX for login", TemplateBug,
			[]string{entity.RoleDeveloper, entity.RoleDeveloper, entity.RoleQA, entity.RoleDevOps}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl := SelectTemplate(tt.text)
			assert.Equal(t, tt.want, tmpl.Name)
			roles := make([]string, len(tmpl.Stages))
			for i, s := range tmpl.Stages {
				roles[i] = s.RoleID
			}
			assert.Equal(t, tt.roles, roles)
			assert.Equal(t, len(tt.roles)*15, tmpl.EstimatedMinutes())

			// deterministic
			assert.Equal(t, tmpl, SelectTemplate(tt.text))
		})
	}
}

func TestCreateWorkflow(t *testing.T) {
	orch := newTestOrchestrator(t, &fakeWorker{})
	ctx := context.Background()

	wf, err := orch.CreateWorkflow(ctx, "Implement user login feature", map[string]string{"Priority": "high"})
	require.NoError(t, err)

	assert.NotEmpty(t, wf.WorkflowID)
	assert.Equal(t, domainwf.StatePlanning, wf.Status)
	assert.Equal(t, TemplateFeature, wf.Template)
	assert.Equal(t, 60, wf.EstimatedMinutes)
	assert.Equal(t, "high", wf.Hints[entity.HintPriority])
	require.Len(t, wf.Stages, 4)

	names := []string{"Architecture Design", "Implementation", "Testing", "Deployment"}
	for i, s := range wf.Stages {
		assert.Equal(t, i, s.SequenceNumber)
		assert.Equal(t, names[i], s.Name)
		assert.Equal(t, domainwf.StatePending, s.Status)
	}
}

func TestCreateWorkflow_InvalidInput(t *testing.T) {
	orch := newTestOrchestrator(t, &fakeWorker{})
	ctx := context.Background()

	for _, text := range []string{"", "   \n\t"} {
		_, err := orch.CreateWorkflow(ctx, text, nil)
		assert.ErrorIs(t, err, entity.ErrInvalidInput)
	}

	all, err := orch.ListWorkflows(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreateWorkflow_UnregisteredRole(t *testing.T) {
	reg, err := registry.New(registry.Entry{RoleID: entity.RoleDeveloper, Name: "Developer"})
	require.NoError(t, err)
	orch := NewOrchestrator(reg, &fakeWorker{}, zap.NewNop())

	_, err = orch.CreateWorkflow(context.Background(), "Implement search feature", nil)
	assert.ErrorIs(t, err, entity.ErrUnknownRole)
}

func TestTemplateFor(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		category string
		want     string
	}{
		{"bug category overrides plain text", "Login page broken on Safari", "bug", TemplateBug},
		{"feature category overrides bug wording", "Fix the onboarding flow", "Feature", TemplateFeature},
		{"bugfix category", "Safari layout", "bugfix", TemplateBug},
		{"unrelated category falls back to text", "Implement SSO", "security", TemplateFeature},
		{"no category", "Review quarterly cloud costs", "", TemplateDefault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hints := map[string]string{}
			if tt.category != "" {
				hints[entity.HintCategory] = tt.category
			}
			assert.Equal(t, tt.want, TemplateFor(tt.text, hints).Name)
		})
	}
}

func TestCreateWorkflow_CategoryHint(t *testing.T) {
	orch := newTestOrchestrator(t, &fakeWorker{})

	wf, err := orch.CreateWorkflow(context.Background(), "Login page broken on Safari",
		map[string]string{"Category": "bug"})
	require.NoError(t, err)

	assert.Equal(t, TemplateBug, wf.Template)
	assert.Equal(t, []string{entity.RoleDeveloper, entity.RoleDeveloper, entity.RoleQA, entity.RoleDevOps}, wf.RoleSequence())
}

type fakeSelector struct {
	mu    sync.Mutex
	role  string
	hints []string
}

func (f *fakeSelector) SelectRole(ctx context.Context, taskText, explicitHint string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hints = append(f.hints, explicitHint)
	if explicitHint != "" {
		return explicitHint
	}
	return f.role
}

func TestCreateWorkflow_RoleHintFillsUnregisteredStage(t *testing.T) {
	reg, err := registry.New(
		registry.Entry{RoleID: entity.RoleArchitect},
		registry.Entry{RoleID: entity.RoleDeveloper},
		registry.Entry{RoleID: entity.RoleQA},
	)
	require.NoError(t, err)
	sel := &fakeSelector{role: entity.RoleQA}
	orch := NewOrchestrator(reg, &fakeWorker{}, zap.NewNop(), WithRoleSelector(sel))
	ctx := context.Background()

	wf, err := orch.CreateWorkflow(ctx, "Implement search feature", map[string]string{entity.HintRole: entity.RoleDeveloper})
	require.NoError(t, err)
	assert.Equal(t, []string{entity.RoleArchitect, entity.RoleDeveloper, entity.RoleQA, entity.RoleDeveloper}, wf.RoleSequence())
	assert.Equal(t, []string{entity.RoleDeveloper}, sel.hints, "only the devops stage needs a substitute")

	wf, err = orch.CreateWorkflow(ctx, "Implement search feature", nil)
	require.NoError(t, err)
	assert.Equal(t, entity.RoleQA, wf.Stages[3].RoleID)
}

func TestCreateWorkflow_SelectorReturningUnknownRole(t *testing.T) {
	reg, err := registry.New(registry.Entry{RoleID: entity.RoleDeveloper})
	require.NoError(t, err)
	orch := NewOrchestrator(reg, &fakeWorker{}, zap.NewNop(), WithRoleSelector(&fakeSelector{role: "intern"}))

	_, err = orch.CreateWorkflow(context.Background(), "Implement search feature", nil)
	assert.ErrorIs(t, err, entity.ErrUnknownRole)
}

func TestRunWorkflow_AllStagesSucceed(t *testing.T) {
	worker := &fakeWorker{}
	events := &eventLog{}
	d := dispatcher.NewDispatcher()
	d.Subscribe(dispatcher.AllEvents, events.handle)

	orch := newTestOrchestrator(t, worker, WithDispatcher(d))
	ctx := context.Background()

	wf, err := orch.CreateWorkflow(ctx, "Implement user login feature", nil)
	require.NoError(t, err)

	final, err := orch.RunWorkflow(ctx, wf.WorkflowID)
	require.NoError(t, err)
	require.NoError(t, d.Close())

	assert.Equal(t, domainwf.StateCompleted, final.Status)
	assert.NotNil(t, final.StartedAt)
	assert.NotNil(t, final.CompletedAt)
	for _, s := range final.Stages {
		assert.Equal(t, domainwf.StateCompleted, s.Status, s.Name)
		assert.NotEmpty(t, s.Result)
		assert.Empty(t, s.Error)
	}
	assert.Equal(t, []string{entity.RoleArchitect, entity.RoleDeveloper, entity.RoleQA, entity.RoleDevOps}, worker.Calls())

	// the snapshot taken at creation is not mutated by the run
	assert.Equal(t, domainwf.StatePlanning, wf.Status)

	types := events.types()
	assert.Contains(t, types, event.TypeWorkflowCreated)
	assert.Contains(t, types, event.TypeWorkflowStarted)
	assert.Contains(t, types, event.TypeWorkflowCompleted)
	assert.NotContains(t, types, event.TypeWorkflowFailed)
}

func TestRunWorkflow_PassesContextToWorkers(t *testing.T) {
	var mu sync.Mutex
	var tasks []*entity.Task
	worker := &fakeWorker{fn: func(ctx context.Context, roleID string, task *entity.Task) (*entity.TaskResult, error) {
		mu.Lock()
		tasks = append(tasks, task)
		mu.Unlock()
		return completed(task), nil
	}}
	orch := newTestOrchestrator(t, worker)
	ctx := context.Background()

	wf, err := orch.CreateWorkflow(ctx, "Fix login bug", map[string]string{entity.HintPriority: entity.PriorityHigh})
	require.NoError(t, err)
	_, err = orch.RunWorkflow(ctx, wf.WorkflowID)
	require.NoError(t, err)

	require.Len(t, tasks, 4)
	assert.Equal(t, "Bug Analysis: Fix login bug", tasks[0].Task)
	assert.Equal(t, entity.PriorityHigh, tasks[0].Priority)
	assert.Equal(t, wf.WorkflowID, tasks[0].Context["workflow_id"])

	prev, ok := tasks[1].Context["previous_results"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, prev, "Bug Analysis")
}

func TestRunWorkflow_HaltsOnFailure(t *testing.T) {
	tests := []struct {
		name    string
		respond func(task *entity.Task) (*entity.TaskResult, error)
		errText string
	}{
		{
			name: "transport error",
			respond: func(task *entity.Task) (*entity.TaskResult, error) {
				return nil, fmt.Errorf("%w: connection refused", entity.ErrTransport)
			},
			errText: "connection refused",
		},
		{
			name: "worker reports failure",
			respond: func(task *entity.Task) (*entity.TaskResult, error) {
				return &entity.TaskResult{TaskID: task.TaskID, Status: entity.TaskStatusFailed, Error: "compile error"}, nil
			},
			errText: "compile error",
		},
		{
			name: "unknown status",
			respond: func(task *entity.Task) (*entity.TaskResult, error) {
				return &entity.TaskResult{TaskID: task.TaskID, Status: "working"}, nil
			},
			errText: "working",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			worker := &fakeWorker{fn: func(ctx context.Context, roleID string, task *entity.Task) (*entity.TaskResult, error) {
				if roleID == entity.RoleDeveloper {
					return tt.respond(task)
				}
				return completed(task), nil
			}}
			orch := newTestOrchestrator(t, worker)
			ctx := context.Background()

			wf, err := orch.CreateWorkflow(ctx, "Implement user login feature", nil)
			require.NoError(t, err)
			final, err := orch.RunWorkflow(ctx, wf.WorkflowID)
			require.NoError(t, err)

			assert.Equal(t, domainwf.StateFailed, final.Status)
			assert.Equal(t, []domainwf.State{
				domainwf.StateCompleted,
				domainwf.StateFailed,
				domainwf.StatePending,
				domainwf.StatePending,
			}, stageStatuses(final))
			assert.Contains(t, final.Stages[1].Error, tt.errText)
			assert.Equal(t, final.Stages[1], final.FailedStage())
			assert.Equal(t, []string{entity.RoleArchitect, entity.RoleDeveloper}, worker.Calls())

			// terminal workflows cannot be resumed
			_, err = orch.RunWorkflow(ctx, wf.WorkflowID)
			assert.ErrorIs(t, err, entity.ErrWorkflowNotRunnable)
		})
	}
}

func TestRunWorkflow_Timeout(t *testing.T) {
	worker := &fakeWorker{fn: func(ctx context.Context, roleID string, task *entity.Task) (*entity.TaskResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	orch := newTestOrchestrator(t, worker, WithStageTimeout(20*time.Millisecond))
	ctx := context.Background()

	wf, err := orch.CreateWorkflow(ctx, "Review quarterly cloud costs", nil)
	require.NoError(t, err)
	final, err := orch.RunWorkflow(ctx, wf.WorkflowID)
	require.NoError(t, err)

	assert.Equal(t, domainwf.StateFailed, final.Status)
	assert.Equal(t, domainwf.StateFailed, final.Stages[0].Status)
	assert.Contains(t, final.Stages[0].Error, entity.ErrTimeout.Error())
	assert.Equal(t, domainwf.StatePending, final.Stages[1].Status)
}

func TestRunWorkflow_NotFound(t *testing.T) {
	orch := newTestOrchestrator(t, &fakeWorker{})
	_, err := orch.RunWorkflow(context.Background(), "missing")
	assert.ErrorIs(t, err, entity.ErrNotFound)

	_, err = orch.GetWorkflow(context.Background(), "missing")
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestCancelWorkflow_BeforeStart(t *testing.T) {
	worker := &fakeWorker{}
	orch := newTestOrchestrator(t, worker)
	ctx := context.Background()

	wf, err := orch.CreateWorkflow(ctx, "Implement user login feature", nil)
	require.NoError(t, err)
	require.NoError(t, orch.CancelWorkflow(ctx, wf.WorkflowID))

	got, err := orch.GetWorkflow(ctx, wf.WorkflowID)
	require.NoError(t, err)
	assert.Equal(t, domainwf.StateFailed, got.Status)
	assert.Equal(t, domainwf.StateFailed, got.Stages[0].Status)
	assert.Equal(t, entity.ErrCancelled.Error(), got.Stages[0].Error)
	assert.Equal(t, domainwf.StatePending, got.Stages[1].Status)

	_, err = orch.RunWorkflow(ctx, wf.WorkflowID)
	assert.ErrorIs(t, err, entity.ErrWorkflowNotRunnable)
	assert.ErrorIs(t, orch.CancelWorkflow(ctx, wf.WorkflowID), entity.ErrWorkflowNotRunnable)
	assert.Empty(t, worker.Calls())
}

func TestCancelWorkflow_AtStageBoundary(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	worker := &fakeWorker{fn: func(ctx context.Context, roleID string, task *entity.Task) (*entity.TaskResult, error) {
		if roleID == entity.RoleArchitect {
			close(entered)
			<-release
		}
		return completed(task), nil
	}}
	orch := newTestOrchestrator(t, worker)
	ctx := context.Background()

	wf, err := orch.CreateWorkflow(ctx, "Implement user login feature", nil)
	require.NoError(t, err)

	done := make(chan *entity.WorkflowInstance)
	go func() {
		final, _ := orch.RunWorkflow(ctx, wf.WorkflowID)
		done <- final
	}()

	<-entered
	active, err := orch.ListActiveWorkflows(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, wf.WorkflowID, active[0].WorkflowID)

	require.NoError(t, orch.CancelWorkflow(ctx, wf.WorkflowID))
	close(release)

	final := <-done
	assert.Equal(t, domainwf.StateFailed, final.Status)
	assert.Equal(t, []domainwf.State{
		domainwf.StateCompleted,
		domainwf.StateFailed,
		domainwf.StatePending,
		domainwf.StatePending,
	}, stageStatuses(final))
	assert.Equal(t, entity.ErrCancelled.Error(), final.Stages[1].Error)
	assert.Equal(t, []string{entity.RoleArchitect}, worker.Calls())

	active, err = orch.ListActiveWorkflows(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestRunWorkflow_Preflight(t *testing.T) {
	blocking := &entity.Assessment{
		AssessmentID: "asm-dev",
		Passed:       false,
		Violations:   []entity.Violation{{RuleID: "sec-hardcoded-secret", Action: entity.ActionBlock}},
		Summary:      entity.SeveritySummary{Total: 1, Critical: 1},
	}

	t.Run("enforce blocks the stage", func(t *testing.T) {
		checker := &fakeChecker{verdicts: map[string]*entity.Assessment{entity.RoleDeveloper: blocking}}
		worker := &fakeWorker{}
		orch := newTestOrchestrator(t, worker, WithPreflight(PreflightEnforce, checker, nil))
		ctx := context.Background()

		wf, err := orch.CreateWorkflow(ctx, "Implement user login feature", map[string]string{entity.HintAgentID: "agent-7"})
		require.NoError(t, err)
		final, err := orch.RunWorkflow(ctx, wf.WorkflowID)
		require.NoError(t, err)

		assert.Equal(t, domainwf.StateFailed, final.Status)
		assert.Equal(t, domainwf.StateFailed, final.Stages[1].Status)
		assert.Equal(t, "asm-dev", final.Stages[1].AssessmentID)
		assert.Contains(t, final.Stages[1].Error, entity.ErrPolicyBlocked.Error())
		assert.Equal(t, []string{entity.RoleArchitect}, worker.Calls())
		assert.Equal(t, []string{"agent-7/architect", "agent-7/developer"}, checker.seen)
	})

	t.Run("audit records only", func(t *testing.T) {
		checker := &fakeChecker{verdicts: map[string]*entity.Assessment{entity.RoleDeveloper: blocking}}
		orch := newTestOrchestrator(t, &fakeWorker{}, WithPreflight(PreflightAudit, checker, nil))
		ctx := context.Background()

		wf, err := orch.CreateWorkflow(ctx, "Implement user login feature", nil)
		require.NoError(t, err)
		final, err := orch.RunWorkflow(ctx, wf.WorkflowID)
		require.NoError(t, err)

		assert.Equal(t, domainwf.StateCompleted, final.Status)
		assert.Equal(t, "asm-dev", final.Stages[1].AssessmentID)
		assert.Equal(t, "pass-architect", final.Stages[0].AssessmentID)
	})

	t.Run("approval required raises an event", func(t *testing.T) {
		checker := &fakeChecker{verdicts: map[string]*entity.Assessment{entity.RoleDevOps: blocking}}
		roles := &fakeRoles{roles: map[string]*entity.Role{
			entity.RoleDevOps: {RoleID: entity.RoleDevOps, ApprovalRequired: true},
		}}
		events := &eventLog{}
		d := dispatcher.NewDispatcher()
		d.Subscribe(event.TypeApprovalRequired, events.handle)

		orch := newTestOrchestrator(t, &fakeWorker{},
			WithPreflight(PreflightAudit, checker, roles),
			WithDispatcher(d))
		ctx := context.Background()

		wf, err := orch.CreateWorkflow(ctx, "Implement user login feature", nil)
		require.NoError(t, err)
		_, err = orch.RunWorkflow(ctx, wf.WorkflowID)
		require.NoError(t, err)
		require.NoError(t, d.Close())

		require.Len(t, events.events, 1)
		assert.Equal(t, entity.RoleDevOps, events.events[0].GetPayloadString(event.KeyRoleID))
		assert.Equal(t, "asm-dev", events.events[0].GetPayloadString(event.KeyAssessmentID))
	})
}

func TestRunWorkflow_Concurrent(t *testing.T) {
	worker := &fakeWorker{fn: func(ctx context.Context, roleID string, task *entity.Task) (*entity.TaskResult, error) {
		time.Sleep(time.Millisecond)
		return completed(task), nil
	}}
	orch := newTestOrchestrator(t, worker)
	ctx := context.Background()

	const n = 8
	ids := make([]string, n)
	for i := range ids {
		wf, err := orch.CreateWorkflow(ctx, fmt.Sprintf("Implement feature %d", i), nil)
		require.NoError(t, err)
		ids[i] = wf.WorkflowID
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			final, err := orch.RunWorkflow(ctx, id)
			if err != nil {
				errs <- err
				return
			}
			if final.Status != domainwf.StateCompleted {
				errs <- errors.New(id + " ended " + final.Status.String())
			}
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	all, err := orch.ListWorkflows(ctx)
	require.NoError(t, err)
	assert.Len(t, all, n)
	assert.Len(t, worker.Calls(), n*4)
}

func TestRunWorkflow_StatusIsMonotonic(t *testing.T) {
	events := &eventLog{}
	d := dispatcher.NewDispatcher()
	d.Subscribe(dispatcher.AllEvents, events.handle)

	worker := &fakeWorker{fn: func(ctx context.Context, roleID string, task *entity.Task) (*entity.TaskResult, error) {
		if roleID == entity.RoleQA {
			return nil, fmt.Errorf("%w: 502", entity.ErrTransport)
		}
		return completed(task), nil
	}}
	orch := newTestOrchestrator(t, worker, WithDispatcher(d))
	ctx := context.Background()

	wf, err := orch.CreateWorkflow(ctx, "Implement user login feature", nil)
	require.NoError(t, err)
	_, err = orch.RunWorkflow(ctx, wf.WorkflowID)
	require.NoError(t, err)
	require.NoError(t, d.Close())

	var terminal []string
	for _, ty := range events.types() {
		if ty.IsTerminal() {
			terminal = append(terminal, ty.String())
		}
	}
	assert.Equal(t, []string{event.TypeWorkflowFailed.String()}, terminal)
	assert.False(t, strings.Contains(strings.Join(terminal, ","), "completed"))
}
