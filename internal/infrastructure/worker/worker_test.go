package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/agent-orchestrator/internal/domain/entity"
	"github.com/garyjia/agent-orchestrator/internal/domain/workflow"
)

type stubWorker struct {
	name     string
	startErr error
	started  atomic.Bool
	stopped  atomic.Bool
	order    *[]string
	mu       *sync.Mutex
}

func (w *stubWorker) Name() string { return w.name }

func (w *stubWorker) Start(ctx context.Context) error {
	if w.startErr != nil {
		return w.startErr
	}
	w.started.Store(true)
	return nil
}

func (w *stubWorker) Stop() error {
	w.stopped.Store(true)
	w.mu.Lock()
	*w.order = append(*w.order, w.name)
	w.mu.Unlock()
	return nil
}

func TestManager_Lifecycle(t *testing.T) {
	var order []string
	var mu sync.Mutex
	a := &stubWorker{name: "a", order: &order, mu: &mu}
	b := &stubWorker{name: "b", order: &order, mu: &mu, startErr: errors.New("boom")}
	c := &stubWorker{name: "c", order: &order, mu: &mu}

	m := NewManager(zap.NewNop())
	m.Register(a)
	m.Register(b)
	m.Register(c)
	assert.Equal(t, 3, m.WorkerCount())

	require.NoError(t, m.StartAll(context.Background()))
	assert.True(t, m.IsRunning())
	assert.True(t, a.started.Load())
	assert.False(t, b.started.Load())
	assert.True(t, c.started.Load())

	assert.Error(t, m.StartAll(context.Background()))

	require.NoError(t, m.StopAll())
	assert.False(t, m.IsRunning())
	assert.Equal(t, []string{"c", "b", "a"}, order)

	require.NoError(t, m.StopAll())
}

type stubRunner struct {
	mu      sync.Mutex
	ran     []string
	started int
	block   chan struct{}
	err     error
}

func (r *stubRunner) RunWorkflow(ctx context.Context, id string) (*entity.WorkflowInstance, error) {
	r.mu.Lock()
	r.started++
	r.mu.Unlock()
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	r.mu.Lock()
	r.ran = append(r.ran, id)
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return &entity.WorkflowInstance{WorkflowID: id, Status: workflow.StateCompleted}, nil
}

func (r *stubRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ran)
}

func (r *stubRunner) startedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

func TestScheduler_RunsEnqueued(t *testing.T) {
	runner := &stubRunner{}
	s := NewScheduler(runner, 8, zap.NewNop())

	assert.ErrorIs(t, s.Enqueue("wf-0"), ErrSchedulerStopped)

	require.NoError(t, s.Start(context.Background()))
	for _, id := range []string{"wf-1", "wf-2", "wf-3"} {
		require.NoError(t, s.Enqueue(id))
	}

	assert.Eventually(t, func() bool { return runner.count() == 3 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())
	assert.ErrorIs(t, s.Enqueue("wf-4"), ErrSchedulerStopped)
}

func TestScheduler_BlockedWorkflowsDoNotHoldBackOthers(t *testing.T) {
	runner := &stubRunner{block: make(chan struct{})}
	s := NewScheduler(runner, 2, zap.NewNop())
	require.NoError(t, s.Start(context.Background()))

	// more blocked workflows than the handoff queue holds
	for i := 0; i < 6; i++ {
		id := fmt.Sprintf("wf-%d", i)
		require.Eventually(t, func() bool { return s.Enqueue(id) == nil }, time.Second, time.Millisecond)
	}

	assert.Eventually(t, func() bool { return runner.startedCount() == 6 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 6, s.InFlight())
	assert.Zero(t, runner.count())

	close(runner.block)
	assert.Eventually(t, func() bool { return runner.count() == 6 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return s.InFlight() == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())
}

func TestScheduler_StopCancelsInFlightRuns(t *testing.T) {
	runner := &stubRunner{block: make(chan struct{})}
	s := NewScheduler(runner, 4, zap.NewNop())
	require.NoError(t, s.Start(context.Background()))

	require.NoError(t, s.Enqueue("wf-1"))
	require.NoError(t, s.Enqueue("wf-2"))
	assert.Eventually(t, func() bool { return runner.startedCount() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop())
	assert.Zero(t, s.InFlight())
	assert.Zero(t, runner.count())
}

func TestScheduler_RunErrorIsLogged(t *testing.T) {
	runner := &stubRunner{err: entity.ErrWorkflowNotRunnable}
	s := NewScheduler(runner, 4, zap.NewNop())
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Enqueue("wf-1"))
	assert.Eventually(t, func() bool { return runner.count() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())
}

type stubChecker struct {
	mu   sync.Mutex
	down map[string]bool
}

func (c *stubChecker) Probe(ctx context.Context, role string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.down[role] {
		return entity.ErrTransport
	}
	return nil
}

type recorder struct {
	mu sync.Mutex
	up map[string]bool
}

func (r *recorder) SetWorkerUp(role string, up bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.up[role] = up
}

func TestProber_ProbeAll(t *testing.T) {
	checker := &stubChecker{down: map[string]bool{"qa": true}}
	rec := &recorder{up: map[string]bool{}}
	p := NewProber(checker, rec, []string{"architect", "qa"}, time.Hour, zap.NewNop())

	p.ProbeAll(context.Background())
	assert.Equal(t, map[string]bool{"architect": true, "qa": false}, p.Status())
	assert.Equal(t, map[string]bool{"architect": true, "qa": false}, rec.up)

	checker.mu.Lock()
	checker.down["qa"] = false
	checker.mu.Unlock()
	p.ProbeAll(context.Background())
	assert.True(t, p.Status()["qa"])
}

func TestProber_StartProbesImmediately(t *testing.T) {
	rec := &recorder{up: map[string]bool{}}
	p := NewProber(&stubChecker{}, rec, []string{"devops"}, time.Hour, zap.NewNop())

	require.NoError(t, p.Start(context.Background()))
	assert.Error(t, p.Start(context.Background()))
	assert.Eventually(t, func() bool { return p.Status()["devops"] }, time.Second, 5*time.Millisecond)
	require.NoError(t, p.Stop())
	require.NoError(t, p.Stop())
}
