package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/agent-orchestrator/internal/domain/entity"
)

// ErrSchedulerStopped is returned by Enqueue once the scheduler is not running
var ErrSchedulerStopped = errors.New("scheduler not running")

// WorkflowRunner runs one planned workflow to completion
type WorkflowRunner interface {
	RunWorkflow(ctx context.Context, workflowID string) (*entity.WorkflowInstance, error)
}

// Scheduler runs each enqueued workflow in its own goroutine. The queue is
// only a handoff between Enqueue and the dispatch loop, so a slow workflow
// never holds back the ones behind it.
type Scheduler struct {
	runner WorkflowRunner
	logger *zap.Logger

	mu        sync.Mutex
	isRunning bool
	queue     chan string
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	inFlight  atomic.Int64
}

// NewScheduler creates a scheduler whose handoff queue holds queueSize ids
func NewScheduler(runner WorkflowRunner, queueSize int, logger *zap.Logger) *Scheduler {
	if queueSize < 1 {
		queueSize = 64
	}
	return &Scheduler{
		runner: runner,
		queue:  make(chan string, queueSize),
		logger: logger,
	}
}

// Name returns the worker name
func (s *Scheduler) Name() string {
	return "WorkflowScheduler"
}

// Start launches the dispatch loop
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return fmt.Errorf("workflow scheduler already running")
	}

	var runCtx context.Context
	runCtx, s.cancel = context.WithCancel(ctx)
	s.isRunning = true

	s.wg.Add(1)
	go s.loop(runCtx)

	s.logger.Info("WorkflowScheduler started", zap.Int("queue_size", cap(s.queue)))
	return nil
}

// Enqueue schedules a planned workflow. It does not block: a full queue is an
// error.
func (s *Scheduler) Enqueue(workflowID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return ErrSchedulerStopped
	}
	select {
	case s.queue <- workflowID:
		return nil
	default:
		return fmt.Errorf("scheduler queue full (%d)", cap(s.queue))
	}
}

// Stop cancels in-flight runs and waits for them to return. Workflows still
// queued are dropped and remain in planning.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()

	s.logger.Info("WorkflowScheduler stopped", zap.Int("dropped", len(s.queue)))
	return nil
}

// InFlight reports how many workflows are currently running
func (s *Scheduler) InFlight() int {
	return int(s.inFlight.Load())
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-s.queue:
			s.wg.Add(1)
			s.inFlight.Add(1)
			go func() {
				defer s.wg.Done()
				defer s.inFlight.Add(-1)
				s.run(ctx, id)
			}()
		}
	}
}

func (s *Scheduler) run(ctx context.Context, workflowID string) {
	wf, err := s.runner.RunWorkflow(ctx, workflowID)
	if err != nil {
		s.logger.Error("Scheduled workflow did not run",
			zap.String("workflow_id", workflowID),
			zap.Error(err))
		return
	}
	s.logger.Info("Scheduled workflow finished",
		zap.String("workflow_id", workflowID),
		zap.String("status", string(wf.Status)))
}
