package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// HealthChecker probes the worker serving a role
type HealthChecker interface {
	Probe(ctx context.Context, roleID string) error
}

// HealthRecorder receives probe results
type HealthRecorder interface {
	SetWorkerUp(roleID string, up bool)
}

// Prober periodically probes every role's worker endpoint
type Prober struct {
	checker  HealthChecker
	recorder HealthRecorder
	roles    []string
	interval time.Duration
	logger   *zap.Logger

	mu        sync.RWMutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
	status    map[string]bool
}

// NewProber creates a prober for the given roles
func NewProber(checker HealthChecker, recorder HealthRecorder, roles []string, interval time.Duration, logger *zap.Logger) *Prober {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Prober{
		checker:  checker,
		recorder: recorder,
		roles:    roles,
		interval: interval,
		logger:   logger,
		status:   make(map[string]bool, len(roles)),
	}
}

// Name returns the worker name
func (p *Prober) Name() string {
	return "EndpointProber"
}

// Start probes once immediately and then on every tick
func (p *Prober) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.isRunning {
		return fmt.Errorf("endpoint prober already running")
	}

	var runCtx context.Context
	runCtx, p.cancel = context.WithCancel(ctx)
	p.isRunning = true
	p.done = make(chan struct{})

	p.logger.Info("EndpointProber started",
		zap.Duration("interval", p.interval),
		zap.Strings("roles", p.roles))

	go p.pollLoop(runCtx)
	return nil
}

// Stop terminates the loop and waits for it
func (p *Prober) Stop() error {
	p.mu.Lock()
	if !p.isRunning {
		p.mu.Unlock()
		return nil
	}
	p.isRunning = false
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	cancel()
	<-done
	p.logger.Info("EndpointProber stopped")
	return nil
}

// Status returns the last probe result per role
func (p *Prober) Status() map[string]bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]bool, len(p.status))
	for k, v := range p.status {
		out[k] = v
	}
	return out
}

func (p *Prober) pollLoop(ctx context.Context) {
	defer close(p.done)

	p.ProbeAll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ProbeAll(ctx)
		}
	}
}

// ProbeAll checks every role once
func (p *Prober) ProbeAll(ctx context.Context) {
	for _, role := range p.roles {
		err := p.checker.Probe(ctx, role)
		up := err == nil

		p.mu.Lock()
		prev, seen := p.status[role]
		p.status[role] = up
		p.mu.Unlock()

		if p.recorder != nil {
			p.recorder.SetWorkerUp(role, up)
		}

		if seen && prev == up {
			continue
		}
		if up {
			p.logger.Info("Worker endpoint reachable", zap.String("role_id", role))
		} else {
			p.logger.Warn("Worker endpoint unreachable",
				zap.String("role_id", role),
				zap.Error(err))
		}
	}
}
