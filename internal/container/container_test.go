package container

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/agent-orchestrator/internal/domain/entity"
	"github.com/garyjia/agent-orchestrator/internal/domain/workflow"
)

func newWorkerServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/task":
			var task entity.Task
			if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			_ = json.NewEncoder(w).Encode(entity.TaskResult{
				TaskID: task.TaskID,
				Status: entity.TaskStatusCompleted,
				Result: json.RawMessage(`{"ok":true}`),
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, endpoint string) *Config {
	cfg := DefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "policy.db")
	for role := range cfg.Workers.Endpoints {
		cfg.Workers.Endpoints[role] = endpoint
	}
	cfg.Workers.Timeout = 2 * time.Second
	cfg.Workers.ProbeInterval = time.Hour
	cfg.Orchestrator.StageTimeout = 2 * time.Second
	return cfg
}

func TestNewContainer_Validation(t *testing.T) {
	_, err := NewContainer(nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewContainer(DefaultConfig(), nil)
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.Orchestrator.SeedMode = "sometimes"
	_, err = NewContainer(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestContainer_Lifecycle(t *testing.T) {
	srv := newWorkerServer(t)
	c, err := NewContainer(testConfig(t, srv.URL), zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	assert.True(t, c.Ready())
	assert.Error(t, c.Start(ctx), "second start should fail")

	roles, err := c.Policy().ListRoles(ctx)
	require.NoError(t, err)
	assert.Len(t, roles, len(entity.KnownRoleIDs))

	assert.Eventually(t, func() bool {
		health := c.Health(ctx)
		return health["database"] == "ok" &&
			health["workers"] == "ok" &&
			health["worker:developer"] == "ok"
	}, 2*time.Second, 20*time.Millisecond)

	assert.NotNil(t, c.MetricsHandler())

	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.Error(t, c.Close())
}

func TestContainer_RunsWorkflowThroughScheduler(t *testing.T) {
	srv := newWorkerServer(t)
	c, err := NewContainer(testConfig(t, srv.URL), zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	defer c.Close()

	wf, err := c.Orchestrator().CreateWorkflow(ctx, "Implement the login endpoint", nil)
	require.NoError(t, err)
	require.NoError(t, c.Scheduler().Enqueue(wf.WorkflowID))

	assert.Eventually(t, func() bool {
		got, err := c.Orchestrator().GetWorkflow(ctx, wf.WorkflowID)
		return err == nil && got.Status == workflow.StateCompleted
	}, 5*time.Second, 20*time.Millisecond)
}

func TestContainer_MetricsDisabled(t *testing.T) {
	srv := newWorkerServer(t)
	cfg := testConfig(t, srv.URL)
	cfg.Metrics.Enabled = false
	cfg.Workers.ProbeInterval = 0

	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	assert.Nil(t, c.MetricsHandler())
	_, probed := c.Health(context.Background())["worker:developer"]
	assert.False(t, probed)
}
