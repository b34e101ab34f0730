package worker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/agent-orchestrator/internal/application/registry"
	"github.com/garyjia/agent-orchestrator/internal/domain/entity"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	reg := registry.Default(map[string]string{entity.RoleDevOps: srv.URL + "/"})
	return NewClient(reg, timeout, zap.NewNop())
}

func TestClient_Execute(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, TaskPath, r.URL.Path)

		var task entity.Task
		require.NoError(t, json.NewDecoder(r.Body).Decode(&task))
		assert.Equal(t, "Deployment: ship it", task.Task)

		_ = json.NewEncoder(w).Encode(entity.TaskResult{
			TaskID: task.TaskID,
			Status: entity.TaskStatusCompleted,
			Result: json.RawMessage(`{"url":"https://svc"}`),
		})
	}, time.Second)

	result, err := client.Execute(context.Background(), entity.RoleDevOps, &entity.Task{
		TaskID: "t-1", Task: "Deployment: ship it", Priority: entity.PriorityNormal,
	})
	require.NoError(t, err)
	assert.True(t, result.Succeeded())
	assert.Equal(t, "t-1", result.TaskID)
	assert.JSONEq(t, `{"url":"https://svc"}`, string(result.Result))
}

func TestClient_ExecuteFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		timeout time.Duration
		want    error
	}{
		{
			name: "non-2xx",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "overloaded", http.StatusServiceUnavailable)
			},
			timeout: time.Second,
			want:    entity.ErrTransport,
		},
		{
			name: "bad body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("not json"))
			},
			timeout: time.Second,
			want:    entity.ErrTransport,
		},
		{
			name: "slow worker",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-time.After(time.Second):
				case <-r.Context().Done():
				}
			},
			timeout: 30 * time.Millisecond,
			want:    entity.ErrTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.handler, tt.timeout)
			_, err := client.Execute(context.Background(), entity.RoleDevOps, &entity.Task{TaskID: "t"})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClient_ContextDeadline(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := client.Execute(ctx, entity.RoleDevOps, &entity.Task{TaskID: "t"})
	assert.ErrorIs(t, err, entity.ErrTimeout)
}

func TestClient_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	reg := registry.Default(map[string]string{entity.RoleQA: url})
	client := NewClient(reg, time.Second, zap.NewNop())

	_, err := client.Execute(context.Background(), entity.RoleQA, &entity.Task{TaskID: "t"})
	assert.ErrorIs(t, err, entity.ErrTransport)
	assert.ErrorIs(t, client.Probe(context.Background(), entity.RoleQA), entity.ErrTransport)
}

func TestClient_Routing(t *testing.T) {
	client := NewClient(registry.Default(nil), time.Second, zap.NewNop())

	_, err := client.Execute(context.Background(), "designer", &entity.Task{})
	assert.ErrorIs(t, err, entity.ErrUnknownRole)

	_, err = client.Execute(context.Background(), entity.RoleManager, &entity.Task{})
	assert.ErrorIs(t, err, entity.ErrTransport)
}

func TestClient_Probe(t *testing.T) {
	healthy := true
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, HealthPath, r.URL.Path)
		if !healthy {
			w.WriteHeader(http.StatusInternalServerError)
		}
	}, time.Second)

	assert.NoError(t, client.Probe(context.Background(), entity.RoleDevOps))
	healthy = false
	assert.ErrorIs(t, client.Probe(context.Background(), entity.RoleDevOps), entity.ErrTransport)
}
