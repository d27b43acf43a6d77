package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/flowgraph/workflow"
)

func testExecution(id, workflowID string, status workflow.WorkflowStatus) *workflow.WorkflowExecution {
	started := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return &workflow.WorkflowExecution{
		ID:          id,
		WorkflowID:  workflowID,
		Status:      status,
		StartedAt:   started,
		CompletedAt: started.Add(2 * time.Second),
		Context: workflow.ContextSnapshot{
			Variables:    map[string]any{"threshold": 0.8},
			AgentOutputs: map[string]any{"analysis": map[string]any{"score": 0.9}},
		},
		TaskExecutions: map[string]*workflow.HandlerResult{
			"analyze": {
				Outputs: map[string]any{"score": 0.9},
				Status:  workflow.HandlerCompleted,
			},
		},
		History: []workflow.HistoryEntry{
			{TaskID: "analyze", TaskName: "Analyze", Type: workflow.TaskTypeSequential, StartedAt: started},
		},
		Metrics: workflow.ExecutionMetrics{DurationSeconds: 2, TasksExecuted: 1},
	}
}

// =============================================================================
// GormStore
// =============================================================================

func newTestGormStore(t *testing.T) *GormStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:", DefaultGormConfig(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGormStore_SaveAndGet(t *testing.T) {
	s := newTestGormStore(t)

	exec := testExecution("exec-1", "wf-1", workflow.StatusCompleted)
	require.NoError(t, s.Save(exec))

	got, ok, err := s.Get("exec-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "exec-1", got.ID)
	assert.Equal(t, "wf-1", got.WorkflowID)
	assert.Equal(t, workflow.StatusCompleted, got.Status)
	assert.Equal(t, 0.8, got.Context.Variables["threshold"])
	assert.Len(t, got.History, 1)
	assert.Equal(t, "analyze", got.History[0].TaskID)

	result, resultOK := got.TaskResult("analyze")
	require.True(t, resultOK)
	assert.Equal(t, 0.9, result.Outputs["score"])
}

func TestGormStore_GetMissing(t *testing.T) {
	s := newTestGormStore(t)

	got, ok, err := s.Get("no-such-execution")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestGormStore_SaveOverwritesSameID(t *testing.T) {
	s := newTestGormStore(t)

	require.NoError(t, s.Save(testExecution("exec-1", "wf-1", workflow.StatusRunning)))
	require.NoError(t, s.Save(testExecution("exec-1", "wf-1", workflow.StatusFailed)))

	got, ok, err := s.Get("exec-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, workflow.StatusFailed, got.Status)
}

func TestGormStore_ListByWorkflow(t *testing.T) {
	s := newTestGormStore(t)

	e1 := testExecution("exec-1", "wf-1", workflow.StatusCompleted)
	e2 := testExecution("exec-2", "wf-1", workflow.StatusFailed)
	e2.StartedAt = e1.StartedAt.Add(time.Minute)
	e3 := testExecution("exec-3", "wf-other", workflow.StatusCompleted)

	require.NoError(t, s.Save(e1))
	require.NoError(t, s.Save(e2))
	require.NoError(t, s.Save(e3))

	executions, err := s.ListByWorkflow("wf-1")
	require.NoError(t, err)
	require.Len(t, executions, 2)
	assert.Equal(t, "exec-1", executions[0].ID)
	assert.Equal(t, "exec-2", executions[1].ID)
}

func TestGormStore_ClosedRejectsOperations(t *testing.T) {
	s := newTestGormStore(t)
	require.NoError(t, s.Close())

	assert.Error(t, s.Save(testExecution("exec-1", "wf-1", workflow.StatusCompleted)))
	_, _, err := s.Get("exec-1")
	assert.Error(t, err)
	_, err = s.ListByWorkflow("wf-1")
	assert.Error(t, err)
}

// =============================================================================
// RedisStore
// =============================================================================

func newTestRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	cfg := DefaultRedisConfig()
	cfg.Addr = mr.Addr()
	cfg.RecordTTL = ttl

	s, err := NewRedisStore(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestRedisStore_SaveAndGet(t *testing.T) {
	s, _ := newTestRedisStore(t, 0)

	exec := testExecution("exec-1", "wf-1", workflow.StatusCompleted)
	require.NoError(t, s.Save(exec))

	got, ok, err := s.Get("exec-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "exec-1", got.ID)
	assert.Equal(t, workflow.StatusCompleted, got.Status)
	assert.Equal(t, 2.0, got.Metrics.DurationSeconds)
}

func TestRedisStore_GetMissing(t *testing.T) {
	s, _ := newTestRedisStore(t, 0)

	got, ok, err := s.Get("no-such-execution")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestRedisStore_ListByWorkflow(t *testing.T) {
	s, _ := newTestRedisStore(t, 0)

	require.NoError(t, s.Save(testExecution("exec-1", "wf-1", workflow.StatusCompleted)))
	require.NoError(t, s.Save(testExecution("exec-2", "wf-1", workflow.StatusFailed)))
	require.NoError(t, s.Save(testExecution("exec-3", "wf-other", workflow.StatusCompleted)))

	executions, err := s.ListByWorkflow("wf-1")
	require.NoError(t, err)
	assert.Len(t, executions, 2)

	ids := map[string]bool{}
	for _, e := range executions {
		ids[e.ID] = true
	}
	assert.True(t, ids["exec-1"])
	assert.True(t, ids["exec-2"])
}

func TestRedisStore_TTLExpiresRecords(t *testing.T) {
	s, mr := newTestRedisStore(t, time.Minute)

	require.NoError(t, s.Save(testExecution("exec-1", "wf-1", workflow.StatusCompleted)))

	// 过期后索引中的残留 ID 被跳过
	mr.FastForward(2 * time.Minute)

	_, ok, err := s.Get("exec-1")
	require.NoError(t, err)
	assert.False(t, ok)

	executions, err := s.ListByWorkflow("wf-1")
	require.NoError(t, err)
	assert.Empty(t, executions)
}

func TestRedisStore_Ping(t *testing.T) {
	s, mr := newTestRedisStore(t, 0)

	require.NoError(t, s.Ping(context.Background()))

	mr.Close()
	assert.Error(t, s.Ping(context.Background()))
}
