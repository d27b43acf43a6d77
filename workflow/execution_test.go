package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowStatus_Terminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusRunning.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusCancelled.Terminal())
}

func TestWorkflowExecution_TaskResults(t *testing.T) {
	e := newWorkflowExecution("exec-1", "wf-1")
	assert.Equal(t, StatusPending, e.Status)

	result := &HandlerResult{Status: HandlerCompleted, Outputs: map[string]any{"k": "v"}}
	e.recordTaskResult("t1", result)

	got, ok := e.TaskResult("t1")
	require.True(t, ok)
	assert.Same(t, result, got)

	_, ok = e.TaskResult("absent")
	assert.False(t, ok)
}

func TestWorkflowExecution_Errors(t *testing.T) {
	e := newWorkflowExecution("exec-1", "wf-1")
	e.appendError("first")
	e.appendError("second")
	assert.Equal(t, []string{"first", "second"}, e.Errors)
}

func TestWorkflowExecution_VisitedTaskIDs(t *testing.T) {
	e := newWorkflowExecution("exec-1", "wf-1")
	now := time.Now()
	e.History = []HistoryEntry{
		{TaskID: "a", StartedAt: now},
		{TaskID: "b", StartedAt: now},
		{TaskID: "a", StartedAt: now},
	}
	assert.Equal(t, []string{"a", "b", "a"}, e.VisitedTaskIDs())
}

func TestMemoryExecutionStore(t *testing.T) {
	s := NewMemoryExecutionStore()

	e1 := newWorkflowExecution("exec-1", "wf-1")
	e2 := newWorkflowExecution("exec-2", "wf-1")
	e3 := newWorkflowExecution("exec-3", "wf-2")
	require.NoError(t, s.Save(e1))
	require.NoError(t, s.Save(e2))
	require.NoError(t, s.Save(e3))

	got, ok, err := s.Get("exec-2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Same(t, e2, got)

	_, ok, err = s.Get("absent")
	require.NoError(t, err)
	assert.False(t, ok)

	list, err := s.ListByWorkflow("wf-1")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = s.ListByWorkflow("wf-none")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestHandlerResult_Helpers(t *testing.T) {
	started := time.Now()
	r := &HandlerResult{
		Status:      HandlerCompleted,
		StartedAt:   started,
		CompletedAt: started.Add(3 * time.Second),
	}
	assert.Equal(t, 3*time.Second, r.Duration())
	assert.True(t, r.Succeeded())

	r.Status = HandlerFailed
	assert.False(t, r.Succeeded())

	var nilResult *HandlerResult
	assert.False(t, nilResult.Succeeded())
}
