package workflow

import (
	"sync"
	"time"
)

// WorkflowStatus represents the lifecycle state of a workflow execution.
type WorkflowStatus string

const (
	// StatusPending indicates the execution was created but not started.
	StatusPending WorkflowStatus = "pending"
	// StatusRunning indicates the walk is in progress.
	StatusRunning WorkflowStatus = "running"
	// StatusCompleted indicates every visited task finished successfully.
	StatusCompleted WorkflowStatus = "completed"
	// StatusFailed indicates a handler or task failure aborted the walk.
	StatusFailed WorkflowStatus = "failed"
	// StatusCancelled indicates the caller's context was cancelled mid-run.
	StatusCancelled WorkflowStatus = "cancelled"
)

// Terminal reports whether the status is final.
func (s WorkflowStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// ExecutionMetrics carries aggregate numbers for one run.
type ExecutionMetrics struct {
	DurationSeconds float64 `json:"duration_seconds"`
	TasksExecuted   int     `json:"tasks_executed"`
}

// WorkflowExecution is the run-scoped record of a single workflow run.
// The orchestrator creates it at ExecuteWorkflow, mutates it during the
// walk, and freezes it once a terminal status is reached.
type WorkflowExecution struct {
	ID          string         `json:"id"`
	WorkflowID  string         `json:"workflow_id"`
	Status      WorkflowStatus `json:"status"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt time.Time      `json:"completed_at,omitzero"`
	// Context is the final snapshot; mutations made before a failure are
	// retained, there is no rollback.
	Context ContextSnapshot `json:"context"`
	// TaskExecutions maps task ID to the handler result of its last attempt.
	TaskExecutions map[string]*HandlerResult `json:"task_executions"`
	// Errors lists failure messages in the order they were observed.
	Errors []string `json:"errors,omitempty"`
	// History lists every task entered, in entry order.
	History []HistoryEntry   `json:"execution_history"`
	Metrics ExecutionMetrics `json:"metrics"`

	mu sync.Mutex
}

func newWorkflowExecution(id, workflowID string) *WorkflowExecution {
	return &WorkflowExecution{
		ID:             id,
		WorkflowID:     workflowID,
		Status:         StatusPending,
		TaskExecutions: make(map[string]*HandlerResult),
	}
}

// recordTaskResult stores a handler result under the task's ID. Parallel
// branches may record concurrently.
func (e *WorkflowExecution) recordTaskResult(taskID string, result *HandlerResult) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.TaskExecutions[taskID] = result
}

// appendError records a failure message.
func (e *WorkflowExecution) appendError(msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Errors = append(e.Errors, msg)
}

// TaskResult returns the recorded handler result for a task, if any.
func (e *WorkflowExecution) TaskResult(taskID string) (*HandlerResult, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.TaskExecutions[taskID]
	return r, ok
}

// VisitedTaskIDs returns the IDs of all tasks entered during the run,
// in entry order.
func (e *WorkflowExecution) VisitedTaskIDs() []string {
	ids := make([]string, 0, len(e.History))
	for _, entry := range e.History {
		ids = append(ids, entry.TaskID)
	}
	return ids
}

// ExecutionStore persists finished workflow executions keyed by execution ID.
// The orchestrator only requires the in-memory implementation; the stores
// under internal/store add durable and cached variants.
type ExecutionStore interface {
	// Save stores a terminal execution record.
	Save(execution *WorkflowExecution) error
	// Get retrieves an execution by ID. The bool reports presence.
	Get(executionID string) (*WorkflowExecution, bool, error)
	// ListByWorkflow returns all stored executions of one workflow.
	ListByWorkflow(workflowID string) ([]*WorkflowExecution, error)
}

// MemoryExecutionStore is the default in-memory ExecutionStore.
type MemoryExecutionStore struct {
	mu         sync.RWMutex
	executions map[string]*WorkflowExecution
}

// NewMemoryExecutionStore creates an empty in-memory store.
func NewMemoryExecutionStore() *MemoryExecutionStore {
	return &MemoryExecutionStore{executions: make(map[string]*WorkflowExecution)}
}

// Save implements ExecutionStore.
func (s *MemoryExecutionStore) Save(execution *WorkflowExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions[execution.ID] = execution
	return nil
}

// Get implements ExecutionStore.
func (s *MemoryExecutionStore) Get(executionID string) (*WorkflowExecution, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.executions[executionID]
	return e, ok, nil
}

// ListByWorkflow implements ExecutionStore.
func (s *MemoryExecutionStore) ListByWorkflow(workflowID string) ([]*WorkflowExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*WorkflowExecution
	for _, e := range s.executions {
		if e.WorkflowID == workflowID {
			out = append(out, e)
		}
	}
	return out, nil
}
