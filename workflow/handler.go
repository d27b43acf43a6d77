package workflow

import (
	"context"
	"time"
)

// HandlerStatus is the completion status a task handler reports.
type HandlerStatus string

const (
	// HandlerCompleted indicates the handler produced its outputs.
	HandlerCompleted HandlerStatus = "completed"
	// HandlerFailed indicates the handler signalled failure.
	HandlerFailed HandlerStatus = "failed"
)

// HandlerResult is what a task handler produces for one invocation. It is
// recorded on the WorkflowExecution under the task's ID, and when the task
// declares an output key its Outputs land in the context's agent outputs.
type HandlerResult struct {
	Outputs      map[string]any `json:"outputs,omitempty"`
	Status       HandlerStatus  `json:"status"`
	ErrorMessage string         `json:"error_message,omitempty"`
	StartedAt    time.Time      `json:"started_at"`
	CompletedAt  time.Time      `json:"completed_at"`
	Attempts     int            `json:"attempts,omitempty"`
}

// Duration returns the wall time of the invocation.
func (r *HandlerResult) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// Succeeded reports whether the handler completed.
func (r *HandlerResult) Succeeded() bool {
	return r != nil && r.Status == HandlerCompleted
}

// TaskHandler is the unit of work behind a sequential task. The handler
// executes autonomously (it may call out to an LLM, a tool, or anything
// else) and the engine treats it as a black box: a mapping of named inputs
// in, a HandlerResult out.
//
// A handler reports failure either by returning an error or by returning a
// result with status HandlerFailed; the orchestrator treats both the same.
type TaskHandler interface {
	// Name returns the handler's registry name.
	Name() string
	// Execute runs the handler with inputs resolved from the run context.
	Execute(ctx context.Context, inputs map[string]any) (*HandlerResult, error)
}

// HandlerExecuteFunc is the function form of TaskHandler.Execute.
type HandlerExecuteFunc func(ctx context.Context, inputs map[string]any) (map[string]any, error)

// funcHandler adapts a plain function to TaskHandler.
type funcHandler struct {
	name string
	fn   HandlerExecuteFunc
}

// HandlerFunc wraps a function as a TaskHandler. The function's output map
// becomes the result's Outputs; a returned error becomes a failed result.
func HandlerFunc(name string, fn HandlerExecuteFunc) TaskHandler {
	return &funcHandler{name: name, fn: fn}
}

func (h *funcHandler) Name() string { return h.name }

func (h *funcHandler) Execute(ctx context.Context, inputs map[string]any) (*HandlerResult, error) {
	result := &HandlerResult{StartedAt: time.Now()}
	outputs, err := h.fn(ctx, inputs)
	result.CompletedAt = time.Now()
	if err != nil {
		result.Status = HandlerFailed
		result.ErrorMessage = err.Error()
		return result, err
	}
	result.Status = HandlerCompleted
	result.Outputs = outputs
	return result, nil
}
