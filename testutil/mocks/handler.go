// Mock TaskHandler implementations for workflow engine tests.
//
// Supports scripted outputs, failure injection, call recording, and
// artificial latency.
package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/BaSui01/flowgraph/workflow"
)

// HandlerCall records a single handler invocation.
type HandlerCall struct {
	Inputs map[string]any
	At     time.Time
}

// MockHandler is a scriptable TaskHandler. The zero value echoes its inputs;
// use the With* methods to script outputs, failures, and latency.
type MockHandler struct {
	mu sync.Mutex

	name    string
	outputs map[string]any
	err     error
	failMsg string
	delay   time.Duration
	fn      workflow.HandlerExecuteFunc

	calls []HandlerCall
}

// NewMockHandler creates a mock handler that echoes its inputs.
func NewMockHandler(name string) *MockHandler {
	return &MockHandler{name: name}
}

// WithOutputs scripts a fixed output map for every invocation.
func (m *MockHandler) WithOutputs(outputs map[string]any) *MockHandler {
	m.outputs = outputs
	return m
}

// WithError makes Execute return err.
func (m *MockHandler) WithError(err error) *MockHandler {
	m.err = err
	return m
}

// WithReportedFailure makes Execute return a HandlerFailed result without a
// Go error, the way an agent reports a failure it caught itself.
func (m *MockHandler) WithReportedFailure(msg string) *MockHandler {
	m.failMsg = msg
	return m
}

// WithDelay adds artificial latency, interruptible by context cancellation.
func (m *MockHandler) WithDelay(d time.Duration) *MockHandler {
	m.delay = d
	return m
}

// WithFunc replaces the scripted behaviour with a custom function.
func (m *MockHandler) WithFunc(fn workflow.HandlerExecuteFunc) *MockHandler {
	m.fn = fn
	return m
}

// Name implements workflow.TaskHandler.
func (m *MockHandler) Name() string { return m.name }

// Execute implements workflow.TaskHandler.
func (m *MockHandler) Execute(ctx context.Context, inputs map[string]any) (*workflow.HandlerResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, HandlerCall{Inputs: copyMap(inputs), At: time.Now()})
	m.mu.Unlock()

	result := &workflow.HandlerResult{StartedAt: time.Now()}

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			result.CompletedAt = time.Now()
			result.Status = workflow.HandlerFailed
			result.ErrorMessage = ctx.Err().Error()
			return result, ctx.Err()
		}
	}

	if m.err != nil {
		result.CompletedAt = time.Now()
		result.Status = workflow.HandlerFailed
		result.ErrorMessage = m.err.Error()
		return result, m.err
	}
	if m.failMsg != "" {
		result.CompletedAt = time.Now()
		result.Status = workflow.HandlerFailed
		result.ErrorMessage = m.failMsg
		return result, nil
	}

	outputs := m.outputs
	if m.fn != nil {
		var err error
		outputs, err = m.fn(ctx, inputs)
		if err != nil {
			result.CompletedAt = time.Now()
			result.Status = workflow.HandlerFailed
			result.ErrorMessage = err.Error()
			return result, err
		}
	} else if outputs == nil {
		outputs = copyMap(inputs)
	}

	result.CompletedAt = time.Now()
	result.Status = workflow.HandlerCompleted
	result.Outputs = outputs
	return result, nil
}

// CallCount returns how many times Execute was invoked.
func (m *MockHandler) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Calls returns a copy of the recorded invocations.
func (m *MockHandler) Calls() []HandlerCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]HandlerCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// LastInputs returns the inputs of the most recent invocation.
func (m *MockHandler) LastInputs() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	return m.calls[len(m.calls)-1].Inputs
}

// FlakyHandler fails the first failures invocations, then succeeds with the
// given outputs. Useful for retry tests.
type FlakyHandler struct {
	mu       sync.Mutex
	name     string
	failures int
	outputs  map[string]any
	calls    int
}

// NewFlakyHandler creates a handler that fails failures times before succeeding.
func NewFlakyHandler(name string, failures int, outputs map[string]any) *FlakyHandler {
	return &FlakyHandler{name: name, failures: failures, outputs: outputs}
}

// Name implements workflow.TaskHandler.
func (f *FlakyHandler) Name() string { return f.name }

// Execute implements workflow.TaskHandler.
func (f *FlakyHandler) Execute(ctx context.Context, inputs map[string]any) (*workflow.HandlerResult, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()

	now := time.Now()
	if n <= f.failures {
		err := fmt.Errorf("transient failure %d of %d", n, f.failures)
		return &workflow.HandlerResult{
			Status:       workflow.HandlerFailed,
			ErrorMessage: err.Error(),
			StartedAt:    now,
			CompletedAt:  time.Now(),
		}, err
	}
	return &workflow.HandlerResult{
		Status:      workflow.HandlerCompleted,
		Outputs:     f.outputs,
		StartedAt:   now,
		CompletedAt: time.Now(),
	}, nil
}

// CallCount returns how many times Execute was invoked.
func (f *FlakyHandler) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// TextHandler emulates an agent in mock mode: it produces a canned
// result/final_answer payload derived from its "task" input.
func TextHandler(name string) workflow.TaskHandler {
	return workflow.HandlerFunc(name, func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
		task, _ := inputs["task"].(string)
		response := fmt.Sprintf("[%s] Task completed successfully: %s", name, task)
		return map[string]any{
			"result":       response,
			"final_answer": response,
		}, nil
	})
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
