package workflow

import (
	"sync"
	"time"
)

// HistoryEntry records that a task was entered during a run. Entries appear
// in entry order; parallel branches interleave, so this is not completion order.
type HistoryEntry struct {
	TaskID    string    `json:"task_id"`
	TaskName  string    `json:"task_name"`
	Type      TaskType  `json:"type"`
	StartedAt time.Time `json:"started_at"`
	Error     string    `json:"error,omitempty"`
}

// Context is the mutable key/value environment shared across a single
// workflow run. It merges two namespaces for reads: variables (workflow
// defaults plus caller input, mutable by any task) and agent outputs
// (written only on task completion). A key present in both resolves to the
// variable; that precedence is intentional, not an error.
//
// A Context belongs to exactly one in-flight execution. The mutex exists
// because parallel branches of that one run may write concurrently; two
// branches writing the same key race with last-write-wins.
type Context struct {
	mu           sync.RWMutex
	variables    map[string]any
	agentOutputs map[string]any
	history      []HistoryEntry
}

// NewContext creates a run context seeded with the given variables.
// Caller input should already be merged over workflow defaults.
func NewContext(variables map[string]any) *Context {
	vars := make(map[string]any, len(variables))
	for k, v := range variables {
		vars[k] = v
	}
	return &Context{
		variables:    vars,
		agentOutputs: make(map[string]any),
	}
}

// Get reads a key, checking variables first, then agent outputs.
// Returns def when the key is absent from both.
func (c *Context) Get(key string, def any) any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if v, ok := c.variables[key]; ok {
		return v
	}
	if v, ok := c.agentOutputs[key]; ok {
		return v
	}
	return def
}

// Lookup reads a key with an explicit found flag. Same precedence as Get.
func (c *Context) Lookup(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if v, ok := c.variables[key]; ok {
		return v, true
	}
	if v, ok := c.agentOutputs[key]; ok {
		return v, true
	}
	return nil, false
}

// Set writes a value into the variables namespace.
func (c *Context) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.variables[key] = value
}

// SetOutput stores a completed task's output under the given output key.
func (c *Context) SetOutput(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.agentOutputs[key] = value
}

// appendHistory records a task entry and returns its index so the caller
// can attach an error to the same entry later.
func (c *Context) appendHistory(entry HistoryEntry) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, entry)
	return len(c.history) - 1
}

// setHistoryError attaches an error message to a previously recorded entry.
func (c *Context) setHistoryError(index int, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index >= 0 && index < len(c.history) {
		c.history[index].Error = msg
	}
}

// History returns a copy of the entry-ordered task history.
func (c *Context) History() []HistoryEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]HistoryEntry, len(c.history))
	copy(out, c.history)
	return out
}

// Variables returns a copy of the variables namespace.
func (c *Context) Variables() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]any, len(c.variables))
	for k, v := range c.variables {
		out[k] = v
	}
	return out
}

// AgentOutputs returns a copy of the agent outputs namespace.
func (c *Context) AgentOutputs() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]any, len(c.agentOutputs))
	for k, v := range c.agentOutputs {
		out[k] = v
	}
	return out
}

// ContextSnapshot is the immutable view of a context stored on a finished
// WorkflowExecution. Mutations made before a failure are retained; the
// engine is best-effort, not transactional.
type ContextSnapshot struct {
	Variables    map[string]any `json:"variables"`
	AgentOutputs map[string]any `json:"agent_outputs"`
}

// Snapshot captures the current state of both namespaces.
func (c *Context) Snapshot() ContextSnapshot {
	return ContextSnapshot{
		Variables:    c.Variables(),
		AgentOutputs: c.AgentOutputs(),
	}
}
