package workflow

import (
	"github.com/google/uuid"

	"github.com/BaSui01/flowgraph/types"
)

// TaskType defines how the orchestrator dispatches a task.
type TaskType string

const (
	// TaskTypeSequential invokes a registered handler, then walks successors in order.
	TaskTypeSequential TaskType = "sequential"
	// TaskTypeParallel fans out all successors concurrently and waits for them.
	TaskTypeParallel TaskType = "parallel"
	// TaskTypeConditional routes to successors[0] or successors[1] based on a condition.
	TaskTypeConditional TaskType = "conditional"
	// TaskTypeLoop repeats successors[0] while a condition holds, bounded by max_loop_iterations.
	TaskTypeLoop TaskType = "loop"
)

// valid reports whether t is one of the known task types.
func (t TaskType) valid() bool {
	switch t {
	case TaskTypeSequential, TaskTypeParallel, TaskTypeConditional, TaskTypeLoop:
		return true
	}
	return false
}

// Task is a single node in a workflow graph.
type Task struct {
	// ID uniquely identifies the task within its workflow.
	ID string `json:"id" yaml:"id"`
	// Name is the display name recorded in execution history.
	Name string `json:"name" yaml:"name"`
	// Type selects the dispatch behaviour.
	Type TaskType `json:"type" yaml:"type"`
	// HandlerRef names the registered TaskHandler to invoke.
	// Required for sequential tasks, absent for control tasks.
	HandlerRef string `json:"handler_ref,omitempty" yaml:"handler_ref,omitempty"`
	// InputMapping maps handler input names to context keys to read.
	// Entries whose source key is absent from the context are omitted.
	InputMapping map[string]string `json:"input_mapping,omitempty" yaml:"input_mapping,omitempty"`
	// OutputKey, when set, stores the handler result under this agent-output key.
	OutputKey string `json:"output_key,omitempty" yaml:"output_key,omitempty"`
	// Condition is the boolean expression driving conditional and loop tasks.
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`
	// Successors lists the task IDs to run after this task, in order.
	Successors []string `json:"successors,omitempty" yaml:"successors,omitempty"`
	// MaxRetries bounds handler retries for sequential tasks. Control tasks are never retried.
	MaxRetries int `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
	// TimeoutSeconds bounds a single handler invocation. Zero means no task-level deadline.
	TimeoutSeconds int `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`
}

// WorkflowDefinition is the immutable declarative definition of a workflow.
// Register it with an Orchestrator; re-registering the same ID overwrites the
// prior definition without disturbing in-flight executions.
type WorkflowDefinition struct {
	ID          string           `json:"id" yaml:"id"`
	Name        string           `json:"name" yaml:"name"`
	Description string           `json:"description" yaml:"description"`
	Tasks       map[string]*Task `json:"tasks" yaml:"tasks"`
	EntryTaskID string           `json:"entry_task_id" yaml:"entry_task_id"`
	// Variables seeds the run context; caller input overrides these defaults.
	Variables map[string]any `json:"variables,omitempty" yaml:"variables,omitempty"`
}

// NewWorkflowDefinition creates an empty definition with a generated ID.
func NewWorkflowDefinition(name, description string) *WorkflowDefinition {
	return &WorkflowDefinition{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Tasks:       make(map[string]*Task),
		Variables:   make(map[string]any),
	}
}

// AddTask adds a task to the definition, keyed by its ID.
func (d *WorkflowDefinition) AddTask(task *Task) *WorkflowDefinition {
	if d.Tasks == nil {
		d.Tasks = make(map[string]*Task)
	}
	d.Tasks[task.ID] = task
	return d
}

// GetTask retrieves a task by ID.
func (d *WorkflowDefinition) GetTask(id string) (*Task, bool) {
	t, ok := d.Tasks[id]
	return t, ok
}

// TaskCount returns the number of tasks in the definition.
func (d *WorkflowDefinition) TaskCount() int {
	return len(d.Tasks)
}

// Validate checks the structural invariants of the definition. It is called
// at registration time so that a bad graph never reaches the scheduler:
// the entry task must exist, every successor reference must resolve,
// conditional and loop tasks must carry a condition, and sequential tasks
// must name a handler. Acyclicity is deliberately not required; loop and
// conditional tasks may legitimately revisit graph regions.
func (d *WorkflowDefinition) Validate() error {
	if d.ID == "" {
		return types.NewError(types.ErrDefinition, "workflow id must not be empty")
	}
	if len(d.Tasks) == 0 {
		return types.NewErrorf(types.ErrDefinition, "workflow %s has no tasks", d.ID)
	}
	if _, ok := d.Tasks[d.EntryTaskID]; !ok {
		return types.NewErrorf(types.ErrDefinition, "entry task %q not found in workflow %s", d.EntryTaskID, d.ID)
	}

	for id, task := range d.Tasks {
		if task == nil {
			return types.NewErrorf(types.ErrDefinition, "task %q is nil", id)
		}
		if task.ID != id {
			return types.NewErrorf(types.ErrDefinition, "task key %q does not match task id %q", id, task.ID)
		}
		if !task.Type.valid() {
			return types.NewErrorf(types.ErrDefinition, "task %q has unknown type %q", id, task.Type)
		}
		if task.Type == TaskTypeSequential && task.HandlerRef == "" {
			return types.NewErrorf(types.ErrDefinition, "sequential task %q has no handler ref", id)
		}
		if (task.Type == TaskTypeConditional || task.Type == TaskTypeLoop) && task.Condition == "" {
			return types.NewErrorf(types.ErrDefinition, "%s task %q requires a condition", task.Type, id)
		}
		for _, succ := range task.Successors {
			if _, ok := d.Tasks[succ]; !ok {
				return types.NewErrorf(types.ErrDefinition, "task %q references unknown successor %q", id, succ)
			}
		}
	}
	return nil
}
