package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/flowgraph/types"
)

// ContextKeyMaxLoopIterations is the context variable a loop task reads its
// iteration cap from.
const ContextKeyMaxLoopIterations = "max_loop_iterations"

// ContextKeyLoopIndex is the context variable a loop task writes the current
// iteration index into before each body run.
const ContextKeyLoopIndex = "loop_index"

// MetricsRecorder receives execution metrics from the orchestrator.
// internal/metrics provides the Prometheus implementation.
type MetricsRecorder interface {
	RecordWorkflowExecution(workflowID string, status WorkflowStatus, duration time.Duration)
	RecordTaskExecution(workflowID, taskID string, taskType TaskType, success bool, duration time.Duration)
	RecordConditionEvaluation(workflowID string, result bool)
	RecordLoopIterations(workflowID, taskID string, iterations int)
}

// noopMetrics is the default MetricsRecorder.
type noopMetrics struct{}

func (noopMetrics) RecordWorkflowExecution(string, WorkflowStatus, time.Duration)   {}
func (noopMetrics) RecordTaskExecution(string, string, TaskType, bool, time.Duration) {}
func (noopMetrics) RecordConditionEvaluation(string, bool)                          {}
func (noopMetrics) RecordLoopIterations(string, string, int)                        {}

// EngineOptions tunes scheduler defaults.
type EngineOptions struct {
	// DefaultMaxLoopIterations caps loop tasks when the context does not
	// provide max_loop_iterations.
	DefaultMaxLoopIterations int
	// RetryDelay is the pause between handler retry attempts.
	RetryDelay time.Duration
}

// DefaultEngineOptions returns the engine defaults.
func DefaultEngineOptions() EngineOptions {
	return EngineOptions{
		DefaultMaxLoopIterations: 10,
		RetryDelay:               100 * time.Millisecond,
	}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithExecutionStore sets the store finished executions are saved to.
func WithExecutionStore(store ExecutionStore) Option {
	return func(o *Orchestrator) {
		if store != nil {
			o.store = store
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithTracer sets a custom tracer for workflow and task spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithEngineOptions overrides the scheduler defaults.
func WithEngineOptions(opts EngineOptions) Option {
	return func(o *Orchestrator) {
		if opts.DefaultMaxLoopIterations > 0 {
			o.opts.DefaultMaxLoopIterations = opts.DefaultMaxLoopIterations
		}
		if opts.RetryDelay > 0 {
			o.opts.RetryDelay = opts.RetryDelay
		}
	}
}

// Orchestrator owns the workflow and handler registries and schedules runs.
// Each instance is independent: construct one per test or per service; there
// is no process-wide state.
type Orchestrator struct {
	mu        sync.RWMutex
	workflows map[string]*WorkflowDefinition
	handlers  map[string]TaskHandler

	store     ExecutionStore
	evaluator *Evaluator
	logger    *zap.Logger
	metrics   MetricsRecorder
	tracer    trace.Tracer
	opts      EngineOptions
}

// NewOrchestrator creates an orchestrator with an in-memory execution store.
// logger may be nil.
func NewOrchestrator(logger *zap.Logger, options ...Option) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		workflows: make(map[string]*WorkflowDefinition),
		handlers:  make(map[string]TaskHandler),
		store:     NewMemoryExecutionStore(),
		evaluator: NewEvaluator(logger),
		logger:    logger.With(zap.String("component", "orchestrator")),
		metrics:   noopMetrics{},
		tracer:    otel.Tracer("github.com/BaSui01/flowgraph/workflow"),
		opts:      DefaultEngineOptions(),
	}
	for _, opt := range options {
		opt(o)
	}
	return o
}

// RegistrationSummary describes a registered workflow.
type RegistrationSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	TaskCount   int    `json:"task_count"`
}

// RegisterWorkflow validates and stores a workflow definition. Registering
// an ID that already exists overwrites the prior definition; executions
// already running against the old definition keep the pointer they captured
// and finish undisturbed.
func (o *Orchestrator) RegisterWorkflow(def *WorkflowDefinition) (RegistrationSummary, error) {
	if def == nil {
		return RegistrationSummary{}, types.NewError(types.ErrDefinition, "workflow definition is nil")
	}
	if err := def.Validate(); err != nil {
		return RegistrationSummary{}, err
	}

	o.mu.Lock()
	o.workflows[def.ID] = def
	o.mu.Unlock()

	o.logger.Info("workflow registered",
		zap.String("workflow_id", def.ID),
		zap.String("name", def.Name),
		zap.Int("task_count", def.TaskCount()),
	)
	return RegistrationSummary{
		ID:          def.ID,
		Name:        def.Name,
		Description: def.Description,
		TaskCount:   def.TaskCount(),
	}, nil
}

// RegisterHandler registers a task handler under the given reference name.
// Sequential tasks name handlers through Task.HandlerRef.
func (o *Orchestrator) RegisterHandler(ref string, handler TaskHandler) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.handlers[ref] = handler
}

// GetWorkflow returns a registered definition.
func (o *Orchestrator) GetWorkflow(workflowID string) (*WorkflowDefinition, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	def, ok := o.workflows[workflowID]
	return def, ok
}

// Workflows returns summaries of all registered workflows.
func (o *Orchestrator) Workflows() []RegistrationSummary {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]RegistrationSummary, 0, len(o.workflows))
	for _, def := range o.workflows {
		out = append(out, RegistrationSummary{
			ID:          def.ID,
			Name:        def.Name,
			Description: def.Description,
			TaskCount:   def.TaskCount(),
		})
	}
	return out
}

// GetExecution retrieves a stored execution by ID.
func (o *Orchestrator) GetExecution(executionID string) (*WorkflowExecution, error) {
	e, ok, err := o.store.Get(executionID)
	if err != nil {
		return nil, types.NewError(types.ErrStoreUnavailable, "execution store get failed").WithCause(err)
	}
	if !ok {
		return nil, types.NewErrorf(types.ErrExecutionNotFound, "execution %s not found", executionID)
	}
	return e, nil
}

// runState carries per-run scheduler state. The consumed set replaces the
// source engine's habit of clearing a parallel task's successor list on the
// shared definition: consumption is scoped to one execution, so the same
// definition can run concurrently in two executions without interference.
type runState struct {
	mu       sync.Mutex
	consumed map[string]bool
}

// consumeParallel marks a parallel task's fan-out as used for this run.
// Returns false if it was already consumed.
func (r *runState) consumeParallel(taskID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.consumed[taskID] {
		return false
	}
	r.consumed[taskID] = true
	return true
}

// ExecuteWorkflow runs a registered workflow with the given initial input
// and returns the complete execution record. The record is returned for
// failed runs too, so inspect Status and Errors; the error return is the
// failure that aborted the walk, or a registry error when the workflow ID
// is unknown.
func (o *Orchestrator) ExecuteWorkflow(ctx context.Context, workflowID string, input map[string]any) (*WorkflowExecution, error) {
	o.mu.RLock()
	def, ok := o.workflows[workflowID]
	o.mu.RUnlock()
	if !ok {
		return nil, types.NewErrorf(types.ErrWorkflowNotFound, "workflow %s not found", workflowID)
	}

	execution := newWorkflowExecution(uuid.NewString(), workflowID)
	execution.Status = StatusRunning
	execution.StartedAt = time.Now()

	// Seed variables: workflow defaults first, caller input overrides.
	seed := make(map[string]any, len(def.Variables)+len(input))
	for k, v := range def.Variables {
		seed[k] = v
	}
	for k, v := range input {
		seed[k] = v
	}
	runCtx := NewContext(seed)
	run := &runState{consumed: make(map[string]bool)}

	ctx, span := o.tracer.Start(ctx, "workflow.execute",
		trace.WithAttributes(
			attribute.String("workflow.id", workflowID),
			attribute.String("execution.id", execution.ID),
		))
	defer span.End()

	o.logger.Info("starting workflow execution",
		zap.String("workflow_id", workflowID),
		zap.String("execution_id", execution.ID),
		zap.String("entry_task", def.EntryTaskID),
	)

	walkErr := o.executeTask(ctx, def, def.EntryTaskID, runCtx, execution, run)

	execution.CompletedAt = time.Now()
	execution.Context = runCtx.Snapshot()
	execution.History = runCtx.History()
	execution.Metrics = ExecutionMetrics{
		DurationSeconds: execution.CompletedAt.Sub(execution.StartedAt).Seconds(),
		TasksExecuted:   len(execution.History),
	}

	switch {
	case walkErr == nil:
		execution.Status = StatusCompleted
	// Cancelled only when the run's own context is done; a task-level timeout
	// surfaces the same sentinel but is an ordinary failure.
	case ctx.Err() != nil && (errors.Is(walkErr, context.Canceled) || errors.Is(walkErr, context.DeadlineExceeded)):
		execution.Status = StatusCancelled
		execution.appendError(walkErr.Error())
	default:
		execution.Status = StatusFailed
		execution.appendError(walkErr.Error())
	}

	o.metrics.RecordWorkflowExecution(workflowID, execution.Status, execution.CompletedAt.Sub(execution.StartedAt))

	if err := o.store.Save(execution); err != nil {
		o.logger.Error("failed to save execution",
			zap.String("execution_id", execution.ID),
			zap.Error(err),
		)
	}

	if walkErr != nil {
		o.logger.Warn("workflow execution finished with failure",
			zap.String("workflow_id", workflowID),
			zap.String("execution_id", execution.ID),
			zap.String("status", string(execution.Status)),
			zap.Error(walkErr),
		)
		return execution, walkErr
	}

	o.logger.Info("workflow execution completed",
		zap.String("workflow_id", workflowID),
		zap.String("execution_id", execution.ID),
		zap.Int("tasks_executed", execution.Metrics.TasksExecuted),
	)
	return execution, nil
}

// executeTask runs one task and, depending on its type, its successors.
// Sequential tasks walk their full successor list after completing; parallel
// tasks fan their successors out once; conditional tasks run exactly one
// branch; loop tasks repeat successors[0].
func (o *Orchestrator) executeTask(ctx context.Context, def *WorkflowDefinition, taskID string, runCtx *Context, execution *WorkflowExecution, run *runState) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	task, ok := def.GetTask(taskID)
	if !ok {
		return types.NewErrorf(types.ErrTaskNotFound, "task %s not found in workflow %s", taskID, def.ID)
	}

	historyIdx := runCtx.appendHistory(HistoryEntry{
		TaskID:    task.ID,
		TaskName:  task.Name,
		Type:      task.Type,
		StartedAt: time.Now(),
	})

	ctx, span := o.tracer.Start(ctx, "workflow.task",
		trace.WithAttributes(
			attribute.String("task.id", task.ID),
			attribute.String("task.type", string(task.Type)),
		))
	defer span.End()

	started := time.Now()
	var err error
	switch task.Type {
	case TaskTypeSequential:
		err = o.executeSequential(ctx, def, task, runCtx, execution, run)
	case TaskTypeParallel:
		err = o.executeParallel(ctx, def, task, runCtx, execution, run)
	case TaskTypeConditional:
		err = o.executeConditional(ctx, def, task, runCtx, execution, run)
	case TaskTypeLoop:
		err = o.executeLoop(ctx, def, task, runCtx, execution, run)
	default:
		err = types.NewErrorf(types.ErrDefinition, "task %s has unknown type %q", task.ID, task.Type)
	}

	o.metrics.RecordTaskExecution(def.ID, task.ID, task.Type, err == nil, time.Since(started))

	if err != nil {
		runCtx.setHistoryError(historyIdx, err.Error())
		return err
	}
	return nil
}

// executeSequential resolves inputs, invokes the task's handler, merges its
// output into the context, then walks the successor list in order.
func (o *Orchestrator) executeSequential(ctx context.Context, def *WorkflowDefinition, task *Task, runCtx *Context, execution *WorkflowExecution, run *runState) error {
	o.mu.RLock()
	handler, ok := o.handlers[task.HandlerRef]
	o.mu.RUnlock()
	if !ok {
		return types.NewErrorf(types.ErrHandlerNotFound, "handler %q not found for task %s", task.HandlerRef, task.ID).WithTaskID(task.ID)
	}

	// Resolve inputs from context. Absent source keys are omitted, not errors:
	// partial input is allowed.
	inputs := make(map[string]any, len(task.InputMapping))
	for target, source := range task.InputMapping {
		if v, found := runCtx.Lookup(source); found {
			inputs[target] = v
		}
	}

	if task.TimeoutSeconds > 0 {
		handler = ChainHandler(handler, WithTimeout(time.Duration(task.TimeoutSeconds)*time.Second))
	}

	result, err := o.invokeWithRetry(ctx, task, handler, inputs)
	if result != nil {
		execution.recordTaskResult(task.ID, result)
	}
	if err != nil {
		return types.NewErrorf(types.ErrHandlerFailure, "task %s handler %q failed", task.ID, task.HandlerRef).
			WithTaskID(task.ID).
			WithCause(err)
	}
	if result != nil && !result.Succeeded() {
		return types.NewErrorf(types.ErrHandlerFailure, "task %s handler %q reported failure: %s", task.ID, task.HandlerRef, result.ErrorMessage).
			WithTaskID(task.ID)
	}

	// Output lands in agent outputs only on success.
	if task.OutputKey != "" && result.Succeeded() {
		runCtx.SetOutput(task.OutputKey, result.Outputs)
	}

	for _, succ := range task.Successors {
		if err := o.executeTask(ctx, def, succ, runCtx, execution, run); err != nil {
			return err
		}
	}
	return nil
}

// invokeWithRetry calls the handler, retrying up to task.MaxRetries times.
// Retries apply to the single sequential invocation only; control tasks never
// reach this path. Context errors are not retried.
func (o *Orchestrator) invokeWithRetry(ctx context.Context, task *Task, handler TaskHandler, inputs map[string]any) (*HandlerResult, error) {
	attempts := 1
	if task.MaxRetries > 0 {
		attempts += task.MaxRetries
	}

	var lastResult *HandlerResult
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := handler.Execute(ctx, inputs)
		if result != nil {
			result.Attempts = attempt
			lastResult = result
		}
		if err == nil && (result == nil || result.Succeeded()) {
			if result == nil {
				// Handlers should always return a result; synthesise an empty
				// success so the execution record stays complete.
				now := time.Now()
				lastResult = &HandlerResult{Status: HandlerCompleted, StartedAt: now, CompletedAt: now, Attempts: attempt}
			}
			return lastResult, nil
		}

		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("handler reported failure: %s", result.ErrorMessage)
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			break
		}
		if attempt < attempts {
			o.logger.Debug("retrying task handler",
				zap.String("task_id", task.ID),
				zap.Int("attempt", attempt),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return lastResult, ctx.Err()
			case <-time.After(o.opts.RetryDelay):
			}
		}
	}

	if lastResult == nil {
		now := time.Now()
		lastResult = &HandlerResult{
			Status:       HandlerFailed,
			ErrorMessage: lastErr.Error(),
			StartedAt:    now,
			CompletedAt:  now,
			Attempts:     attempts,
		}
	}
	return lastResult, lastErr
}

// executeParallel fans out all successors concurrently and waits for every
// branch to finish before returning: a fan-in barrier, not fire-and-forget.
// The fan-out is consumed for this run so a revisit of the task within the
// same execution cannot duplicate the branches.
func (o *Orchestrator) executeParallel(ctx context.Context, def *WorkflowDefinition, task *Task, runCtx *Context, execution *WorkflowExecution, run *runState) error {
	if !run.consumeParallel(task.ID) {
		o.logger.Debug("parallel task already consumed in this run, skipping",
			zap.String("task_id", task.ID),
		)
		return nil
	}
	if len(task.Successors) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, succ := range task.Successors {
		g.Go(func() error {
			return o.executeTask(gctx, def, succ, runCtx, execution, run)
		})
	}
	return g.Wait()
}

// executeConditional evaluates the task's condition and runs exactly one
// branch: successors[0] on true, successors[1] on false. A missing branch is
// a no-op. A malformed condition evaluates to false by policy, so it routes
// to the else branch rather than aborting the run.
func (o *Orchestrator) executeConditional(ctx context.Context, def *WorkflowDefinition, task *Task, runCtx *Context, execution *WorkflowExecution, run *runState) error {
	result := o.evaluator.Evaluate(task.Condition, runCtx)
	o.metrics.RecordConditionEvaluation(def.ID, result)

	o.logger.Debug("condition evaluated",
		zap.String("task_id", task.ID),
		zap.String("condition", task.Condition),
		zap.Bool("result", result),
	)

	branch := -1
	if result && len(task.Successors) > 0 {
		branch = 0
	} else if !result && len(task.Successors) > 1 {
		branch = 1
	}
	if branch < 0 {
		return nil
	}
	return o.executeTask(ctx, def, task.Successors[branch], runCtx, execution, run)
}

// executeLoop repeats the loop body (successors[0]) while the condition
// holds, bounded by the max_loop_iterations context variable. Each iteration
// writes loop_index before re-evaluating the condition.
func (o *Orchestrator) executeLoop(ctx context.Context, def *WorkflowDefinition, task *Task, runCtx *Context, execution *WorkflowExecution, run *runState) error {
	limit := o.loopCap(runCtx)

	iterations := 0
	defer func() {
		o.metrics.RecordLoopIterations(def.ID, task.ID, iterations)
	}()

	for i := 0; i < limit; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		runCtx.Set(ContextKeyLoopIndex, i)

		if !o.evaluator.Evaluate(task.Condition, runCtx) {
			break
		}

		if len(task.Successors) > 0 {
			if err := o.executeTask(ctx, def, task.Successors[0], runCtx, execution, run); err != nil {
				return err
			}
		}
		iterations++
	}

	o.logger.Debug("loop completed",
		zap.String("task_id", task.ID),
		zap.Int("iterations", iterations),
	)
	return nil
}

// loopCap reads the iteration cap from the context, falling back to the
// engine default. JSON-decoded inputs arrive as float64.
func (o *Orchestrator) loopCap(runCtx *Context) int {
	v := runCtx.Get(ContextKeyMaxLoopIterations, nil)
	switch n := v.(type) {
	case int:
		if n >= 0 {
			return n
		}
	case int64:
		if n >= 0 {
			return int(n)
		}
	case float64:
		if n >= 0 {
			return int(n)
		}
	}
	return o.opts.DefaultMaxLoopIterations
}
