// Copyright (c) FlowGraph Authors.
// Licensed under the MIT License.

/*
Package workflow implements the FlowGraph orchestration engine.

A caller registers a declarative WorkflowDefinition (a graph of tasks of
type sequential, parallel, conditional, or loop) together with the task
handlers the sequential tasks refer to, then executes the graph with an
initial input. The Orchestrator walks the graph from the entry task,
resolves per-task inputs from a shared Context, dispatches handler calls,
merges results back into the context, and returns a complete, replayable
WorkflowExecution record.

Key pieces:

  - Task / WorkflowDefinition: the declarative graph model
  - Context: run-scoped key/value environment shared between tasks
  - Evaluator: restricted boolean expression evaluator for branches and loops
  - TaskHandler: pluggable unit of work invoked for sequential tasks
  - Orchestrator: registry plus scheduler, one instance per caller

Basic usage:

	orc := workflow.NewOrchestrator(logger)
	orc.RegisterHandler("echo", workflow.HandlerFunc("echo", echoFn))
	if err := orc.RegisterWorkflow(def); err != nil { ... }
	exec, err := orc.ExecuteWorkflow(ctx, def.ID, map[string]any{"flag": true})
*/
package workflow
