// Package flowgraph provides a top-level convenience entry point for creating
// workflow orchestrators with minimal boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/flowgraph"
//
//	orc := flowgraph.New(nil)
//	orc.RegisterHandler("echo", workflow.HandlerFunc("echo", echoFn))
//
// This is a thin wrapper around [workflow.NewOrchestrator]; both produce
// identical results. Use this package when you prefer the shorter import path.
package flowgraph

import (
	"go.uber.org/zap"

	"github.com/BaSui01/flowgraph/workflow"
)

// Option configures the orchestrator created by [New].
type Option = workflow.Option

// New creates a [workflow.Orchestrator] with an in-memory execution store.
// logger may be nil.
func New(logger *zap.Logger, opts ...Option) *workflow.Orchestrator {
	return workflow.NewOrchestrator(logger, opts...)
}

// Re-export orchestrator options so callers never need to import workflow/
// just to configure the constructor.

// WithExecutionStore sets the store finished executions are saved to.
var WithExecutionStore = workflow.WithExecutionStore

// WithMetrics sets the metrics recorder.
var WithMetrics = workflow.WithMetrics

// WithTracer sets a custom tracer for workflow and task spans.
var WithTracer = workflow.WithTracer

// WithEngineOptions overrides the scheduler defaults.
var WithEngineOptions = workflow.WithEngineOptions
