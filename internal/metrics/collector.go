package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/BaSui01/flowgraph/workflow"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 工作流指标收集器，实现 workflow.MetricsRecorder
type Collector struct {
	// 工作流指标
	workflowExecutionsTotal   *prometheus.CounterVec
	workflowExecutionDuration *prometheus.HistogramVec

	// 任务指标
	taskExecutionsTotal   *prometheus.CounterVec
	taskExecutionDuration *prometheus.HistogramVec

	// 条件与循环指标
	conditionEvaluationsTotal *prometheus.CounterVec
	loopIterations            *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器
// registerer 为 nil 时使用 Prometheus 默认注册表
func NewCollector(namespace string, registerer prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// 工作流指标
	c.workflowExecutionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_executions_total",
			Help:      "Total number of workflow executions",
		},
		[]string{"workflow_id", "status"},
	)

	c.workflowExecutionDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_execution_duration_seconds",
			Help:      "Workflow execution duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"workflow_id"},
	)

	// 任务指标
	c.taskExecutionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_executions_total",
			Help:      "Total number of task executions",
		},
		[]string{"workflow_id", "task_type", "status"},
	)

	c.taskExecutionDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_execution_duration_seconds",
			Help:      "Task execution duration in seconds",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"workflow_id", "task_type"},
	)

	// 条件与循环指标
	c.conditionEvaluationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "condition_evaluations_total",
			Help:      "Total number of condition evaluations",
		},
		[]string{"workflow_id", "result"},
	)

	c.loopIterations = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "loop_iterations",
			Help:      "Number of iterations executed per loop task",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
		[]string{"workflow_id", "task_id"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🔁 工作流指标记录
// =============================================================================

// RecordWorkflowExecution 记录一次工作流执行
func (c *Collector) RecordWorkflowExecution(workflowID string, status workflow.WorkflowStatus, duration time.Duration) {
	c.workflowExecutionsTotal.WithLabelValues(workflowID, string(status)).Inc()
	c.workflowExecutionDuration.WithLabelValues(workflowID).Observe(duration.Seconds())
}

// RecordTaskExecution 记录一次任务执行
func (c *Collector) RecordTaskExecution(workflowID, taskID string, taskType workflow.TaskType, success bool, duration time.Duration) {
	status := "completed"
	if !success {
		status = "failed"
	}
	c.taskExecutionsTotal.WithLabelValues(workflowID, string(taskType), status).Inc()
	c.taskExecutionDuration.WithLabelValues(workflowID, string(taskType)).Observe(duration.Seconds())
}

// RecordConditionEvaluation 记录一次条件求值
func (c *Collector) RecordConditionEvaluation(workflowID string, result bool) {
	c.conditionEvaluationsTotal.WithLabelValues(workflowID, strconv.FormatBool(result)).Inc()
}

// RecordLoopIterations 记录循环任务的迭代次数
func (c *Collector) RecordLoopIterations(workflowID, taskID string, iterations int) {
	c.loopIterations.WithLabelValues(workflowID, taskID).Observe(float64(iterations))
}
