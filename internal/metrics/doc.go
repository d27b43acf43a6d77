// 版权所有 2024 FlowGraph Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的工作流引擎指标采集能力，覆盖
工作流执行、任务执行、条件求值与循环迭代四大维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，避免手动管理 Registry。所有指标按 namespace 隔离，
支持多维度 label 分组，便于 Grafana 等工具进行可视化与告警。

# 核心类型

  - Collector：指标收集器，实现 workflow.MetricsRecorder 接口，
    由 Orchestrator 在每次执行中回调。

# 主要能力

  - 工作流指标：执行总数（按 workflow_id/status 分组）、执行耗时。
  - 任务指标：任务执行总数（按 task_type/status 分组）、任务耗时。
  - 条件指标：条件求值计数，按 true/false 结果分组。
  - 循环指标：循环迭代次数直方图。
*/
package metrics
