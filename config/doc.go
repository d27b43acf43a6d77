// 版权所有 2024 FlowGraph Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 config 提供 FlowGraph 的统一配置加载能力，支持默认值、
YAML 文件与环境变量三级覆盖。

# 概述

Loader 采用 Builder 模式构建，按「默认值 → YAML 文件 → 环境
变量」的优先级合并配置，并支持注册自定义验证器。环境变量键
由前缀与结构体 env 标签逐级拼接而成，如 FLOWGRAPH_ENGINE_MAX_LOOP_ITERATIONS。

# 核心类型

  - Config：完整配置结构，包含引擎、存储后端、指标与日志分节。
  - EngineConfig：循环上限、重试间隔、任务超时与处理器限流参数。
  - StoreConfig：执行记录存储后端选择（memory/sqlite/redis）。
  - LogConfig：zap 日志级别、格式与输出路径。

# 使用示例

	cfg, err := config.NewLoader().
	    WithConfigPath("config.yaml").
	    Load()
*/
package config
