// 版权所有 2024 FlowGraph Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 store 提供工作流执行记录的持久化存储实现，包含 GORM 关系型
存储与 Redis 键值存储两种后端。

# 概述

本包实现 workflow.ExecutionStore 接口，将终态执行记录以 JSON
形式持久化，支持按执行 ID 查询与按工作流 ID 列举。两种后端
均可替换引擎默认的内存存储，适用于需要跨进程回放执行历史的
生产场景。

# 核心类型

  - GormStore：基于 GORM 的关系型存储，内置连接池配置与
    自动建表，默认驱动为纯 Go 实现的 SQLite。
  - RedisStore：基于 go-redis 的键值存储，支持记录 TTL、
    连接池管理与健康检查。

# 主要能力

  - 记录持久化：Save 以 JSON 序列化完整执行快照。
  - 精确查询：Get 按执行 ID 取回记录，未命中以布尔值区分。
  - 批量列举：ListByWorkflow 返回同一工作流的全部历史执行。
  - 连接管理：连接池参数可配，Close 安全释放底层连接。
*/
package store
