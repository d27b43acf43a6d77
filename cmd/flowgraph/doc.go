// 版权所有 2024 FlowGraph Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
flowgraph 是工作流引擎的命令行工具。

# 命令

  - run：加载 YAML/JSON 工作流定义并在本地执行，
    未注册的处理器自动以回显实现代替，执行结果以 JSON 输出。
  - validate：校验工作流定义的结构合法性。
  - version：显示版本与构建信息。

# 配置

通过 --config 指定 YAML 配置文件，或使用 FLOWGRAPH_ 前缀的
环境变量覆盖，详见 config 包。存储后端支持 memory、sqlite
与 redis 三种。
*/
package main
