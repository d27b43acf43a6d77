// =============================================================================
// FlowGraph 主入口
// =============================================================================
// 工作流引擎命令行工具，支持定义校验与本地执行
//
// 使用方法:
//
//	flowgraph run workflow.yaml                    # 执行工作流
//	flowgraph run workflow.yaml --input key=value  # 附带初始变量
//	flowgraph validate workflow.yaml               # 校验工作流定义
//	flowgraph version                              # 显示版本信息
// =============================================================================

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/flowgraph/config"
	"github.com/BaSui01/flowgraph/internal/metrics"
	"github.com/BaSui01/flowgraph/internal/store"
	"github.com/BaSui01/flowgraph/workflow"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runExecute(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// ▶️ run 命令
// =============================================================================

func runExecute(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	timeout := fs.Duration("timeout", 5*time.Minute, "Overall execution timeout")
	var inputs inputFlags
	fs.Var(&inputs, "input", "Initial variable as key=value (repeatable)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: flowgraph run <definition-file> [options]")
		os.Exit(1)
	}
	definitionPath := fs.Arg(0)

	cfg := loadConfig(*configPath)
	logger := buildLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("Starting FlowGraph",
		zap.String("version", Version),
		zap.String("definition", definitionPath),
	)

	definition, err := workflow.LoadDefinitionFile(definitionPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load workflow definition: %v\n", err)
		os.Exit(1)
	}

	orchestrator, cleanup, err := buildOrchestrator(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build engine: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	if _, err := orchestrator.RegisterWorkflow(definition); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to register workflow: %v\n", err)
		os.Exit(1)
	}

	registerEchoHandlers(orchestrator, definition, cfg.Engine, logger)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	execution, err := orchestrator.ExecuteWorkflow(ctx, definition.ID, inputs.values)
	if err != nil {
		logger.Error("workflow execution failed", zap.Error(err))
	}

	printExecution(execution)

	if execution == nil || execution.Status != workflow.StatusCompleted {
		os.Exit(1)
	}
}

// =============================================================================
// ✅ validate 命令
// =============================================================================

func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: flowgraph validate <definition-file>")
		os.Exit(1)
	}
	definitionPath := fs.Arg(0)

	definition, err := workflow.LoadDefinitionFile(definitionPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid workflow definition: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OK: %s (%d tasks, entry %s)\n",
		definition.Name, definition.TaskCount(), definition.EntryTaskID)
}

// =============================================================================
// 🔧 引擎装配
// =============================================================================

func loadConfig(path string) *config.Config {
	loader := config.NewLoader()
	if path != "" {
		loader = loader.WithConfigPath(path)
	}

	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	return cfg
}

func buildLogger(cfg config.LogConfig) *zap.Logger {
	logger, err := cfg.BuildLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

// buildOrchestrator 按配置装配引擎：存储后端、指标与引擎参数
func buildOrchestrator(cfg *config.Config, logger *zap.Logger) (*workflow.Orchestrator, func(), error) {
	opts := []workflow.Option{
		workflow.WithEngineOptions(workflow.EngineOptions{
			DefaultMaxLoopIterations: cfg.Engine.MaxLoopIterations,
			RetryDelay:               cfg.Engine.RetryDelay,
		}),
	}
	cleanup := func() {}

	switch cfg.Store.Backend {
	case "sqlite":
		gormCfg := store.DefaultGormConfig()
		gormCfg.MaxIdleConns = cfg.Database.MaxIdleConns
		gormCfg.MaxOpenConns = cfg.Database.MaxOpenConns
		gormCfg.ConnMaxLifetime = cfg.Database.ConnMaxLifetime
		gormCfg.QueryTimeout = cfg.Database.QueryTimeout

		s, err := store.NewSQLiteStore(cfg.Database.Path, gormCfg, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		opts = append(opts, workflow.WithExecutionStore(s))
		cleanup = func() { _ = s.Close() }

	case "redis":
		redisCfg := store.DefaultRedisConfig()
		redisCfg.Addr = cfg.Redis.Addr
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.KeyPrefix = cfg.Redis.KeyPrefix
		redisCfg.RecordTTL = cfg.Redis.RecordTTL
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns

		s, err := store.NewRedisStore(redisCfg, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open redis store: %w", err)
		}
		opts = append(opts, workflow.WithExecutionStore(s))
		cleanup = func() { _ = s.Close() }
	}

	if cfg.Metrics.Enabled {
		opts = append(opts, workflow.WithMetrics(metrics.NewCollector(cfg.Metrics.Namespace, nil, logger)))
	}

	return workflow.NewOrchestrator(logger, opts...), cleanup, nil
}

// registerEchoHandlers 为定义中引用的每个处理器注册回显实现
// 便于在没有业务处理器的情况下本地试跑工作流
func registerEchoHandlers(orchestrator *workflow.Orchestrator, definition *workflow.WorkflowDefinition, engineCfg config.EngineConfig, logger *zap.Logger) {
	var middlewares []workflow.HandlerMiddleware
	if engineCfg.DefaultTaskTimeout > 0 {
		middlewares = append(middlewares, workflow.WithTimeout(engineCfg.DefaultTaskTimeout))
	}
	if engineCfg.HandlerRateLimit > 0 {
		limiter := rate.NewLimiter(rate.Limit(engineCfg.HandlerRateLimit), engineCfg.HandlerRateBurst)
		middlewares = append(middlewares, workflow.WithRateLimit(limiter))
	}

	seen := make(map[string]bool)
	for _, task := range definition.Tasks {
		ref := task.HandlerRef
		if ref == "" || seen[ref] {
			continue
		}
		seen[ref] = true

		handler := workflow.ChainHandler(echoHandler(ref), middlewares...)
		orchestrator.RegisterHandler(ref, handler)
		logger.Debug("registered echo handler", zap.String("handler", ref))
	}
}

// echoHandler 回显处理器：原样返回输入并附带处理器名
func echoHandler(name string) workflow.TaskHandler {
	return workflow.HandlerFunc(name, func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
		outputs := make(map[string]any, len(inputs)+1)
		for k, v := range inputs {
			outputs[k] = v
		}
		outputs["handler"] = name
		return outputs, nil
	})
}

func printExecution(execution *workflow.WorkflowExecution) {
	if execution == nil {
		return
	}
	data, err := json.MarshalIndent(execution, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render execution: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion() {
	fmt.Printf("FlowGraph %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`FlowGraph - Workflow Orchestration Engine

Usage:
  flowgraph <command> [options]

Commands:
  run       Execute a workflow definition
  validate  Validate a workflow definition file
  version   Show version information
  help      Show this help message

Options for 'run':
  --config <path>     Path to configuration file (YAML)
  --input key=value   Initial context variable (repeatable)
  --timeout <dur>     Overall execution timeout (default 5m)

Examples:
  flowgraph run approval.yaml --input threshold=0.8
  flowgraph run approval.yaml --config /etc/flowgraph/config.yaml
  flowgraph validate approval.yaml
  flowgraph version`)
}

// =============================================================================
// 🔩 输入变量解析
// =============================================================================

// inputFlags 收集重复出现的 --input key=value 参数
// 值按 bool → int → float → string 顺序推断类型
type inputFlags struct {
	values map[string]any
}

func (f *inputFlags) String() string {
	if len(f.values) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(f.values))
	for k, v := range f.values {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, v))
	}
	return strings.Join(pairs, ",")
}

func (f *inputFlags) Set(raw string) error {
	key, value, ok := strings.Cut(raw, "=")
	if !ok || key == "" {
		return fmt.Errorf("input must be key=value, got %q", raw)
	}

	if f.values == nil {
		f.values = make(map[string]any)
	}
	f.values[key] = parseScalar(value)
	return nil
}

func parseScalar(value string) any {
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	if i, err := strconv.ParseInt(value, 10, 64); err == nil {
		return int(i)
	}
	if fv, err := strconv.ParseFloat(value, 64); err == nil {
		return fv
	}
	return value
}
