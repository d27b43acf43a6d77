package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/flowgraph/workflow"
)

// =============================================================================
// 💾 Redis 执行记录存储
// =============================================================================

// RedisConfig Redis 存储配置
type RedisConfig struct {
	// Redis 地址
	Addr string `yaml:"addr" json:"addr"`

	// 密码
	Password string `yaml:"password" json:"password"`

	// 数据库编号
	DB int `yaml:"db" json:"db"`

	// 键前缀
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`

	// 记录过期时间，0 表示永不过期
	RecordTTL time.Duration `yaml:"record_ttl" json:"record_ttl"`

	// 最大重试次数
	MaxRetries int `yaml:"max_retries" json:"max_retries"`

	// 连接池大小
	PoolSize int `yaml:"pool_size" json:"pool_size"`

	// 最小空闲连接数
	MinIdleConns int `yaml:"min_idle_conns" json:"min_idle_conns"`

	// 操作超时
	OpTimeout time.Duration `yaml:"op_timeout" json:"op_timeout"`
}

// DefaultRedisConfig 返回默认 Redis 存储配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		KeyPrefix:    "flowgraph",
		RecordTTL:    0,
		MaxRetries:   3,
		PoolSize:     10,
		MinIdleConns: 2,
		OpTimeout:    5 * time.Second,
	}
}

// RedisStore 基于 Redis 的执行记录存储
// 记录以 JSON 存于 {prefix}:execution:{id}，
// 工作流维度通过 {prefix}:workflow:{id} 集合索引。
type RedisStore struct {
	client *redis.Client
	config RedisConfig
	logger *zap.Logger
	mu     sync.RWMutex
	closed bool
}

var _ workflow.ExecutionStore = (*RedisStore)(nil)

// NewRedisStore 创建 Redis 执行记录存储并测试连接
func NewRedisStore(config RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		MaxRetries:   config.MaxRetries,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	s := &RedisStore{
		client: client,
		config: config,
		logger: logger.With(zap.String("component", "redis_store")),
	}

	logger.Info("redis execution store initialized",
		zap.String("addr", config.Addr),
		zap.String("key_prefix", config.KeyPrefix),
		zap.Duration("record_ttl", config.RecordTTL),
	)

	return s, nil
}

// =============================================================================
// 🎯 核心方法
// =============================================================================

// Save 持久化一条执行记录并更新工作流索引
func (s *RedisStore) Save(execution *workflow.WorkflowExecution) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	payload, err := json.Marshal(execution)
	if err != nil {
		return fmt.Errorf("failed to marshal execution: %w", err)
	}

	ctx, cancel := s.opContext()
	defer cancel()

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.executionKey(execution.ID), payload, s.config.RecordTTL)
	pipe.SAdd(ctx, s.workflowKey(execution.WorkflowID), execution.ID)
	if s.config.RecordTTL > 0 {
		pipe.Expire(ctx, s.workflowKey(execution.WorkflowID), s.config.RecordTTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Error("execution save failed",
			zap.String("execution_id", execution.ID),
			zap.Error(err),
		)
		return fmt.Errorf("execution save failed: %w", err)
	}

	return nil
}

// Get 按执行 ID 查询记录
func (s *RedisStore) Get(executionID string) (*workflow.WorkflowExecution, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, false, fmt.Errorf("store is closed")
	}

	ctx, cancel := s.opContext()
	defer cancel()

	payload, err := s.client.Get(ctx, s.executionKey(executionID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("execution get failed: %w", err)
	}

	execution, err := decodeExecution(payload)
	if err != nil {
		return nil, false, err
	}

	return execution, true, nil
}

// ListByWorkflow 列举同一工作流的全部执行记录
// 索引中已过期的记录会被跳过
func (s *RedisStore) ListByWorkflow(workflowID string) ([]*workflow.WorkflowExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	ctx, cancel := s.opContext()
	defer cancel()

	ids, err := s.client.SMembers(ctx, s.workflowKey(workflowID)).Result()
	if err != nil {
		return nil, fmt.Errorf("execution list failed: %w", err)
	}

	executions := make([]*workflow.WorkflowExecution, 0, len(ids))
	for _, id := range ids {
		payload, err := s.client.Get(ctx, s.executionKey(id)).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("execution list failed: %w", err)
		}

		execution, err := decodeExecution(payload)
		if err != nil {
			return nil, err
		}
		executions = append(executions, execution)
	}

	return executions, nil
}

// Ping 检查 Redis 连接
func (s *RedisStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	return s.client.Ping(ctx).Err()
}

// Close 关闭底层 Redis 连接
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	s.logger.Info("closing redis execution store")

	return s.client.Close()
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

func (s *RedisStore) opContext() (context.Context, context.CancelFunc) {
	timeout := s.config.OpTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}

func (s *RedisStore) executionKey(executionID string) string {
	return fmt.Sprintf("%s:execution:%s", s.config.KeyPrefix, executionID)
}

func (s *RedisStore) workflowKey(workflowID string) string {
	return fmt.Sprintf("%s:workflow:%s", s.config.KeyPrefix, workflowID)
}
