package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/BaSui01/flowgraph/workflow"
)

// =============================================================================
// 🗄️ GORM 执行记录存储
// =============================================================================

// executionRecord 执行记录表模型
type executionRecord struct {
	ID          string    `gorm:"primaryKey;size:64"`
	WorkflowID  string    `gorm:"index;size:64"`
	Status      string    `gorm:"size:16"`
	StartedAt   time.Time `gorm:"index"`
	CompletedAt time.Time
	Payload     []byte `gorm:"type:blob"`
}

// TableName 指定表名
func (executionRecord) TableName() string {
	return "workflow_executions"
}

// GormConfig GORM 存储配置
type GormConfig struct {
	// 最大空闲连接数
	MaxIdleConns int `yaml:"max_idle_conns" json:"max_idle_conns"`

	// 最大打开连接数
	MaxOpenConns int `yaml:"max_open_conns" json:"max_open_conns"`

	// 连接最大生命周期
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`

	// 查询超时
	QueryTimeout time.Duration `yaml:"query_timeout" json:"query_timeout"`
}

// DefaultGormConfig 返回默认 GORM 存储配置
func DefaultGormConfig() GormConfig {
	return GormConfig{
		MaxIdleConns:    5,
		MaxOpenConns:    20,
		ConnMaxLifetime: time.Hour,
		QueryTimeout:    5 * time.Second,
	}
}

// GormStore 基于 GORM 的执行记录存储
type GormStore struct {
	db     *gorm.DB
	sqlDB  *sql.DB
	config GormConfig
	logger *zap.Logger
	mu     sync.RWMutex
	closed bool
}

var _ workflow.ExecutionStore = (*GormStore)(nil)

// NewGormStore 创建 GORM 执行记录存储并自动建表
func NewGormStore(db *gorm.DB, config GormConfig, logger *zap.Logger) (*GormStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	// 配置连接池
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)

	if err := db.AutoMigrate(&executionRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate execution records: %w", err)
	}

	s := &GormStore{
		db:     db,
		sqlDB:  sqlDB,
		config: config,
		logger: logger.With(zap.String("component", "gorm_store")),
	}

	logger.Info("gorm execution store initialized",
		zap.Int("max_idle_conns", config.MaxIdleConns),
		zap.Int("max_open_conns", config.MaxOpenConns),
	)

	return s, nil
}

// NewSQLiteStore 创建基于 SQLite 文件的执行记录存储
// path 为 ":memory:" 时使用内存数据库
func NewSQLiteStore(path string, config GormConfig, logger *zap.Logger) (*GormStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	return NewGormStore(db, config, logger)
}

// =============================================================================
// 🎯 核心方法
// =============================================================================

// Save 持久化一条执行记录，同 ID 记录会被覆盖
func (s *GormStore) Save(execution *workflow.WorkflowExecution) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	payload, err := json.Marshal(execution)
	if err != nil {
		return fmt.Errorf("failed to marshal execution: %w", err)
	}

	record := executionRecord{
		ID:          execution.ID,
		WorkflowID:  execution.WorkflowID,
		Status:      string(execution.Status),
		StartedAt:   execution.StartedAt,
		CompletedAt: execution.CompletedAt,
		Payload:     payload,
	}

	ctx, cancel := s.queryContext()
	defer cancel()

	err = s.db.WithContext(ctx).Save(&record).Error
	if err != nil {
		s.logger.Error("execution save failed",
			zap.String("execution_id", execution.ID),
			zap.Error(err),
		)
		return fmt.Errorf("execution save failed: %w", err)
	}

	return nil
}

// Get 按执行 ID 查询记录
func (s *GormStore) Get(executionID string) (*workflow.WorkflowExecution, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, false, fmt.Errorf("store is closed")
	}

	ctx, cancel := s.queryContext()
	defer cancel()

	var record executionRecord
	err := s.db.WithContext(ctx).First(&record, "id = ?", executionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("execution get failed: %w", err)
	}

	execution, err := decodeExecution(record.Payload)
	if err != nil {
		return nil, false, err
	}

	return execution, true, nil
}

// ListByWorkflow 列举同一工作流的全部执行记录，按开始时间升序
func (s *GormStore) ListByWorkflow(workflowID string) ([]*workflow.WorkflowExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	ctx, cancel := s.queryContext()
	defer cancel()

	var records []executionRecord
	err := s.db.WithContext(ctx).
		Where("workflow_id = ?", workflowID).
		Order("started_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("execution list failed: %w", err)
	}

	executions := make([]*workflow.WorkflowExecution, 0, len(records))
	for _, record := range records {
		execution, err := decodeExecution(record.Payload)
		if err != nil {
			return nil, err
		}
		executions = append(executions, execution)
	}

	return executions, nil
}

// Ping 检查数据库连接
func (s *GormStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	return s.sqlDB.PingContext(ctx)
}

// Close 关闭底层数据库连接
func (s *GormStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	s.logger.Info("closing gorm execution store")

	return s.sqlDB.Close()
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

func (s *GormStore) queryContext() (context.Context, context.CancelFunc) {
	timeout := s.config.QueryTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}

func decodeExecution(payload []byte) (*workflow.WorkflowExecution, error) {
	var execution workflow.WorkflowExecution
	if err := json.Unmarshal(payload, &execution); err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution: %w", err)
	}
	return &execution, nil
}
