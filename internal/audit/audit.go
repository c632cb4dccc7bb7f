package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/lk2023060901/padel-media-backend/internal/pkg/database"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/logger"
)

// writeTimeout 单条审计日志写入超时
const writeTimeout = 5 * time.Second

// AuditLog 审计日志表
type AuditLog struct {
	ID        int64          `gorm:"primaryKey;autoIncrement"`
	Action    string         `gorm:"column:action;size:100;not null;index:idx_audit_action"`
	EntityID  string         `gorm:"column:entity_id;size:255;not null;default:'';index:idx_audit_entity"`
	Detail    string         `gorm:"column:detail;type:text"`
	Actor     datatypes.JSON `gorm:"column:actor"`
	RequestID string         `gorm:"column:request_id;size:64;not null;default:''"`
	CreatedAt time.Time      `gorm:"column:created_at;not null;index:idx_audit_created_at"`
}

// TableName specifies the table name
func (AuditLog) TableName() string {
	return "audit_logs"
}

// AutoMigrate 迁移审计日志表
func AutoMigrate(ctx context.Context, db *database.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(&AuditLog{}); err != nil {
		return fmt.Errorf("failed to migrate audit_logs: %w", err)
	}
	return nil
}

// Runner 异步执行任务（workerpool.Pool 实现）
type Runner interface {
	Go(task func())
}

// Recorder 审计日志写入器，写入在协程池中完成，失败只记录日志
type Recorder struct {
	db     *database.DB
	runner Runner
	logger *logger.Logger
}

// NewRecorder 创建审计写入器
func NewRecorder(db *database.DB, runner Runner, log *logger.Logger) *Recorder {
	return &Recorder{db: db, runner: runner, logger: log}
}

// Record 记录一条审计日志，不阻塞调用方
func (r *Recorder) Record(ctx context.Context, action, entityID, detail string, actor map[string]interface{}) {
	actorJSON, err := json.Marshal(actor)
	if err != nil {
		actorJSON = []byte("{}")
	}

	entry := &AuditLog{
		Action:    action,
		EntityID:  entityID,
		Detail:    detail,
		Actor:     datatypes.JSON(actorJSON),
		RequestID: logger.GetRequestID(ctx),
		CreatedAt: time.Now().UTC(),
	}

	r.runner.Go(func() {
		wctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := r.db.WithContext(wctx).Create(entry).Error; err != nil {
			r.logger.Warn("failed to write audit log",
				zap.String("action", action),
				zap.String("entity_id", entityID),
				zap.Error(err))
		}
	})
}

// Recent 最近的审计日志，新的在前
func (r *Recorder) Recent(ctx context.Context, limit int) ([]*AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var logs []*AuditLog
	if err := r.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return logs, nil
}
