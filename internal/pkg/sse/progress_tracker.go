package sse

import (
	"fmt"
	"sync/atomic"
)

// Sender 事件发送方（Stream 实现）
type Sender interface {
	Send(eventType string, data interface{}) error
	TrySend(eventType string, data interface{}) error
}

// ProgressTracker 批量上传进度跟踪器，事件：
// batch-start, file-progress, file-success, file-failed, batch-complete
type ProgressTracker struct {
	sender       Sender
	total        int
	completed    atomic.Int32
	successCount atomic.Int32
	failedCount  atomic.Int32
	lastPercent  atomic.Int32
}

// NewProgressTracker 创建进度跟踪器
func NewProgressTracker(sender Sender, total int) *ProgressTracker {
	return &ProgressTracker{
		sender: sender,
		total:  total,
	}
}

// Start 发送开始事件
func (t *ProgressTracker) Start() error {
	return t.sender.Send("batch-start", map[string]interface{}{
		"total_count": t.total,
		"message":     fmt.Sprintf("Starting upload of %d files", t.total),
	})
}

// FileStarted 发送单个文件的传输句柄，前端据此取消
func (t *ProgressTracker) FileStarted(index int, name, handle string) error {
	t.lastPercent.Store(-1)
	return t.sender.Send("file-start", map[string]interface{}{
		"index":     index + 1,
		"total":     t.total,
		"item_name": name,
		"handle":    handle,
	})
}

// Progress 推送字节进度，每变化 5% 推送一次
func (t *ProgressTracker) Progress(index int, name string, sent, size int64) {
	if size <= 0 {
		return
	}
	percent := int32(sent * 100 / size)
	last := t.lastPercent.Load()
	if percent < 100 && last >= 0 && percent-last < 5 {
		return
	}
	t.lastPercent.Store(percent)
	_ = t.sender.TrySend("file-progress", map[string]interface{}{
		"index":     index + 1,
		"total":     t.total,
		"item_name": name,
		"sent":      sent,
		"size":      size,
		"percent":   percent,
	})
}

// RecordSuccess 记录成功并推送事件
func (t *ProgressTracker) RecordSuccess(index int, name string, data interface{}) error {
	t.successCount.Add(1)
	completed := t.completed.Add(1)

	eventData := map[string]interface{}{
		"index":     index + 1,
		"total":     t.total,
		"completed": int(completed),
		"item_name": name,
		"message":   fmt.Sprintf("File '%s' uploaded successfully", name),
	}
	if data != nil {
		eventData["data"] = data
	}
	return t.sender.Send("file-success", eventData)
}

// RecordFailure 记录失败并推送事件
func (t *ProgressTracker) RecordFailure(index int, name string, message string) error {
	t.failedCount.Add(1)
	completed := t.completed.Add(1)

	return t.sender.Send("file-failed", map[string]interface{}{
		"index":     index + 1,
		"total":     t.total,
		"completed": int(completed),
		"item_name": name,
		"error":     message,
		"message":   fmt.Sprintf("File '%s' upload failed: %s", name, message),
	})
}

// Complete 发送完成事件
func (t *ProgressTracker) Complete() error {
	success := int(t.successCount.Load())
	failed := int(t.failedCount.Load())

	return t.sender.Send("batch-complete", map[string]interface{}{
		"total_count":   t.total,
		"success_count": success,
		"failed_count":  failed,
		"message":       fmt.Sprintf("Upload completed: %d succeeded, %d failed", success, failed),
	})
}

// GetStats 获取当前统计信息
func (t *ProgressTracker) GetStats() (completed, success, failed int) {
	return int(t.completed.Load()), int(t.successCount.Load()), int(t.failedCount.Load())
}
