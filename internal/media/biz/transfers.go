package biz

import (
	"context"
	"sync"
	"time"

	"github.com/lk2023060901/padel-media-backend/internal/pkg/mediaid"
)

// transferTTL 浏览器直传句柄的保留时间，超时后不再可取消
const transferTTL = 6 * time.Hour

// transfer 进行中的上传
type transfer struct {
	handle    string
	cancel    context.CancelFunc
	startedAt time.Time
	// direct 浏览器直传，服务端不持有字节流
	direct bool

	mu        sync.Mutex
	mediaID   int64
	uploadID  string
	cancelled bool
}

// bind 关联占位记录；已被取消时返回 false，由调用方自行清理
func (t *transfer) bind(mediaID int64, uploadID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled {
		return false
	}
	t.mediaID = mediaID
	t.uploadID = uploadID
	return true
}

// markCancelled 标记取消并返回已关联的占位记录
func (t *transfer) markCancelled() (mediaID int64, uploadID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelled = true
	return t.mediaID, t.uploadID
}

func (t *transfer) isCancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// TransferRegistry 传输句柄表，每个文件独立可取消
type TransferRegistry struct {
	mu        sync.Mutex
	transfers map[string]*transfer
	now       func() time.Time
}

// NewTransferRegistry 创建句柄表
func NewTransferRegistry() *TransferRegistry {
	return &TransferRegistry{
		transfers: make(map[string]*transfer),
		now:       time.Now,
	}
}

// begin 登记新传输，返回绑定了取消函数的 ctx
func (r *TransferRegistry) begin(parent context.Context, direct bool) (*transfer, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	t := &transfer{
		handle:    mediaid.TransferHandle(),
		cancel:    cancel,
		startedAt: r.now(),
		direct:    direct,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()
	r.transfers[t.handle] = t
	return t, ctx
}

// finish 传输结束后注销
func (r *TransferRegistry) finish(t *transfer) {
	r.mu.Lock()
	delete(r.transfers, t.handle)
	r.mu.Unlock()
	t.cancel()
}

// take 取出句柄（取消时调用），不存在返回 nil
func (r *TransferRegistry) take(handle string) *transfer {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.transfers[handle]
	if !ok {
		return nil
	}
	delete(r.transfers, handle)
	return t
}

// releaseUpload 视频已关联后注销对应的浏览器直传句柄
func (r *TransferRegistry) releaseUpload(uploadID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for handle, t := range r.transfers {
		if !t.direct {
			continue
		}
		t.mu.Lock()
		match := t.uploadID == uploadID
		t.mu.Unlock()
		if match {
			delete(r.transfers, handle)
			t.cancel()
		}
	}
}

// Len 进行中的传输数量
func (r *TransferRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.transfers)
}

func (r *TransferRegistry) sweepLocked() {
	cutoff := r.now().Add(-transferTTL)
	for handle, t := range r.transfers {
		if t.startedAt.Before(cutoff) {
			delete(r.transfers, handle)
			t.cancel()
		}
	}
}
