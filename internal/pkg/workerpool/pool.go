package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

var (
	ErrPoolClosed = errors.New("worker pool is closed")
	ErrPoolFull   = errors.New("worker pool is overloaded")
)

// Config Worker Pool 配置
type Config struct {
	Size             int           `mapstructure:"size"`               // worker 数量
	MaxBlockingTasks int           `mapstructure:"max_blocking_tasks"` // 等待队列上限，0 表示不限
	Nonblocking      bool          `mapstructure:"nonblocking"`        // 池满时立即返回 ErrPoolFull
	ExpiryDuration   time.Duration `mapstructure:"expiry_duration"`    // 空闲 worker 回收时间
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Size:             16,
		MaxBlockingTasks: 1000,
		ExpiryDuration:   time.Minute,
	}
}

// Statistics 统计信息
type Statistics struct {
	Submitted int64
	Completed int64
	Failed    int64 // 任务 panic 次数
	Running   int64
}

// Pool 基于 ants 的协程池
type Pool struct {
	pool   *ants.Pool
	logger *zap.Logger

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	running   atomic.Int64
}

// New 创建协程池
func New(config *Config, logger *zap.Logger) (*Pool, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Size <= 0 {
		return nil, fmt.Errorf("worker pool size must be > 0, got %d", config.Size)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Pool{logger: logger}

	opts := []ants.Option{
		ants.WithMaxBlockingTasks(config.MaxBlockingTasks),
		ants.WithNonblocking(config.Nonblocking),
		ants.WithPanicHandler(func(v interface{}) {
			p.failed.Add(1)
			logger.Error("worker task panicked", zap.Any("panic", v), zap.Stack("stacktrace"))
		}),
	}
	if config.ExpiryDuration > 0 {
		opts = append(opts, ants.WithExpiryDuration(config.ExpiryDuration))
	}

	pool, err := ants.NewPool(config.Size, opts...)
	if err != nil {
		return nil, fmt.Errorf("create ants pool: %w", err)
	}
	p.pool = pool
	return p, nil
}

// Submit 提交任务
func (p *Pool) Submit(task func()) error {
	p.submitted.Add(1)
	err := p.pool.Submit(func() {
		p.running.Add(1)
		defer func() {
			p.running.Add(-1)
			p.completed.Add(1)
		}()
		task()
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ants.ErrPoolClosed):
		return ErrPoolClosed
	case errors.Is(err, ants.ErrPoolOverload):
		return ErrPoolFull
	default:
		return err
	}
}

// Go 提交任务，池不可用时在新协程中执行，保证任务不丢失
func (p *Pool) Go(task func()) {
	if err := p.Submit(task); err != nil {
		p.logger.Warn("worker pool rejected task, running inline goroutine", zap.Error(err))
		go task()
	}
}

// RunAll 并发执行一组任务并等待全部结束，ctx 取消后未开始的任务被跳过
func (p *Pool) RunAll(ctx context.Context, tasks []func(ctx context.Context)) {
	var wg sync.WaitGroup
	for _, task := range tasks {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		task := task
		if err := p.Submit(func() {
			defer wg.Done()
			task(ctx)
		}); err != nil {
			wg.Done()
			p.logger.Warn("worker pool rejected task", zap.Error(err))
		}
	}
	wg.Wait()
}

// Running 运行中的 worker 数
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Free 空闲 worker 数
func (p *Pool) Free() int {
	return p.pool.Free()
}

// Stats 统计信息
func (p *Pool) Stats() Statistics {
	return Statistics{
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Running:   p.running.Load(),
	}
}

// Shutdown 关闭协程池，等待运行中的任务结束（最多 timeout）
func (p *Pool) Shutdown(timeout time.Duration) {
	if err := p.pool.ReleaseTimeout(timeout); err != nil {
		p.logger.Warn("worker pool release timeout", zap.Error(err))
	}
}
