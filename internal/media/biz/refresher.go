package biz

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lk2023060901/padel-media-backend/internal/media/types"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/logger"
)

// refreshLockKey 多实例部署时同一时刻只有一个实例执行刷新
const refreshLockKey = "media:refresh:lock"

// Locker 分布式锁（Redis 实现），未配置时为 nil
type Locker interface {
	Lock(ctx context.Context, key string, expiration time.Duration) (string, error)
	Unlock(ctx context.Context, key, token string) error
	Extend(ctx context.Context, key, token string, expiration time.Duration) error
}

// TaskRunner 并发执行任务并等待（workerpool.Pool 实现）
type TaskRunner interface {
	RunAll(ctx context.Context, tasks []func(ctx context.Context))
}

// RefreshConfig 后台刷新参数
type RefreshConfig struct {
	Interval     time.Duration
	LockTTL      time.Duration
	RoundTimeout time.Duration
}

// Refresher 存在未完成视频时定期轮询提供方，全部进入终态后自动停止
type Refresher struct {
	reconciler *Reconciler
	repo       MediaRepo
	pool       TaskRunner
	locker     Locker
	config     RefreshConfig
	logger     *logger.Logger

	mu      sync.Mutex
	running bool
	kicked  bool
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewRefresher 创建后台刷新器
func NewRefresher(reconciler *Reconciler, repo MediaRepo, pool TaskRunner, locker Locker, cfg RefreshConfig, log *logger.Logger) *Refresher {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	if cfg.RoundTimeout <= 0 {
		cfg.RoundTimeout = 4 * cfg.LockTTL
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Refresher{
		reconciler: reconciler,
		repo:       repo,
		pool:       pool,
		locker:     locker,
		config:     cfg,
		logger:     log,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Kick 启动刷新循环；已在运行时只标记需要再检查一轮
func (r *Refresher) Kick() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	if r.running {
		r.kicked = true
		return
	}
	r.running = true
	r.wg.Add(1)
	go r.loop()
}

// Running 刷新循环是否在运行
func (r *Refresher) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Stop 停止循环并等待当前一轮结束
func (r *Refresher) Stop() {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
	r.cancel()
	r.wg.Wait()
}

func (r *Refresher) loop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		r.mu.Lock()
		r.kicked = false
		r.mu.Unlock()

		remaining := r.tick(r.ctx)

		if remaining == 0 && r.finish() {
			return
		}
		select {
		case <-r.ctx.Done():
			r.mu.Lock()
			r.running = false
			r.mu.Unlock()
			return
		case <-ticker.C:
		}
	}
}

// finish 没有新的 Kick 时退出循环
func (r *Refresher) finish() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.kicked && r.ctx.Err() == nil {
		return false
	}
	r.running = false
	return true
}

// tick 刷新一轮，返回本轮开始时未完成的视频数
func (r *Refresher) tick(ctx context.Context) int {
	log := r.logger.With(zap.String("component", "media_refresher"))

	ctx, cancel := context.WithTimeout(ctx, r.config.RoundTimeout)
	defer cancel()

	videos, err := r.repo.ListAll(ctx, MediaFilter{Provider: types.ProviderVideo})
	if err != nil {
		log.Error("failed to list pending videos", zap.Error(err))
		return 1
	}
	pending := make([]*Media, 0, len(videos))
	for _, m := range videos {
		if m.Pending() {
			pending = append(pending, m)
		}
	}
	if len(pending) == 0 {
		return 0
	}

	if r.locker != nil {
		token, err := r.locker.Lock(ctx, refreshLockKey, r.config.LockTTL)
		if err != nil {
			log.Debug("refresh skipped, lock not acquired", zap.Error(err))
			return len(pending)
		}
		defer func() {
			if err := r.locker.Unlock(context.WithoutCancel(ctx), refreshLockKey, token); err != nil {
				log.Warn("failed to release refresh lock", zap.Error(err))
			}
		}()

		var roundCancel context.CancelFunc
		ctx, roundCancel = context.WithCancel(ctx)
		done := make(chan struct{})
		go r.keepLock(ctx, roundCancel, token, log, done)
		defer func() {
			roundCancel()
			<-done
		}()
	}

	actor := map[string]interface{}{"source": "refresh"}
	tasks := make([]func(ctx context.Context), 0, len(pending))
	for _, m := range pending {
		m := m
		tasks = append(tasks, func(ctx context.Context) {
			if _, err := r.reconciler.poll(ctx, m, actor, false); err != nil {
				log.Warn("background poll failed", zap.Int64("media_id", m.ID), zap.Error(err))
			}
		})
	}
	r.pool.RunAll(ctx, tasks)

	log.Debug("refresh round finished", zap.Int("pending", len(pending)))
	return len(pending)
}

// keepLock 持锁期间按 LockTTL/3 续期；续期失败说明锁已被他人持有，取消本轮
func (r *Refresher) keepLock(ctx context.Context, cancel context.CancelFunc, token string, log *logger.Logger, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.config.LockTTL / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.locker.Extend(ctx, refreshLockKey, token, r.config.LockTTL); err != nil {
				if ctx.Err() == nil {
					log.Warn("refresh lock lost, round aborted", zap.Error(err))
					cancel()
				}
				return
			}
		}
	}
}
