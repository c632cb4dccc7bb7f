package data

import (
	"context"
)

// PoolHealth 协程池负载
type PoolHealth struct {
	Running   int   `json:"running"`
	Free      int   `json:"free"`
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// Health 依赖健康状态；未启用的依赖不出现
type Health struct {
	Database string      `json:"database"`
	Redis    string      `json:"redis,omitempty"`
	Pool     *PoolHealth `json:"pool,omitempty"`
}

// OK 数据库和已启用的 Redis 均可用
func (h Health) OK() bool {
	return h.Database == "ok" && (h.Redis == "" || h.Redis == "ok")
}

// Health 检查数据库、Redis 连通性并汇总协程池负载
func (d *Data) Health(ctx context.Context) Health {
	h := Health{Database: "ok"}
	if err := d.DB.HealthCheck(ctx); err != nil {
		h.Database = err.Error()
	}
	if d.RedisClient != nil {
		h.Redis = "ok"
		if err := d.RedisClient.Ping(ctx); err != nil {
			h.Redis = err.Error()
		}
	}
	if d.Pool != nil {
		stats := d.Pool.Stats()
		h.Pool = &PoolHealth{
			Running:   d.Pool.Running(),
			Free:      d.Pool.Free(),
			Submitted: stats.Submitted,
			Completed: stats.Completed,
			Failed:    stats.Failed,
		}
	}
	return h
}
