package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/lk2023060901/padel-media-backend/internal/media/biz"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/logger"
	pkgredis "github.com/lk2023060901/padel-media-backend/internal/pkg/redis"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/sse"
)

// AdminResource 后台页面订阅的 SSE 资源
const AdminResource = "media:admin"

// invalidateChannel 多实例间同步失效事件的频道
const invalidateChannel = "media:invalidate"

// scopeKeys 各范围对应的缓存键
var scopeKeys = map[string][]string{
	biz.ScopeFolders: {biz.FolderCacheKey},
}

// JSONCache Redis JSON 缓存；未配置 Redis 时所有读取都未命中
type JSONCache struct {
	client *pkgredis.Client
	logger *logger.Logger
}

// NewJSONCache 创建缓存，client 可为 nil
func NewJSONCache(client *pkgredis.Client, log *logger.Logger) *JSONCache {
	return &JSONCache{client: client, logger: log}
}

// GetJSON 读取并解码，未命中或出错返回 false
func (c *JSONCache) GetJSON(ctx context.Context, key string, dst interface{}) bool {
	if c.client == nil {
		return false
	}
	raw, err := c.client.Get(ctx, c.client.Key(key))
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		c.logger.Warn("discarding undecodable cache entry", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// setIfGenerationScript 代数未变时写入，KEYS[1] 数据键 KEYS[2] 代数键
const setIfGenerationScript = `
if tonumber(redis.call("get", KEYS[2]) or "0") == tonumber(ARGV[1]) then
	redis.call("set", KEYS[1], ARGV[2], "px", ARGV[3])
	return 1
end
return 0
`

func generationKey(key string) string {
	return key + ":gen"
}

// Generation 键的失效代数，Invalidate 每次递增；读取失败时返回 0
func (c *JSONCache) Generation(ctx context.Context, key string) int64 {
	if c.client == nil {
		return 0
	}
	raw, err := c.client.Get(ctx, c.client.Key(generationKey(key)))
	if err != nil {
		return 0
	}
	n, _ := strconv.ParseInt(raw, 10, 64)
	return n
}

// SetJSONAt 编码后写入，期间键已被失效（代数不等于 gen）时放弃；失败只记录日志
func (c *JSONCache) SetJSONAt(ctx context.Context, key string, gen int64, value interface{}, ttl time.Duration) {
	if c.client == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("failed to encode cache entry", zap.String("key", key), zap.Error(err))
		return
	}
	keys := []string{c.client.Key(key), c.client.Key(generationKey(key))}
	result, err := c.client.Eval(ctx, setIfGenerationScript, keys, gen, raw, ttl.Milliseconds())
	if err != nil {
		return
	}
	if n, _ := result.(int64); n == 0 {
		c.logger.Debug("stale cache entry discarded", zap.String("key", key), zap.Int64("generation", gen))
	}
}

// Invalidator 删除缓存并通知后台页面刷新。配置 Redis 时经频道广播，所有实例的页面都会收到
type Invalidator struct {
	client *pkgredis.Client
	hub    *sse.Hub
	logger *logger.Logger
}

// NewInvalidator 创建失效器，client 可为 nil
func NewInvalidator(client *pkgredis.Client, hub *sse.Hub, log *logger.Logger) *Invalidator {
	return &Invalidator{client: client, hub: hub, logger: log}
}

type invalidateMessage struct {
	Scopes []string `json:"scopes"`
}

// Invalidate 失效指定范围
func (i *Invalidator) Invalidate(ctx context.Context, scopes ...string) {
	if i.client == nil {
		i.broadcast(scopes)
		return
	}

	var keys []string
	for _, s := range scopes {
		for _, k := range scopeKeys[s] {
			// 先递增代数，进行中的扫描结果不再写回
			if _, err := i.client.Incr(ctx, i.client.Key(generationKey(k))); err != nil {
				i.logger.WithContext(ctx).Warn("cache generation bump failed", zap.String("key", k), zap.Error(err))
			}
			keys = append(keys, i.client.Key(k))
		}
	}
	if _, err := i.client.Del(ctx, keys...); err != nil {
		i.logger.WithContext(ctx).Warn("cache invalidation failed", zap.Strings("scopes", scopes), zap.Error(err))
	}

	payload, _ := json.Marshal(invalidateMessage{Scopes: scopes})
	if _, err := i.client.Publish(ctx, i.client.Key(invalidateChannel), payload); err != nil {
		i.broadcast(scopes)
	}
}

// Listen 把频道消息转发给本实例的 SSE 客户端，ctx 取消后返回
func (i *Invalidator) Listen(ctx context.Context) {
	if i.client == nil {
		return
	}

	sub := i.client.Subscribe(ctx, i.client.Key(invalidateChannel))
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var m invalidateMessage
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				i.logger.Warn("malformed invalidation message", zap.Error(err))
				continue
			}
			i.broadcast(m.Scopes)
		}
	}
}

func (i *Invalidator) broadcast(scopes []string) {
	i.hub.Broadcast(AdminResource, sse.Event{
		Type: "invalidate",
		Data: map[string]interface{}{"scopes": scopes},
	})
}
