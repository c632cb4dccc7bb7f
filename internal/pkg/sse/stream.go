package sse

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const sendWait = 2 * time.Second

// Stream SSE 流(封装 Client 和 gin.Context)
type Stream struct {
	client    *Client
	ctx       *gin.Context
	hub       *Hub
	heartbeat time.Duration

	onError func(error)

	closed atomic.Bool
}

// StreamBuilder 构建器
type StreamBuilder struct {
	ginCtx     *gin.Context
	hub        *Hub
	resource   string
	bufferSize int
	heartbeat  time.Duration
	onError    func(error)
}

// NewStream 创建 Stream 构建器
func NewStream(c *gin.Context, hub *Hub) *StreamBuilder {
	return &StreamBuilder{
		ginCtx:     c,
		hub:        hub,
		bufferSize: 32,
		heartbeat:  30 * time.Second,
	}
}

// WithResource 设置资源 ID
func (b *StreamBuilder) WithResource(resource string) *StreamBuilder {
	b.resource = resource
	return b
}

// WithBufferSize 设置 Channel 缓冲区大小
func (b *StreamBuilder) WithBufferSize(size int) *StreamBuilder {
	b.bufferSize = size
	return b
}

// WithHeartbeat 设置心跳间隔(0 表示禁用心跳)
func (b *StreamBuilder) WithHeartbeat(interval time.Duration) *StreamBuilder {
	b.heartbeat = interval
	return b
}

// OnError 设置错误处理钩子
func (b *StreamBuilder) OnError(fn func(error)) *StreamBuilder {
	b.onError = fn
	return b
}

// Build 构建 Stream 并注册到 Hub
func (b *StreamBuilder) Build() *Stream {
	resource := b.resource
	if resource == "" {
		resource = "stream:" + uuid.New().String()
	}

	s := &Stream{
		client: &Client{
			ID:       uuid.New().String(),
			Channel:  make(chan Event, b.bufferSize),
			Resource: resource,
		},
		ctx:       b.ginCtx,
		hub:       b.hub,
		heartbeat: b.heartbeat,
		onError:   b.onError,
	}
	b.hub.Register(s.client)
	return s
}

// Send 发送事件(并发安全)，缓冲区满时最多等待 sendWait 后丢弃
func (s *Stream) Send(eventType string, data interface{}) error {
	return s.send(eventType, data, sendWait)
}

// TrySend 发送事件，缓冲区满时立即丢弃（用于高频进度事件）
func (s *Stream) TrySend(eventType string, data interface{}) error {
	return s.send(eventType, data, 0)
}

func (s *Stream) send(eventType string, data interface{}, wait time.Duration) error {
	if s.closed.Load() {
		return fmt.Errorf("stream closed")
	}

	if !s.hub.deliver(s.client, Event{Type: eventType, Data: data}, wait) {
		err := fmt.Errorf("stream buffer full or closed, event dropped: %s", eventType)
		s.reportError(err)
		return err
	}
	return nil
}

// Close 关闭流(幂等)，结束 Serve 循环
func (s *Stream) Close() {
	if s.closed.CompareAndSwap(false, true) {
		s.hub.Unregister(s.client)
	}
}

// Serve 写出事件直到客户端断开或 Close 被调用(阻塞)
func (s *Stream) Serve() {
	w := s.ctx.Writer
	s.ctx.Header("Content-Type", "text/event-stream")
	s.ctx.Header("Cache-Control", "no-cache")
	s.ctx.Header("Connection", "keep-alive")
	s.ctx.Header("X-Accel-Buffering", "no")
	s.ctx.Status(http.StatusOK)
	defer s.Close()

	connected := Event{
		Type: "connected",
		Data: map[string]interface{}{"client_id": s.client.ID, "resource": s.client.Resource},
	}
	if _, err := fmt.Fprint(w, connected.FormatSSE()); err != nil {
		s.reportError(err)
		return
	}
	w.Flush()

	var heartbeat <-chan time.Time
	if s.heartbeat > 0 {
		ticker := time.NewTicker(s.heartbeat)
		defer ticker.Stop()
		heartbeat = ticker.C
	}

	clientGone := s.ctx.Request.Context().Done()
	for {
		select {
		case <-clientGone:
			return
		case event, ok := <-s.client.Channel:
			if !ok {
				return
			}
			if _, err := fmt.Fprint(w, event.FormatSSE()); err != nil {
				s.reportError(err)
				return
			}
			w.Flush()
		case <-heartbeat:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				s.reportError(err)
				return
			}
			w.Flush()
		}
	}
}

// ClientID 获取客户端 ID
func (s *Stream) ClientID() string {
	return s.client.ID
}

// Resource 获取资源 ID
func (s *Stream) Resource() string {
	return s.client.Resource
}

// IsClosed 检查是否已关闭
func (s *Stream) IsClosed() bool {
	return s.closed.Load()
}

func (s *Stream) reportError(err error) {
	if s.onError != nil {
		s.onError(err)
	}
}
