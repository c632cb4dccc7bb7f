package sse

import (
	"encoding/json"
	"sync"
	"time"
)

// Event SSE 事件
type Event struct {
	Type string      `json:"type"` // 事件类型
	Data interface{} `json:"data"` // 事件数据
}

// Client SSE 客户端连接
type Client struct {
	ID       string
	Channel  chan Event
	Resource string // 订阅的资源 (如 media:admin, batch:<id>)
}

// Hub SSE 连接管理器
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{} // resource -> clients
}

// NewHub 创建 Hub
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
	}
}

// Register 注册客户端
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.Resource] == nil {
		h.clients[client.Resource] = make(map[*Client]struct{})
	}
	h.clients[client.Resource][client] = struct{}{}
}

// Unregister 注销客户端
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.clients[client.Resource]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.Channel)
	if len(clients) == 0 {
		delete(h.clients, client.Resource)
	}
}

// Broadcast 向订阅指定资源的所有客户端广播消息，返回送达的客户端数
func (h *Hub) Broadcast(resource string, event Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for client := range h.clients[resource] {
		select {
		case client.Channel <- event:
			delivered++
		default:
			// 客户端缓冲区满,跳过
		}
	}
	return delivered
}

// deliver 向单个已注册客户端投递消息，最多等待 wait；客户端已注销时返回 false
func (h *Hub) deliver(client *Client, event Event, wait time.Duration) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.clients[client.Resource][client]; !ok {
		return false
	}
	if wait <= 0 {
		select {
		case client.Channel <- event:
			return true
		default:
			return false
		}
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case client.Channel <- event:
		return true
	case <-timer.C:
		return false
	}
}

// GetClientCount 获取订阅指定资源的客户端数量
func (h *Hub) GetClientCount(resource string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[resource])
}

// FormatSSE 格式化为 SSE 消息格式。map 数据会带上 type 字段，其他数据放在 payload 中
func (e Event) FormatSSE() string {
	var body map[string]interface{}
	if m, ok := e.Data.(map[string]interface{}); ok {
		body = make(map[string]interface{}, len(m)+1)
		for k, v := range m {
			body[k] = v
		}
	} else {
		body = map[string]interface{}{"payload": e.Data}
	}
	body["type"] = e.Type

	data, _ := json.Marshal(body)
	return "event: " + e.Type + "\ndata: " + string(data) + "\n\n"
}
