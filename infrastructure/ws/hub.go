package ws

import (
	"sync"

	"go.uber.org/zap"
)

// Hub is the in-process presence directory. It holds at most one live
// connection per user; the newest registration wins.
type Hub struct {
	clients            map[string]*UserClient
	broadcast          chan []byte
	done               chan struct{}
	closeOnce          sync.Once
	mu                 sync.RWMutex
	onClientUnregister func(client *UserClient) error
	log                *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients:   make(map[string]*UserClient),
		broadcast: make(chan []byte, 256),
		done:      make(chan struct{}),
		log:       log,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case message := <-h.broadcast:
			h.mu.RLock()
			for userId, client := range h.clients {
				if !client.Send(message) {
					h.log.Debug("broadcast dropped", zap.String("userId", userId))
				}
			}
			h.mu.RUnlock()
		case <-h.done:
			return
		}
	}
}

func (h *Hub) RegisterClient(client *UserClient) {
	h.mu.Lock()
	prev, replaced := h.clients[client.UserId]
	h.clients[client.UserId] = client
	h.mu.Unlock()

	if replaced && prev != client {
		prev.closeSend()
		h.log.Info("connection replaced",
			zap.String("userId", client.UserId),
			zap.String("oldConnId", prev.ConnId),
			zap.String("connId", client.ConnId))
		return
	}
	h.log.Info("client connected", zap.String("userId", client.UserId), zap.String("connId", client.ConnId))
}

// UnregisterClient removes the presence entry only when it still belongs to
// this connection. A late disconnect from a replaced connection is a no-op.
func (h *Hub) UnregisterClient(client *UserClient) {
	if !h.remove(client) {
		return
	}
	h.mu.RLock()
	callback := h.onClientUnregister
	h.mu.RUnlock()
	if callback != nil {
		if err := callback(client); err != nil {
			h.log.Warn("unregister callback failed", zap.String("userId", client.UserId), zap.Error(err))
		}
	}
}

func (h *Hub) remove(client *UserClient) bool {
	h.mu.Lock()
	current, ok := h.clients[client.UserId]
	if !ok || current.ConnId != client.ConnId {
		h.mu.Unlock()
		client.closeSend()
		return false
	}
	delete(h.clients, client.UserId)
	h.mu.Unlock()

	client.closeSend()
	h.log.Info("client disconnected", zap.String("userId", client.UserId), zap.String("connId", client.ConnId))
	return true
}

func (h *Hub) client(userId string) (*UserClient, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.clients[userId]
	return client, ok
}

func (h *Hub) SendToClient(userId string, message []byte) bool {
	client, ok := h.client(userId)
	if !ok {
		h.log.Debug("recipient offline", zap.String("userId", userId))
		return false
	}
	if !client.Send(message) {
		h.log.Debug("send buffer full", zap.String("userId", userId))
		return false
	}
	return true
}

func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	case <-h.done:
	}
}

func (h *Hub) IsOnline(userId string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userId]
	return ok
}

func (h *Hub) OnlineUsers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.clients))
	for userId := range h.clients {
		ids = append(ids, userId)
	}
	return ids
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) SetOnClientUnregister(callback func(client *UserClient) error) {
	h.mu.Lock()
	h.onClientUnregister = callback
	h.mu.Unlock()
}

// Close stops Run and drops every presence entry.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
		h.mu.Lock()
		clients := h.clients
		h.clients = make(map[string]*UserClient)
		h.mu.Unlock()
		for _, client := range clients {
			client.closeSend()
		}
	})
}
