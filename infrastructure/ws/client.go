package ws

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Base64 data URLs for images travel over the socket.
	maxMessageSize = 8 << 20

	sendBufferSize = 256
)

// InboundHandler processes one text frame received from the client.
type InboundHandler func(ctx context.Context, client *UserClient, raw []byte)

// UserClient is a middleman between one websocket connection and the hub.
type UserClient struct {
	UserId string
	ConnId string

	hub  IHub
	conn *websocket.Conn
	log  *zap.Logger

	mu         sync.Mutex
	closed     bool
	send       chan []byte
	onActivity func()
}

func NewClient(hub IHub, conn *websocket.Conn, userId string, log *zap.Logger) *UserClient {
	return &UserClient{
		UserId: userId,
		ConnId: uuid.NewString(),
		hub:    hub,
		conn:   conn,
		log:    log,
		send:   make(chan []byte, sendBufferSize),
	}
}

// Send queues a frame without blocking. It reports false when the buffer is
// full or the connection has been shut down.
func (c *UserClient) Send(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

// OnActivity registers fn to run on every inbound frame and pong. Set it
// before starting the pumps.
func (c *UserClient) OnActivity(fn func()) {
	c.onActivity = fn
}

func (c *UserClient) touch() {
	if c.onActivity != nil {
		c.onActivity()
	}
}

func (c *UserClient) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ReadPump pumps frames from the connection to handle until the peer goes
// away, then unregisters the client.
func (c *UserClient) ReadPump(ctx context.Context, handle InboundHandler) {
	defer func() {
		c.hub.UnregisterClient(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.touch()
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("websocket read failed", zap.String("userId", c.UserId), zap.Error(err))
			}
			return
		}
		c.touch()
		if messageType != websocket.TextMessage {
			continue
		}
		if handle != nil {
			handle(ctx, c, raw)
		}
	}
}

// WritePump pumps queued frames to the connection and keeps it alive with
// pings. Each queued payload is written as its own frame.
func (c *UserClient) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
