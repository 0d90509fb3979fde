package ws

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	presencePrefix   = "presence:"
	channelPrefix    = "messages:"
	broadcastChannel = "broadcast"
	evictChannel     = "presence:evict"
	redisOpTimeout   = 2 * time.Second
)

// removePresence deletes the presence key only while it still names the
// given connection.
var removePresence = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisHub shares presence across server instances. Local connections live
// in an embedded Hub; remote recipients are reached over Redis pub/sub.
//
// The presence key names the one live connection as serverId|connId. A
// registration on any instance is announced on the evict channel so the
// instance holding the previous connection drops it.
type RedisHub struct {
	local       *Hub
	redisClient *redis.Client
	pubsub      *redis.PubSub
	serverId    string
	log         *zap.Logger

	mu                 sync.RWMutex
	onClientUnregister func(client *UserClient) error
	closeOnce          sync.Once
}

type RedisMessage struct {
	FromServerId string `json:"fromServerId"`
	ToUserId     string `json:"toUserId,omitempty"`
	Payload      []byte `json:"payload"`
}

func NewRedisHub(client *redis.Client, serverId string, log *zap.Logger) *RedisHub {
	return &RedisHub{
		local:       NewHub(log),
		redisClient: client,
		pubsub:      client.PSubscribe(context.Background(), channelPrefix+"*", broadcastChannel, evictChannel),
		serverId:    serverId,
		log:         log.With(zap.String("serverId", serverId)),
	}
}

func presenceKey(userId string) string {
	return presencePrefix + userId
}

func (h *RedisHub) presenceValue(client *UserClient) string {
	return h.serverId + "|" + client.ConnId
}

func (h *RedisHub) Run() {
	go h.subscribeRedis()
	h.local.Run()
}

func (h *RedisHub) subscribeRedis() {
	h.log.Info("redis subscriber started")
	for msg := range h.pubsub.Channel() {
		var redisMsg RedisMessage
		if err := json.Unmarshal([]byte(msg.Payload), &redisMsg); err != nil {
			h.log.Warn("invalid redis message", zap.Error(err))
			continue
		}
		if redisMsg.FromServerId == h.serverId {
			continue
		}
		switch msg.Channel {
		case broadcastChannel:
			h.local.Broadcast(redisMsg.Payload)
		case evictChannel:
			h.evictLocal(redisMsg.ToUserId)
		default:
			h.local.SendToClient(redisMsg.ToUserId, redisMsg.Payload)
		}
	}
}

// evictLocal drops the user's local connection after it registered
// elsewhere. The unregister callback does not fire, and the connection's own
// disconnect later finds nothing to remove.
func (h *RedisHub) evictLocal(userId string) {
	client, ok := h.local.client(userId)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	owner, err := h.redisClient.Get(ctx, presenceKey(userId)).Result()
	if err == nil && owner == h.presenceValue(client) {
		// registered here again after the announcement was sent
		return
	}

	if h.local.remove(client) {
		h.log.Info("connection moved to another instance",
			zap.String("userId", userId),
			zap.String("connId", client.ConnId),
			zap.String("owner", owner))
	}
}

func (h *RedisHub) RegisterClient(client *UserClient) {
	h.local.RegisterClient(client)

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := h.redisClient.Set(ctx, presenceKey(client.UserId), h.presenceValue(client), 0).Err(); err != nil {
		h.log.Warn("announce presence", zap.String("userId", client.UserId), zap.Error(err))
		return
	}
	h.publish(ctx, evictChannel, RedisMessage{
		FromServerId: h.serverId,
		ToUserId:     client.UserId,
		Payload:      []byte(client.ConnId),
	})
}

func (h *RedisHub) UnregisterClient(client *UserClient) {
	if !h.local.remove(client) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	removed, err := removePresence.Run(ctx, h.redisClient, []string{presenceKey(client.UserId)}, h.presenceValue(client)).Int()
	if err != nil {
		h.log.Warn("remove presence", zap.String("userId", client.UserId), zap.Error(err))
	} else if removed == 0 {
		// the user is live on another instance
		h.log.Debug("presence owned elsewhere", zap.String("userId", client.UserId), zap.String("connId", client.ConnId))
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

// SendToClient routes by the presence key: local delivery only when the key
// names this instance's live connection, otherwise a publish to the owning
// instance. Users with no key are offline. Without Redis it falls back to
// local delivery.
func (h *RedisHub) SendToClient(userId string, message []byte) bool {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	owner, err := h.redisClient.Get(ctx, presenceKey(userId)).Result()
	if errors.Is(err, redis.Nil) {
		h.log.Debug("recipient offline", zap.String("userId", userId))
		return false
	}
	if err != nil {
		h.log.Warn("presence lookup", zap.String("userId", userId), zap.Error(err))
		return h.local.SendToClient(userId, message)
	}

	if strings.HasPrefix(owner, h.serverId+"|") {
		client, ok := h.local.client(userId)
		if !ok || owner != h.presenceValue(client) {
			h.log.Debug("stale presence", zap.String("userId", userId), zap.String("owner", owner))
			return false
		}
		if !client.Send(message) {
			h.log.Debug("send buffer full", zap.String("userId", userId))
			return false
		}
		return true
	}

	return h.publish(ctx, channelPrefix+userId, RedisMessage{
		FromServerId: h.serverId,
		ToUserId:     userId,
		Payload:      message,
	})
}

func (h *RedisHub) Broadcast(message []byte) {
	h.local.Broadcast(message)

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	h.publish(ctx, broadcastChannel, RedisMessage{FromServerId: h.serverId, Payload: message})
}

func (h *RedisHub) publish(ctx context.Context, channel string, msg RedisMessage) bool {
	raw, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("marshal redis message", zap.Error(err))
		return false
	}
	if err := h.redisClient.Publish(ctx, channel, raw).Err(); err != nil {
		h.log.Warn("publish to redis", zap.String("channel", channel), zap.Error(err))
		return false
	}
	return true
}

func (h *RedisHub) IsOnline(userId string) bool {
	if h.local.IsOnline(userId) {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	n, err := h.redisClient.Exists(ctx, presenceKey(userId)).Result()
	if err != nil {
		h.log.Warn("presence lookup", zap.String("userId", userId), zap.Error(err))
		return false
	}
	return n > 0
}

// OnlineUsers lists users connected to any instance.
func (h *RedisHub) OnlineUsers() []string {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	seen := make(map[string]struct{})
	for _, userId := range h.local.OnlineUsers() {
		seen[userId] = struct{}{}
	}
	iter := h.redisClient.Scan(ctx, 0, presencePrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		seen[strings.TrimPrefix(iter.Val(), presencePrefix)] = struct{}{}
	}
	if err := iter.Err(); err != nil {
		h.log.Warn("scan presence", zap.Error(err))
	}

	ids := make([]string, 0, len(seen))
	for userId := range seen {
		ids = append(ids, userId)
	}
	return ids
}

func (h *RedisHub) GetClientCount() int {
	return h.local.GetClientCount()
}

func (h *RedisHub) SetOnClientUnregister(callback func(client *UserClient) error) {
	h.mu.Lock()
	h.onClientUnregister = callback
	h.mu.Unlock()
}

// Close releases this instance's presence keys and stops the subscriber.
func (h *RedisHub) Close() {
	h.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
		defer cancel()

		h.local.mu.RLock()
		clients := make([]*UserClient, 0, len(h.local.clients))
		for _, client := range h.local.clients {
			clients = append(clients, client)
		}
		h.local.mu.RUnlock()

		for _, client := range clients {
			removePresence.Run(ctx, h.redisClient, []string{presenceKey(client.UserId)}, h.presenceValue(client))
		}
		h.pubsub.Close()
		h.local.Close()
	})
}
