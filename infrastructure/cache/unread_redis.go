package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisUnreadStore keeps unread counters in a hash per viewer so every
// server instance sees the same badge state. The viewing key carries a TTL.
type RedisUnreadStore struct {
	client     *redis.Client
	viewingTTL time.Duration
}

func NewRedisUnreadStore(client *redis.Client, viewingTTL time.Duration) *RedisUnreadStore {
	return &RedisUnreadStore{client: client, viewingTTL: viewingTTL}
}

func unreadHash(viewerId string) string {
	return "unread:" + viewerId
}

func (s *RedisUnreadStore) Increment(ctx context.Context, viewerId, peerId string) (int, error) {
	n, err := s.client.HIncrBy(ctx, unreadHash(viewerId), peerId, 1).Result()
	if err != nil {
		return 0, fmt.Errorf("hincrby unread: %w", err)
	}
	return int(n), nil
}

func (s *RedisUnreadStore) Reset(ctx context.Context, viewerId, peerId string) error {
	return s.client.HDel(ctx, unreadHash(viewerId), peerId).Err()
}

func (s *RedisUnreadStore) Counts(ctx context.Context, viewerId string) (map[string]int, error) {
	raw, err := s.client.HGetAll(ctx, unreadHash(viewerId)).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall unread: %w", err)
	}
	counts := make(map[string]int, len(raw))
	for peerId, v := range raw {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			continue
		}
		counts[peerId] = n
	}
	return counts, nil
}

func (s *RedisUnreadStore) SetViewing(ctx context.Context, viewerId, peerId string) error {
	return s.client.Set(ctx, viewingKey(viewerId), peerId, s.viewingTTL).Err()
}

func (s *RedisUnreadStore) TouchViewing(ctx context.Context, viewerId string) error {
	if s.viewingTTL <= 0 {
		return nil
	}
	return s.client.Expire(ctx, viewingKey(viewerId), s.viewingTTL).Err()
}

func (s *RedisUnreadStore) ClearViewing(ctx context.Context, viewerId string) error {
	return s.client.Del(ctx, viewingKey(viewerId)).Err()
}

func (s *RedisUnreadStore) Viewing(ctx context.Context, viewerId string) (string, error) {
	peerId, err := s.client.Get(ctx, viewingKey(viewerId)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return peerId, err
}
