package cache

import (
	"context"
	"fmt"
	"time"
)

// UnreadStore keeps per-viewer unread counters and the conversation each
// viewer currently has open, in process memory. The open conversation
// expires after viewingTTL unless it is touched.
type UnreadStore struct {
	cache      *MemCache
	viewingTTL time.Duration
}

func NewUnreadStore(cache *MemCache, viewingTTL time.Duration) *UnreadStore {
	return &UnreadStore{cache: cache, viewingTTL: viewingTTL}
}

func unreadPrefix(viewerId string) string {
	return "unread:" + viewerId + ":"
}

func viewingKey(viewerId string) string {
	return "viewing:" + viewerId
}

func (s *UnreadStore) Increment(_ context.Context, viewerId, peerId string) (int, error) {
	n, err := s.cache.Increment(unreadPrefix(viewerId)+peerId, 1)
	if err != nil {
		return 0, fmt.Errorf("increment unread: %w", err)
	}
	return int(n), nil
}

func (s *UnreadStore) Reset(_ context.Context, viewerId, peerId string) error {
	s.cache.Delete(unreadPrefix(viewerId) + peerId)
	return nil
}

func (s *UnreadStore) Counts(_ context.Context, viewerId string) (map[string]int, error) {
	counts := make(map[string]int)
	for peerId, v := range s.cache.WithPrefix(unreadPrefix(viewerId)) {
		n, ok := v.(int64)
		if !ok || n <= 0 {
			continue
		}
		counts[peerId] = int(n)
	}
	return counts, nil
}

func (s *UnreadStore) SetViewing(_ context.Context, viewerId, peerId string) error {
	s.cache.Set(viewingKey(viewerId), peerId, s.viewingTTL)
	return nil
}

func (s *UnreadStore) TouchViewing(_ context.Context, viewerId string) error {
	s.cache.Touch(viewingKey(viewerId), s.viewingTTL)
	return nil
}

func (s *UnreadStore) ClearViewing(_ context.Context, viewerId string) error {
	s.cache.Delete(viewingKey(viewerId))
	return nil
}

func (s *UnreadStore) Viewing(_ context.Context, viewerId string) (string, error) {
	v, ok := s.cache.Get(viewingKey(viewerId))
	if !ok {
		return "", nil
	}
	peerId, _ := v.(string)
	return peerId, nil
}
