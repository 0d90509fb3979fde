package usecase

import (
	"context"

	"chatify/infrastructure/events"
)

// RealtimePublisher pushes named events to connected users.
type RealtimePublisher interface {
	Publish(event, targetUserId string, payload any)
	Broadcast(event string, payload any)
}

type Presence interface {
	IsOnline(userId string) bool
	OnlineUsers() []string
}

type MediaStore interface {
	Store(ctx context.Context, dataURL string) (string, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, msg events.Envelope) error
}
