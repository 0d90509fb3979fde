package ws

import (
	"encoding/json"

	"chatify/internal/entity"

	"go.uber.org/zap"
)

// Bus publishes named realtime events to a single user through the hub.
// Delivery is best effort: offline recipients miss the event.
type Bus struct {
	hub IHub
	log *zap.Logger
}

func NewBus(hub IHub, log *zap.Logger) *Bus {
	return &Bus{hub: hub, log: log}
}

func (b *Bus) Publish(event, targetUserId string, payload any) {
	raw, err := json.Marshal(entity.RealtimeEvent{Event: event, Data: payload})
	if err != nil {
		b.log.Error("marshal realtime event", zap.String("event", event), zap.Error(err))
		return
	}
	if !b.hub.SendToClient(targetUserId, raw) {
		b.log.Debug("realtime event not delivered",
			zap.String("event", event),
			zap.String("userId", targetUserId))
	}
}

// Broadcast sends an event to every connected user.
func (b *Bus) Broadcast(event string, payload any) {
	raw, err := json.Marshal(entity.RealtimeEvent{Event: event, Data: payload})
	if err != nil {
		b.log.Error("marshal realtime event", zap.String("event", event), zap.Error(err))
		return
	}
	b.hub.Broadcast(raw)
}
