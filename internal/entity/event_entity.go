package entity

// Realtime event names pushed to connected peers.
const (
	EventNewMessage     = "new-message"
	EventMessageDeleted = "message-deleted"
	EventUnreadUpdated  = "unread-updated"
	EventOnlineUsers    = "online-users"
)

// Routing keys of the lifecycle events sent to the message broker.
const (
	DomainMessageCreated      = "chat.message.created"
	DomainMessageDeleted      = "chat.message.deleted"
	DomainConversationCleared = "chat.conversation.cleared"
)

type RealtimeEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type MessageDeletedPayload struct {
	MessageId         string `json:"messageId"`
	DeleteForEveryone bool   `json:"deleteForEveryone"`
}

type UnreadUpdatedPayload struct {
	PeerId string `json:"peerId"`
	Count  int    `json:"count"`
	Total  int    `json:"total"`
}

type MessageDeletedEvent struct {
	MessageId   string `json:"messageId"`
	RequesterId string `json:"requesterId"`
	ForEveryone bool   `json:"forEveryone"`
}

type ConversationClearedEvent struct {
	UserId  string `json:"userId"`
	PeerId  string `json:"peerId"`
	Removed int64  `json:"removed"`
}

type OnlineUsersPayload struct {
	UserIds []string `json:"userIds"`
}
