package websocket

// Inbound actions a connected client may send.
const (
	ActionSendMessage       = "send-message"
	ActionOpenConversation  = "open-conversation"
	ActionCloseConversation = "close-conversation"
)

// Replies written back to the connection that sent an action.
const (
	eventAck   = "ack"
	eventError = "error"
)

type InboundFrame struct {
	Action    string `json:"action"`
	RequestId string `json:"requestId,omitempty"`
	PeerId    string `json:"peerId"`
	Text      string `json:"text,omitempty"`
	Image     string `json:"image,omitempty"`
}

type Reply struct {
	RequestId string `json:"requestId,omitempty"`
	Message   string `json:"message,omitempty"`
	Data      any    `json:"data,omitempty"`
}
