package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"chatify/infrastructure/ws"
	"chatify/internal/entity"
	"chatify/internal/usecase"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type WebsocketHandler struct {
	hub       ws.IHub
	bus       usecase.RealtimePublisher
	authUc    usecase.AuthUsecase
	messageUc usecase.MessageUsecase
	unreadUc  usecase.UnreadUsecase
	upgrader  websocket.Upgrader
	log       *zap.Logger
}

func NewWebsocketHandler(
	hub ws.IHub,
	bus usecase.RealtimePublisher,
	authUc usecase.AuthUsecase,
	messageUc usecase.MessageUsecase,
	unreadUc usecase.UnreadUsecase,
	allowedOrigins []string,
	log *zap.Logger,
) *WebsocketHandler {
	return &WebsocketHandler{
		hub:       hub,
		bus:       bus,
		authUc:    authUc,
		messageUc: messageUc,
		unreadUc:  unreadUc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		log: log,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

func tokenFrom(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

// GET /ws?token=<access token>
func (h *WebsocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	claims, err := h.authUc.ValidateAccessToken(tokenFrom(r))
	if err != nil {
		http.Error(w, "invalid or expired token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade", zap.Error(err))
		return
	}

	client := ws.NewClient(h.hub, conn, claims.UserId, h.log)
	h.hub.RegisterClient(client)
	h.log.Debug("websocket connected",
		zap.String("userId", claims.UserId),
		zap.Int("localClients", h.hub.GetClientCount()))
	h.broadcastPresence()

	// the request context ends when this handler returns
	ctx := context.WithoutCancel(r.Context())
	client.OnActivity(func() {
		if err := h.unreadUc.KeepViewing(ctx, client.UserId); err != nil {
			h.log.Debug("keep viewing", zap.String("userId", client.UserId), zap.Error(err))
		}
	})
	go client.WritePump()
	go client.ReadPump(ctx, h.HandleInbound)
}

// HandleUnregisterClient runs after a connection leaves the presence
// directory.
func (h *WebsocketHandler) HandleUnregisterClient(client *ws.UserClient) error {
	defer h.broadcastPresence()
	return h.unreadUc.OnConversationClosed(context.Background(), client.UserId)
}

func (h *WebsocketHandler) broadcastPresence() {
	h.bus.Broadcast(entity.EventOnlineUsers, entity.OnlineUsersPayload{UserIds: h.hub.OnlineUsers()})
}

func (h *WebsocketHandler) HandleInbound(ctx context.Context, client *ws.UserClient, raw []byte) {
	var frame InboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		h.reply(client, eventError, Reply{Message: "invalid frame"})
		return
	}

	var (
		data any
		err  error
	)
	switch frame.Action {
	case ActionSendMessage:
		data, err = h.messageUc.Send(ctx, client.UserId, frame.PeerId, entity.SendMessageRequest{
			Text:  frame.Text,
			Image: frame.Image,
		})
	case ActionOpenConversation:
		err = h.unreadUc.OnConversationOpened(ctx, client.UserId, frame.PeerId)
	case ActionCloseConversation:
		if frame.PeerId != "" {
			err = h.unreadUc.OnConversationLeft(ctx, client.UserId, frame.PeerId)
		} else {
			err = h.unreadUc.OnConversationClosed(ctx, client.UserId)
		}
	default:
		h.reply(client, eventError, Reply{RequestId: frame.RequestId, Message: "unknown action"})
		return
	}

	if err != nil {
		h.reply(client, eventError, Reply{RequestId: frame.RequestId, Message: clientMessage(err)})
		if !isDomainError(err) {
			h.log.Error("websocket action failed",
				zap.String("action", frame.Action),
				zap.String("userId", client.UserId),
				zap.Error(err))
		}
		return
	}
	h.reply(client, eventAck, Reply{RequestId: frame.RequestId, Data: data})
}

func isDomainError(err error) bool {
	for _, kind := range []error{entity.ErrValidation, entity.ErrNotFound, entity.ErrPermission, entity.ErrConflict, entity.ErrUnauthenticated} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

func clientMessage(err error) string {
	if isDomainError(err) {
		return err.Error()
	}
	return "internal server error"
}

func (h *WebsocketHandler) reply(client *ws.UserClient, event string, reply Reply) {
	raw, err := json.Marshal(entity.RealtimeEvent{Event: event, Data: reply})
	if err != nil {
		h.log.Error("marshal reply", zap.Error(err))
		return
	}
	if !client.Send(raw) {
		h.log.Debug("reply dropped", zap.String("userId", client.UserId))
	}
}
