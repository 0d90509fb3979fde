package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chatify/infrastructure/ws"
	"chatify/internal/entity"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type MockAuthUsecase struct {
	mock.Mock
}

func (m *MockAuthUsecase) Register(ctx context.Context, req entity.RegisterRequest) (entity.AuthResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(entity.AuthResponse), args.Error(1)
}

func (m *MockAuthUsecase) Login(ctx context.Context, req entity.LoginRequest) (entity.AuthResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(entity.AuthResponse), args.Error(1)
}

func (m *MockAuthUsecase) RefreshToken(ctx context.Context, refreshToken string) (entity.AuthResponse, error) {
	args := m.Called(ctx, refreshToken)
	return args.Get(0).(entity.AuthResponse), args.Error(1)
}

func (m *MockAuthUsecase) Logout(ctx context.Context, refreshToken string) error {
	return m.Called(ctx, refreshToken).Error(0)
}

func (m *MockAuthUsecase) LogoutAllDevices(ctx context.Context, userId string) error {
	return m.Called(ctx, userId).Error(0)
}

func (m *MockAuthUsecase) ValidateAccessToken(token string) (*entity.TokenClaims, error) {
	args := m.Called(token)
	claims, _ := args.Get(0).(*entity.TokenClaims)
	return claims, args.Error(1)
}

type MockMessageUsecase struct {
	mock.Mock
}

func (m *MockMessageUsecase) Send(ctx context.Context, senderId, receiverId string, req entity.SendMessageRequest) (entity.Message, error) {
	args := m.Called(ctx, senderId, receiverId, req)
	return args.Get(0).(entity.Message), args.Error(1)
}

func (m *MockMessageUsecase) ListConversation(ctx context.Context, viewerId, peerId string) ([]entity.MessageView, error) {
	args := m.Called(ctx, viewerId, peerId)
	return args.Get(0).([]entity.MessageView), args.Error(1)
}

func (m *MockMessageUsecase) DeleteMessage(ctx context.Context, messageId, requesterId string, forEveryone bool) (entity.Message, error) {
	args := m.Called(ctx, messageId, requesterId, forEveryone)
	return args.Get(0).(entity.Message), args.Error(1)
}

func (m *MockMessageUsecase) ClearConversation(ctx context.Context, userId, peerId string) (int64, error) {
	args := m.Called(ctx, userId, peerId)
	return args.Get(0).(int64), args.Error(1)
}

type MockUnreadUsecase struct {
	mock.Mock
}

func (m *MockUnreadUsecase) OnMessageArrived(ctx context.Context, viewerId, senderId string) error {
	return m.Called(ctx, viewerId, senderId).Error(0)
}

func (m *MockUnreadUsecase) OnConversationOpened(ctx context.Context, viewerId, peerId string) error {
	return m.Called(ctx, viewerId, peerId).Error(0)
}

func (m *MockUnreadUsecase) OnConversationClosed(ctx context.Context, viewerId string) error {
	return m.Called(ctx, viewerId).Error(0)
}

func (m *MockUnreadUsecase) OnConversationLeft(ctx context.Context, viewerId, peerId string) error {
	return m.Called(ctx, viewerId, peerId).Error(0)
}

func (m *MockUnreadUsecase) KeepViewing(ctx context.Context, viewerId string) error {
	return m.Called(ctx, viewerId).Error(0)
}

func (m *MockUnreadUsecase) Reset(ctx context.Context, viewerId, peerId string) error {
	return m.Called(ctx, viewerId, peerId).Error(0)
}

func (m *MockUnreadUsecase) Counts(ctx context.Context, viewerId string) (map[string]int, error) {
	args := m.Called(ctx, viewerId)
	return args.Get(0).(map[string]int), args.Error(1)
}

func (m *MockUnreadUsecase) Aggregate(ctx context.Context, viewerId string) (int, error) {
	args := m.Called(ctx, viewerId)
	return args.Int(0), args.Error(1)
}

func (m *MockUnreadUsecase) Summary(ctx context.Context, viewerId string) (entity.UnreadSummary, error) {
	args := m.Called(ctx, viewerId)
	return args.Get(0).(entity.UnreadSummary), args.Error(1)
}

type fixture struct {
	hub     *ws.Hub
	auth    *MockAuthUsecase
	message *MockMessageUsecase
	unread  *MockUnreadUsecase
	server  *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newLoggedFixture(t, zap.NewNop())
}

func newLoggedFixture(t *testing.T, log *zap.Logger) *fixture {
	t.Helper()
	f := &fixture{
		hub:     ws.NewHub(log),
		auth:    new(MockAuthUsecase),
		message: new(MockMessageUsecase),
		unread:  new(MockUnreadUsecase),
	}
	h := NewWebsocketHandler(f.hub, ws.NewBus(f.hub, log), f.auth, f.message, f.unread, []string{"*"}, log)
	f.hub.SetOnClientUnregister(h.HandleUnregisterClient)
	go f.hub.Run()

	f.auth.On("ValidateAccessToken", "alice-token").Return(&entity.TokenClaims{UserId: "alice"}, nil).Maybe()
	f.auth.On("ValidateAccessToken", mock.Anything).Return(nil, errors.New("bad token")).Maybe()
	f.unread.On("KeepViewing", mock.Anything, "alice").Return(nil).Maybe()

	f.server = httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	t.Cleanup(func() {
		f.server.Close()
		f.hub.Close()
	})
	return f
}

func (f *fixture) dial(t *testing.T, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "?token=" + token
	return websocket.DefaultDialer.Dial(url, nil)
}

type received struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// next reads frames until one with the given event arrives.
func next(t *testing.T, conn *websocket.Conn, event string) json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		var frame received
		require.NoError(t, json.Unmarshal(raw, &frame))
		if frame.Event == event {
			return frame.Data
		}
	}
}

func TestHandleWebSocket_RejectsBadToken(t *testing.T) {
	f := newFixture(t)

	_, resp, err := f.dial(t, "forged")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, f.hub.GetClientCount())
}

func TestHandleWebSocket_PresenceLifecycle(t *testing.T) {
	f := newFixture(t)
	closed := make(chan struct{})
	f.unread.On("OnConversationClosed", mock.Anything, "alice").Return(nil).Once().
		Run(func(mock.Arguments) { close(closed) })

	conn, _, err := f.dial(t, "alice-token")
	require.NoError(t, err)

	var online entity.OnlineUsersPayload
	require.NoError(t, json.Unmarshal(next(t, conn, entity.EventOnlineUsers), &online))
	assert.Equal(t, []string{"alice"}, online.UserIds)
	assert.True(t, f.hub.IsOnline("alice"))

	require.NoError(t, conn.Close())

	select {
	case <-closed:
	case <-time.After(3 * time.Second):
		t.Fatal("disconnect did not close the open conversation")
	}
	assert.Eventually(t, func() bool { return !f.hub.IsOnline("alice") }, time.Second, 10*time.Millisecond)
	f.unread.AssertExpectations(t)
}

func TestHandleInbound_SendMessage(t *testing.T) {
	f := newFixture(t)
	f.unread.On("OnConversationClosed", mock.Anything, "alice").Return(nil).Maybe()

	sent := entity.Message{Id: "m1", SenderId: "alice", ReceiverId: "bob", Text: "hi"}
	f.message.On("Send", mock.Anything, "alice", "bob", entity.SendMessageRequest{Text: "hi"}).Return(sent, nil).Once()

	conn, _, err := f.dial(t, "alice-token")
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(InboundFrame{Action: ActionSendMessage, RequestId: "r1", PeerId: "bob", Text: "hi"}))

	var ack struct {
		RequestId string         `json:"requestId"`
		Data      entity.Message `json:"data"`
	}
	require.NoError(t, json.Unmarshal(next(t, conn, eventAck), &ack))
	assert.Equal(t, "r1", ack.RequestId)
	assert.Equal(t, "m1", ack.Data.Id)
	f.message.AssertExpectations(t)
}

func TestHandleInbound_Errors(t *testing.T) {
	f := newFixture(t)
	f.unread.On("OnConversationClosed", mock.Anything, "alice").Return(nil).Maybe()
	f.unread.On("OnConversationOpened", mock.Anything, "alice", "bob").Return(errors.New("redis down")).Once()
	f.message.On("Send", mock.Anything, "alice", "alice", entity.SendMessageRequest{Text: "me"}).
		Return(entity.Message{}, entity.NewValidationError("cannot send a message to yourself")).Once()

	conn, _, err := f.dial(t, "alice-token")
	require.NoError(t, err)
	defer conn.Close()

	readError := func() Reply {
		var reply Reply
		require.NoError(t, json.Unmarshal(next(t, conn, eventError), &reply))
		return reply
	}

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	assert.Equal(t, "invalid frame", readError().Message)

	require.NoError(t, conn.WriteJSON(InboundFrame{Action: "dance", RequestId: "r2"}))
	reply := readError()
	assert.Equal(t, "r2", reply.RequestId)
	assert.Equal(t, "unknown action", reply.Message)

	require.NoError(t, conn.WriteJSON(InboundFrame{Action: ActionSendMessage, RequestId: "r3", PeerId: "alice", Text: "me"}))
	assert.Equal(t, "cannot send a message to yourself", readError().Message)

	require.NoError(t, conn.WriteJSON(InboundFrame{Action: ActionOpenConversation, RequestId: "r4", PeerId: "bob"}))
	assert.Equal(t, "internal server error", readError().Message)
}

func TestHandleInbound_CloseConversationKeepsViewingAlive(t *testing.T) {
	f := newFixture(t)
	f.unread.On("OnConversationClosed", mock.Anything, "alice").Return(nil).Maybe()
	f.unread.On("OnConversationLeft", mock.Anything, "alice", "bob").Return(nil).Once()

	conn, _, err := f.dial(t, "alice-token")
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(InboundFrame{Action: ActionCloseConversation, RequestId: "r1", PeerId: "bob"}))
	var ack Reply
	require.NoError(t, json.Unmarshal(next(t, conn, eventAck), &ack))
	assert.Equal(t, "r1", ack.RequestId)

	f.unread.AssertCalled(t, "KeepViewing", mock.Anything, "alice")
	f.unread.AssertNotCalled(t, "OnConversationClosed", mock.Anything, "alice")
	f.unread.AssertExpectations(t)
}

func TestHandleWebSocket_LogsLocalClientCount(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	f := newLoggedFixture(t, zap.New(core))
	f.unread.On("OnConversationClosed", mock.Anything, "alice").Return(nil).Maybe()

	conn, _, err := f.dial(t, "alice-token")
	require.NoError(t, err)
	defer conn.Close()
	next(t, conn, entity.EventOnlineUsers)

	connected := logs.FilterMessage("websocket connected").All()
	require.Len(t, connected, 1)
	assert.Equal(t, int64(1), connected[0].ContextMap()["localClients"])
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"http://localhost:5173"})

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, check(req))

	req.Header.Set("Origin", "http://localhost:5173")
	assert.True(t, check(req))

	req.Header.Set("Origin", "http://evil.example")
	assert.False(t, check(req))
}
