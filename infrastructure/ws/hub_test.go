package ws

import (
	"encoding/json"
	"errors"
	"sort"
	"testing"
	"time"

	"chatify/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(userId, connId string, buffer int) *UserClient {
	return &UserClient{
		UserId: userId,
		ConnId: connId,
		log:    zap.NewNop(),
		send:   make(chan []byte, buffer),
	}
}

func TestHub_SendToClient(t *testing.T) {
	hub := NewHub(zap.NewNop())
	defer hub.Close()

	alice := newTestClient("alice", "c1", 1)
	hub.RegisterClient(alice)

	assert.True(t, hub.IsOnline("alice"))
	assert.True(t, hub.SendToClient("alice", []byte("hi")))
	assert.Equal(t, []byte("hi"), <-alice.send)

	assert.False(t, hub.SendToClient("bob", []byte("hi")), "offline recipients are dropped")

	require.True(t, hub.SendToClient("alice", []byte("1")))
	assert.False(t, hub.SendToClient("alice", []byte("2")), "full buffer drops instead of blocking")
}

func TestHub_ReplacedConnection(t *testing.T) {
	hub := NewHub(zap.NewNop())
	defer hub.Close()

	var unregistered []string
	hub.SetOnClientUnregister(func(client *UserClient) error {
		unregistered = append(unregistered, client.ConnId)
		return nil
	})

	first := newTestClient("alice", "c1", 4)
	second := newTestClient("alice", "c2", 4)
	hub.RegisterClient(first)
	hub.RegisterClient(second)

	_, open := <-first.send
	assert.False(t, open, "replaced connection is shut down")
	assert.Equal(t, 1, hub.GetClientCount())

	// late disconnect of the replaced connection
	hub.UnregisterClient(first)
	assert.True(t, hub.IsOnline("alice"))
	assert.Empty(t, unregistered)

	require.True(t, hub.SendToClient("alice", []byte("x")))
	assert.Equal(t, []byte("x"), <-second.send)

	hub.UnregisterClient(second)
	assert.False(t, hub.IsOnline("alice"))
	assert.Equal(t, []string{"c2"}, unregistered)
}

func TestHub_UnregisterCallbackError(t *testing.T) {
	hub := NewHub(zap.NewNop())
	defer hub.Close()

	hub.SetOnClientUnregister(func(*UserClient) error { return errors.New("boom") })
	client := newTestClient("alice", "c1", 1)
	hub.RegisterClient(client)

	assert.NotPanics(t, func() { hub.UnregisterClient(client) })
	assert.False(t, hub.SendToClient("alice", []byte("x")))
	assert.False(t, client.Send([]byte("x")), "closed client refuses frames")
}

func TestHub_OnlineUsersAndClose(t *testing.T) {
	hub := NewHub(zap.NewNop())

	hub.RegisterClient(newTestClient("alice", "c1", 1))
	hub.RegisterClient(newTestClient("bob", "c2", 1))

	users := hub.OnlineUsers()
	sort.Strings(users)
	assert.Equal(t, []string{"alice", "bob"}, users)

	hub.Close()
	assert.Equal(t, 0, hub.GetClientCount())
	assert.False(t, hub.IsOnline("alice"))
	assert.NotPanics(t, hub.Close)
}

func TestHub_Broadcast(t *testing.T) {
	hub := NewHub(zap.NewNop())
	go hub.Run()
	defer hub.Close()

	alice := newTestClient("alice", "c1", 1)
	bob := newTestClient("bob", "c2", 1)
	hub.RegisterClient(alice)
	hub.RegisterClient(bob)

	hub.Broadcast([]byte("all"))

	for _, c := range []*UserClient{alice, bob} {
		select {
		case msg := <-c.send:
			assert.Equal(t, []byte("all"), msg)
		case <-time.After(time.Second):
			t.Fatalf("%s did not receive the broadcast", c.UserId)
		}
	}
}

func TestBus_Publish(t *testing.T) {
	hub := NewHub(zap.NewNop())
	defer hub.Close()
	bus := NewBus(hub, zap.NewNop())

	bob := newTestClient("bob", "c1", 1)
	hub.RegisterClient(bob)

	bus.Publish(entity.EventMessageDeleted, "bob", entity.MessageDeletedPayload{MessageId: "m1", DeleteForEveryone: true})

	var event struct {
		Event string                       `json:"event"`
		Data  entity.MessageDeletedPayload `json:"data"`
	}
	require.NoError(t, json.Unmarshal(<-bob.send, &event))
	assert.Equal(t, "message-deleted", event.Event)
	assert.Equal(t, "m1", event.Data.MessageId)
	assert.True(t, event.Data.DeleteForEveryone)

	assert.NotPanics(t, func() { bus.Publish(entity.EventNewMessage, "nobody", nil) })
}
