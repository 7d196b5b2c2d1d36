package ws

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-core/internal/models"
	"chat-core/internal/registry"
	"chat-core/internal/repositories"
	"chat-core/internal/services"
)

func testConnection(sessionID, userID string) *Connection {
	return &Connection{
		SessionID: sessionID,
		UserID:    userID,
		send:      make(chan []byte, sendBuffer),
		closed:    make(chan struct{}),
	}
}

func closedConnection(sessionID, userID string) *Connection {
	conn := testConnection(sessionID, userID)
	close(conn.closed)
	return conn
}

// slowConnection has no buffer and no write loop, so the first enqueue
// already overflows.
func slowConnection(sessionID, userID string) *Connection {
	return &Connection{
		SessionID: sessionID,
		UserID:    userID,
		send:      make(chan []byte),
		closed:    make(chan struct{}),
	}
}

func TestHubNotifyMissingSession(t *testing.T) {
	hub := NewHub()

	err := hub.Notify("ghost", models.Notification{})
	require.ErrorIs(t, err, errSessionGone)
}

func TestHubNotifyDeliversToSession(t *testing.T) {
	hub := NewHub()
	conn := testConnection("s1", "alice")
	hub.Add(conn)

	require.NoError(t, hub.Notify("s1", models.Notification{
		Kind:      models.ConversationDirect,
		SenderID:  "bob",
		MessageID: 5,
	}))

	var got models.Notification
	require.NoError(t, json.Unmarshal(<-conn.send, &got))
	assert.Equal(t, models.ConversationDirect, got.Kind)
	assert.Equal(t, "bob", got.SenderID)
	assert.Equal(t, int64(5), got.MessageID)
}

func TestHubRemoveReturnsConnection(t *testing.T) {
	hub := NewHub()
	conn := testConnection("s1", "alice")
	hub.Add(conn)

	assert.Same(t, conn, hub.Remove("s1"))
	assert.Nil(t, hub.Remove("s1"))
	require.ErrorIs(t, hub.Notify("s1", models.Notification{}), errSessionGone)
}

func TestNotifyFullBufferDropsSession(t *testing.T) {
	hub := NewHub()
	conn := slowConnection("s-slow", "bob")
	hub.Add(conn)

	err := hub.Notify("s-slow", models.Notification{MessageID: 1})
	require.Error(t, err)

	// The overflowing session is closed; later writes fail fast.
	require.ErrorIs(t, conn.Send([]byte("x")), errConnClosed)
}

func TestSendSucceedsWhenSessionBufferIsFull(t *testing.T) {
	hub := NewHub()
	conn := slowConnection("s-bob", "bob")
	hub.Add(conn)

	store := repositories.NewMemoryMessageStore()
	reg := registry.New()
	reg.Connect("bob", "s-bob")
	svc := services.NewDirectMessageService(store, reg, hub, zerolog.Nop())

	msg, err := svc.Send(context.Background(), "alice", "bob", "hi", nil)
	require.NoError(t, err)
	assert.NotZero(t, msg.ID)

	history, err := store.ListByRoom(context.Background(), msg.RoomID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestBroadcastDeletionDropsDeadSessions(t *testing.T) {
	hub := NewHub()
	live := testConnection("s-live", "alice")
	dead := closedConnection("s-dead", "bob")
	hub.Add(live)
	hub.Add(dead)

	hub.BroadcastDeletion(99)

	var event deletionEvent
	require.NoError(t, json.Unmarshal(<-live.send, &event))
	assert.Equal(t, "delete_for_all", event.Type)
	assert.Equal(t, int64(99), event.MessageID)

	assert.Nil(t, hub.Remove("s-dead"))
	assert.Same(t, live, hub.Remove("s-live"))
}
