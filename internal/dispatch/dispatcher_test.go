package dispatch

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-core/internal/mocks"
	"chat-core/internal/presence"
	"chat-core/internal/registry"
	"chat-core/internal/repositories"
	"chat-core/internal/room"
	"chat-core/internal/services"
)

func dispatcherFixture() (*Dispatcher, *repositories.MemoryGroupStore, *repositories.MemoryPresenceStore) {
	store := repositories.NewMemoryMessageStore()
	groups := repositories.NewMemoryGroupStore()
	presenceStore := repositories.NewMemoryPresenceStore()

	notifier := new(mocks.NotifierMock)
	notifier.On("Notify", mock.Anything, mock.Anything).Return(nil)

	reg := registry.New()
	tracker := presence.NewTracker(presenceStore, zerolog.Nop())
	direct := services.NewDirectMessageService(store, reg, notifier, zerolog.Nop())
	group := services.NewGroupFanoutService(store, groups, reg, notifier, zerolog.Nop())
	return New(reg, tracker, direct, group, store, zerolog.Nop()), groups, presenceStore
}

func TestSendDirectThenListRoomHistory(t *testing.T) {
	d, _, _ := dispatcherFixture()
	ctx := context.Background()

	first, err := d.SendDirect(ctx, "alice", "bob", "hello", nil)
	require.NoError(t, err)
	second, err := d.SendDirect(ctx, "bob", "alice", "hey", nil)
	require.NoError(t, err)

	roomID := room.Key("alice", "bob")
	msgs, err := d.ListRoomHistory(ctx, roomID, "alice")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, first.ID, msgs[0].ID)
	assert.Equal(t, second.ID, msgs[1].ID)
	assert.True(t, msgs[1].CreatedAt.After(msgs[0].CreatedAt))
}

func TestUnreadCountsAndMarkRead(t *testing.T) {
	d, _, _ := dispatcherFixture()
	ctx := context.Background()

	_, err := d.SendDirect(ctx, "alice", "bob", "one", nil)
	require.NoError(t, err)
	_, err = d.SendDirect(ctx, "alice", "bob", "two", nil)
	require.NoError(t, err)
	_, err = d.SendDirect(ctx, "carol", "bob", "three", nil)
	require.NoError(t, err)

	counts, err := d.UnreadCounts(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"alice": 2, "carol": 1}, counts)

	marked, err := d.MarkRead(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), marked)

	counts, err = d.UnreadCounts(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"carol": 1}, counts)
}

func TestClearRoomHidesOnlyForCaller(t *testing.T) {
	d, _, _ := dispatcherFixture()
	ctx := context.Background()

	_, err := d.SendDirect(ctx, "alice", "bob", "hello", nil)
	require.NoError(t, err)

	roomID := room.Key("alice", "bob")
	require.NoError(t, d.ClearRoomForUser(ctx, roomID, "alice"))

	mine, err := d.ListRoomHistory(ctx, roomID, "alice")
	require.NoError(t, err)
	assert.Empty(t, mine)

	theirs, err := d.ListRoomHistory(ctx, roomID, "bob")
	require.NoError(t, err)
	assert.Len(t, theirs, 1)
}

func TestDeleteMessageForAll(t *testing.T) {
	d, _, _ := dispatcherFixture()
	ctx := context.Background()

	msg, err := d.SendDirect(ctx, "alice", "bob", "oops", nil)
	require.NoError(t, err)

	require.NoError(t, d.DeleteMessage(ctx, msg.ID))

	err = d.DeleteMessage(ctx, msg.ID)
	require.ErrorIs(t, err, repositories.ErrMessageNotFound)

	msgs, err := d.ListRoomHistory(ctx, room.Key("alice", "bob"), "bob")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestGroupHistorySnapshotExcludesLateJoiner(t *testing.T) {
	d, groups, _ := dispatcherFixture()
	ctx := context.Background()

	groups.AddMember("team", "alice")
	groups.AddMember("team", "bob")

	_, err := d.SendGroup(ctx, "alice", "team", "before dave", nil)
	require.NoError(t, err)

	groups.AddMember("team", "dave")
	_, err = d.SendGroup(ctx, "alice", "team", "after dave", nil)
	require.NoError(t, err)

	bobView, err := d.ListGroupHistory(ctx, "team", "bob")
	require.NoError(t, err)
	assert.Len(t, bobView, 2)

	daveView, err := d.ListGroupHistory(ctx, "team", "dave")
	require.NoError(t, err)
	require.Len(t, daveView, 1)
	assert.Equal(t, "after dave", daveView[0].Text)
}

func TestConnectSupersedesAndStaleDisconnectIsNoop(t *testing.T) {
	d, _, _ := dispatcherFixture()
	ctx := context.Background()

	previous, superseded := d.Connect(ctx, "alice", "s1")
	assert.False(t, superseded)
	assert.Empty(t, previous)

	previous, superseded = d.Connect(ctx, "alice", "s2")
	assert.True(t, superseded)
	assert.Equal(t, "s1", previous)

	// The stale session's disconnect must not flip presence off.
	assert.False(t, d.Disconnect(ctx, "alice", "s1"))
	flags, err := d.OnlineStatus(ctx, []string{"alice"})
	require.NoError(t, err)
	assert.True(t, flags["alice"])

	assert.True(t, d.Disconnect(ctx, "alice", "s2"))
	flags, err = d.OnlineStatus(ctx, []string{"alice"})
	require.NoError(t, err)
	assert.False(t, flags["alice"])
}

func TestOnlineStatusRejectsInvalidIDs(t *testing.T) {
	d, _, _ := dispatcherFixture()

	_, err := d.OnlineStatus(context.Background(), []string{"ok", "not ok"})
	require.ErrorIs(t, err, services.ErrValidation)
}
