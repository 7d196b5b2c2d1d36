package services

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-core/internal/mocks"
	"chat-core/internal/models"
	"chat-core/internal/registry"
	"chat-core/internal/room"
)

var _ Notifier = (*mocks.NotifierMock)(nil)

func directFixture() (*DirectMessageService, *mocks.MessageStoreMock, *mocks.NotifierMock, *registry.Registry) {
	store := new(mocks.MessageStoreMock)
	notifier := new(mocks.NotifierMock)
	reg := registry.New()
	svc := NewDirectMessageService(store, reg, notifier, zerolog.Nop())
	return svc, store, notifier, reg
}

func TestDirectSendRejectsInvalidIDs(t *testing.T) {
	svc, store, _, _ := directFixture()

	_, err := svc.Send(context.Background(), "bad id!", "bob", "hi", nil)
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Send(context.Background(), "alice", "", "hi", nil)
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Send(context.Background(), "alice", "bob", "", nil)
	require.ErrorIs(t, err, ErrValidation)

	store.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestDirectSendPersistsTwoPartyVisibility(t *testing.T) {
	svc, store, notifier, reg := directFixture()

	reg.Connect("alice", "s-alice")
	reg.Connect("bob", "s-bob")

	var appended models.Message
	stored := models.Message{
		ID:           42,
		Conversation: models.DirectConversation("bob"),
		RoomID:       room.Key("alice", "bob"),
		SenderID:     "alice",
		Text:         "hi",
		VisibleTo:    []string{"alice", "bob"},
	}
	store.On("Append", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		appended = args.Get(1).(models.Message)
	}).Return(stored, nil).Once()
	notifier.On("Notify", "s-alice", mock.Anything).Return(nil).Once()
	notifier.On("Notify", "s-bob", mock.Anything).Return(nil).Once()

	got, err := svc.Send(context.Background(), "alice", "bob", "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.ID)
	assert.Equal(t, room.Key("alice", "bob"), appended.RoomID)
	assert.ElementsMatch(t, []string{"alice", "bob"}, appended.VisibleTo)

	store.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestDirectSendOfflineReceiverStillSucceeds(t *testing.T) {
	svc, store, notifier, reg := directFixture()

	reg.Connect("alice", "s-alice")

	stored := models.Message{
		ID:           7,
		Conversation: models.DirectConversation("bob"),
		RoomID:       room.Key("alice", "bob"),
		SenderID:     "alice",
		Text:         "hi",
		VisibleTo:    []string{"alice", "bob"},
	}
	store.On("Append", mock.Anything, mock.Anything).Return(stored, nil).Once()
	notifier.On("Notify", "s-alice", mock.Anything).Return(nil).Once()

	_, err := svc.Send(context.Background(), "alice", "bob", "hi", nil)
	require.NoError(t, err)

	store.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestDirectSendDeliveryFailureDoesNotFailSend(t *testing.T) {
	svc, store, notifier, reg := directFixture()

	reg.Connect("alice", "s-alice")
	reg.Connect("bob", "s-bob")

	stored := models.Message{
		ID:           9,
		Conversation: models.DirectConversation("bob"),
		RoomID:       room.Key("alice", "bob"),
		SenderID:     "alice",
		Text:         "hi",
		VisibleTo:    []string{"alice", "bob"},
	}
	store.On("Append", mock.Anything, mock.Anything).Return(stored, nil).Once()
	notifier.On("Notify", "s-alice", mock.Anything).Return(nil).Once()
	notifier.On("Notify", "s-bob", mock.Anything).Return(assert.AnError).Once()

	got, err := svc.Send(context.Background(), "alice", "bob", "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(9), got.ID)

	notifier.AssertExpectations(t)
}

func TestDirectSendStoreError(t *testing.T) {
	svc, store, notifier, _ := directFixture()

	storeErr := errors.New("insert failed")
	store.On("Append", mock.Anything, mock.Anything).Return(models.Message{}, storeErr).Once()

	_, err := svc.Send(context.Background(), "alice", "bob", "hi", nil)
	require.ErrorIs(t, err, storeErr)

	notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
}
