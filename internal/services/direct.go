package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"chat-core/internal/models"
	"chat-core/internal/observability"
	"chat-core/internal/registry"
	"chat-core/internal/repositories"
	"chat-core/internal/room"
)

// DirectMessageService orchestrates one-to-one sends: validate, persist with
// the two-party visibility set, then notify whichever participants hold an
// active session. A missing session is not an error; the peer resyncs from
// history on reconnect.
type DirectMessageService struct {
	store    repositories.MessageStore
	registry *registry.Registry
	notifier Notifier
	log      zerolog.Logger
}

// NewDirectMessageService builds a DirectMessageService.
func NewDirectMessageService(store repositories.MessageStore, reg *registry.Registry, notifier Notifier, logger zerolog.Logger) *DirectMessageService {
	return &DirectMessageService{
		store:    store,
		registry: reg,
		notifier: notifier,
		log:      logger.With().Str("component", "direct").Logger(),
	}
}

// Send persists and delivers a direct message.
func (s *DirectMessageService) Send(ctx context.Context, senderID, receiverID, text string, attachment *models.Attachment) (models.Message, error) {
	if !room.ValidID(senderID) {
		return models.Message{}, fmt.Errorf("%w: invalid sender id", ErrValidation)
	}
	if !room.ValidID(receiverID) {
		return models.Message{}, fmt.Errorf("%w: invalid receiver id", ErrValidation)
	}
	if text == "" {
		return models.Message{}, fmt.Errorf("%w: empty message text", ErrValidation)
	}

	msg := models.Message{
		Conversation: models.DirectConversation(receiverID),
		RoomID:       room.Key(senderID, receiverID),
		SenderID:     senderID,
		Text:         text,
		Attachment:   attachment,
		VisibleTo:    []string{senderID, receiverID},
	}

	stored, err := s.store.Append(ctx, msg)
	if err != nil {
		return models.Message{}, err
	}

	notification := models.Notification{
		Kind:           models.ConversationDirect,
		SenderID:       stored.SenderID,
		ConversationID: stored.RoomID,
		MessageID:      stored.ID,
		Timestamp:      stored.CreatedAt,
		Text:           stored.Text,
		Attachment:     stored.Attachment,
	}
	for _, participantID := range stored.VisibleTo {
		s.deliver(participantID, notification)
	}
	return stored, nil
}

func (s *DirectMessageService) deliver(userID string, n models.Notification) {
	sessionID, ok := s.registry.Lookup(userID)
	if !ok {
		observability.IncDelivery("direct", observability.DeliveryOffline)
		return
	}
	if err := s.notifier.Notify(sessionID, n); err != nil {
		observability.IncDelivery("direct", observability.DeliveryFailed)
		s.log.Warn().Err(err).
			Str("user_id", userID).
			Str("session_id", sessionID).
			Int64("message_id", n.MessageID).
			Msg("direct delivery failed")
		return
	}
	observability.IncDelivery("direct", observability.DeliveryDelivered)
}
