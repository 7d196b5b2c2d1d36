package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"chat-core/internal/models"
	"chat-core/internal/observability"
	"chat-core/internal/registry"
	"chat-core/internal/repositories"
	"chat-core/internal/room"
)

// GroupFanoutService orchestrates group sends. Visibility is the member
// snapshot taken at send time: members who join later do not gain access to
// earlier history. Fan-out isolates failures per recipient; one unreachable
// member never aborts the loop or fails the call.
type GroupFanoutService struct {
	store      repositories.MessageStore
	membership repositories.GroupMembership
	registry   *registry.Registry
	notifier   Notifier
	log        zerolog.Logger
}

// NewGroupFanoutService builds a GroupFanoutService.
func NewGroupFanoutService(store repositories.MessageStore, membership repositories.GroupMembership, reg *registry.Registry, notifier Notifier, logger zerolog.Logger) *GroupFanoutService {
	return &GroupFanoutService{
		store:      store,
		membership: membership,
		registry:   reg,
		notifier:   notifier,
		log:        logger.With().Str("component", "group").Logger(),
	}
}

// Send persists a group message against the current member snapshot and
// notifies every reachable member.
func (s *GroupFanoutService) Send(ctx context.Context, senderID, groupID, text string, attachment *models.Attachment) (models.Message, error) {
	if !room.ValidID(senderID) {
		return models.Message{}, fmt.Errorf("%w: invalid sender id", ErrValidation)
	}
	if !room.ValidID(groupID) {
		return models.Message{}, fmt.Errorf("%w: invalid group id", ErrValidation)
	}
	if text == "" {
		return models.Message{}, fmt.Errorf("%w: empty message text", ErrValidation)
	}

	members, err := s.membership.GetMembers(ctx, groupID)
	if err != nil {
		return models.Message{}, err
	}
	members = lo.Uniq(members)

	msg := models.Message{
		Conversation: models.GroupConversation(groupID),
		SenderID:     senderID,
		Text:         text,
		Attachment:   attachment,
		VisibleTo:    members,
	}

	stored, err := s.store.Append(ctx, msg)
	if err != nil {
		return models.Message{}, err
	}

	notification := models.Notification{
		Kind:           models.ConversationGroup,
		SenderID:       stored.SenderID,
		ConversationID: groupID,
		MessageID:      stored.ID,
		Timestamp:      stored.CreatedAt,
		Text:           stored.Text,
		Attachment:     stored.Attachment,
	}
	for _, memberID := range members {
		s.deliver(memberID, notification)
	}
	return stored, nil
}

func (s *GroupFanoutService) deliver(memberID string, n models.Notification) {
	sessionID, ok := s.registry.Lookup(memberID)
	if !ok {
		observability.IncDelivery("group", observability.DeliveryOffline)
		return
	}
	if err := s.notifier.Notify(sessionID, n); err != nil {
		observability.IncDelivery("group", observability.DeliveryFailed)
		s.log.Warn().Err(err).
			Str("user_id", memberID).
			Str("session_id", sessionID).
			Int64("message_id", n.MessageID).
			Msg("group delivery failed")
		return
	}
	observability.IncDelivery("group", observability.DeliveryDelivered)
}
