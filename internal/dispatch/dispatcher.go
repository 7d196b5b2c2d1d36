// Package dispatch is the boundary between inbound transport events and the
// delivery core. Each operation runs to completion without holding any
// cross-user lock and reports expected business conditions as typed errors,
// never panics.
package dispatch

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"chat-core/internal/models"
	"chat-core/internal/presence"
	"chat-core/internal/registry"
	"chat-core/internal/repositories"
	"chat-core/internal/room"
	"chat-core/internal/services"
)

// Dispatcher translates connect, disconnect, send, clear and delete events
// into calls on the registry, presence tracker, message services and store.
type Dispatcher struct {
	registry *registry.Registry
	presence *presence.Tracker
	direct   *services.DirectMessageService
	group    *services.GroupFanoutService
	store    repositories.MessageStore
	log      zerolog.Logger
}

// New constructs a Dispatcher.
func New(
	reg *registry.Registry,
	tracker *presence.Tracker,
	direct *services.DirectMessageService,
	group *services.GroupFanoutService,
	store repositories.MessageStore,
	logger zerolog.Logger,
) *Dispatcher {
	return &Dispatcher{
		registry: reg,
		presence: tracker,
		direct:   direct,
		group:    group,
		store:    store,
		log:      logger.With().Str("component", "dispatch").Logger(),
	}
}

// Connect registers the session as the user's active one and flags the user
// online. It returns the superseded session id, if any, so the transport can
// close the stale socket.
func (d *Dispatcher) Connect(ctx context.Context, userID, sessionID string) (previous string, superseded bool) {
	previous, superseded = d.registry.Connect(userID, sessionID)
	d.presence.MarkOnline(ctx, userID)
	if superseded {
		d.log.Debug().
			Str("user_id", userID).
			Str("session_id", sessionID).
			Str("superseded", previous).
			Msg("session superseded")
	}
	return previous, superseded
}

// Disconnect removes the mapping only when the session token still matches.
// A stale disconnect leaves the user connected and must not flip presence.
func (d *Dispatcher) Disconnect(ctx context.Context, userID, sessionID string) bool {
	if !d.registry.Disconnect(userID, sessionID) {
		return false
	}
	d.presence.MarkOffline(ctx, userID)
	return true
}

// SendDirect delivers a one-to-one message.
func (d *Dispatcher) SendDirect(ctx context.Context, senderID, receiverID, text string, attachment *models.Attachment) (models.Message, error) {
	return d.direct.Send(ctx, senderID, receiverID, text, attachment)
}

// SendGroup delivers a group message over the current member snapshot.
func (d *Dispatcher) SendGroup(ctx context.Context, senderID, groupID, text string, attachment *models.Attachment) (models.Message, error) {
	return d.group.Send(ctx, senderID, groupID, text, attachment)
}

// ListRoomHistory returns the room's messages still visible to userID.
func (d *Dispatcher) ListRoomHistory(ctx context.Context, roomID, userID string) ([]models.Message, error) {
	if !room.ValidID(userID) {
		return nil, fmt.Errorf("%w: invalid user id", services.ErrValidation)
	}
	msgs, err := d.store.ListByRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return visibleTo(msgs, userID), nil
}

// ListGroupHistory returns the group's messages still visible to userID.
func (d *Dispatcher) ListGroupHistory(ctx context.Context, groupID, userID string) ([]models.Message, error) {
	if !room.ValidID(groupID) || !room.ValidID(userID) {
		return nil, fmt.Errorf("%w: invalid id", services.ErrValidation)
	}
	msgs, err := d.store.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return visibleTo(msgs, userID), nil
}

// UnreadCounts reports the user's unread direct messages grouped by sender.
func (d *Dispatcher) UnreadCounts(ctx context.Context, userID string) (map[string]int, error) {
	if !room.ValidID(userID) {
		return nil, fmt.Errorf("%w: invalid user id", services.ErrValidation)
	}
	return d.store.UnreadCounts(ctx, userID)
}

// MarkRead flips all unread direct messages from senderID to receiverID and
// returns the number affected.
func (d *Dispatcher) MarkRead(ctx context.Context, receiverID, senderID string) (int64, error) {
	if !room.ValidID(receiverID) || !room.ValidID(senderID) {
		return 0, fmt.Errorf("%w: invalid id", services.ErrValidation)
	}
	return d.store.MarkRead(ctx, receiverID, senderID)
}

// ClearRoomForUser removes the user from the visibility set of every message
// in the room. The peer's history is untouched.
func (d *Dispatcher) ClearRoomForUser(ctx context.Context, roomID, userID string) error {
	if !room.ValidID(userID) {
		return fmt.Errorf("%w: invalid user id", services.ErrValidation)
	}
	return d.store.RemoveVisibility(ctx, roomID, userID)
}

// DeleteMessage hard-deletes a message for all viewers.
func (d *Dispatcher) DeleteMessage(ctx context.Context, messageID int64) error {
	existed, err := d.store.DeleteMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if !existed {
		return repositories.ErrMessageNotFound
	}
	return nil
}

// OnlineStatus reports the advisory online flags for the given users.
func (d *Dispatcher) OnlineStatus(ctx context.Context, userIDs []string) (map[string]bool, error) {
	for _, id := range userIDs {
		if !room.ValidID(id) {
			return nil, fmt.Errorf("%w: invalid user id", services.ErrValidation)
		}
	}
	return d.presence.OnlineStatus(ctx, userIDs)
}

func visibleTo(msgs []models.Message, userID string) []models.Message {
	return lo.Filter(msgs, func(m models.Message, _ int) bool {
		return lo.Contains(m.VisibleTo, userID)
	})
}
