package models

import (
	"encoding/json"
	"errors"
	"time"
)

// ConversationKind discriminates direct and group conversations.
type ConversationKind string

const (
	ConversationDirect ConversationKind = "direct"
	ConversationGroup  ConversationKind = "group"
)

// Conversation names the single destination of a message: the receiver of a
// direct message or a group. The constructors are the only way to build one,
// so a message can never reference both a receiver and a group, or neither.
type Conversation struct {
	kind ConversationKind
	id   string
}

// DirectConversation builds the destination for a one-to-one message.
func DirectConversation(receiverID string) Conversation {
	return Conversation{kind: ConversationDirect, id: receiverID}
}

// GroupConversation builds the destination for a group message.
func GroupConversation(groupID string) Conversation {
	return Conversation{kind: ConversationGroup, id: groupID}
}

// Kind reports whether the conversation is direct or group.
func (c Conversation) Kind() ConversationKind { return c.kind }

// ReceiverID returns the direct-message receiver, if any.
func (c Conversation) ReceiverID() (string, bool) {
	if c.kind == ConversationDirect {
		return c.id, true
	}
	return "", false
}

// GroupID returns the group id, if any.
func (c Conversation) GroupID() (string, bool) {
	if c.kind == ConversationGroup {
		return c.id, true
	}
	return "", false
}

type conversationJSON struct {
	Kind       ConversationKind `json:"kind"`
	ReceiverID string           `json:"receiver_id,omitempty"`
	GroupID    string           `json:"group_id,omitempty"`
}

// MarshalJSON renders the tagged variant.
func (c Conversation) MarshalJSON() ([]byte, error) {
	out := conversationJSON{Kind: c.kind}
	switch c.kind {
	case ConversationDirect:
		out.ReceiverID = c.id
	case ConversationGroup:
		out.GroupID = c.id
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores the tagged variant.
func (c *Conversation) UnmarshalJSON(data []byte) error {
	var in conversationJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	switch in.Kind {
	case ConversationDirect:
		*c = DirectConversation(in.ReceiverID)
	case ConversationGroup:
		*c = GroupConversation(in.GroupID)
	default:
		return errors.New("unknown conversation kind")
	}
	return nil
}

// Attachment carries an optional file reference on a message.
type Attachment struct {
	URL  string `json:"url"`
	Type string `json:"type"`
	Name string `json:"name"`
}

// Message is a persisted chat message. The id and timestamp are assigned by
// the store on append. VisibleTo is fixed at creation and only ever shrinks
// through a per-user room clear. IsRead is meaningful for direct messages
// only.
type Message struct {
	ID           int64            `json:"id"`
	Conversation Conversation     `json:"conversation"`
	RoomID       string           `json:"room_id,omitempty"`
	SenderID     string           `json:"sender_id"`
	Text         string           `json:"text"`
	Attachment   *Attachment      `json:"attachment,omitempty"`
	IsRead       bool             `json:"is_read"`
	VisibleTo    []string         `json:"visible_to"`
	CreatedAt    time.Time        `json:"created_at"`
}

// Notification is the transient payload pushed to a live session when a
// message is delivered. It is not the persisted schema; a missed notification
// is recovered by re-listing history.
type Notification struct {
	Kind           ConversationKind `json:"type"`
	SenderID       string           `json:"sender_id"`
	ConversationID string           `json:"conversation_id"`
	MessageID      int64            `json:"message_id"`
	Timestamp      time.Time        `json:"timestamp"`
	Text           string           `json:"text"`
	Attachment     *Attachment      `json:"attachment,omitempty"`
}
