package repositories

import (
	"context"
	"sync"
	"time"

	"chat-core/internal/models"
)

// MemoryMessageStore is an in-process MessageStore used when no database is
// configured (development) and by tests. Timestamps are forced monotonic so
// the ordering contract matches the Postgres implementation.
type MemoryMessageStore struct {
	mu       sync.Mutex
	nextID   int64
	lastTime time.Time
	messages []models.Message
}

// NewMemoryMessageStore constructs an empty store.
func NewMemoryMessageStore() *MemoryMessageStore {
	return &MemoryMessageStore{nextID: 1}
}

var _ MessageStore = (*MemoryMessageStore)(nil)

func (s *MemoryMessageStore) Append(ctx context.Context, msg models.Message) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if !now.After(s.lastTime) {
		now = s.lastTime.Add(time.Microsecond)
	}
	s.lastTime = now

	stored := msg
	stored.ID = s.nextID
	stored.CreatedAt = now
	stored.VisibleTo = append([]string(nil), msg.VisibleTo...)
	s.nextID++
	s.messages = append(s.messages, stored)
	return copyMessage(stored), nil
}

func (s *MemoryMessageStore) ListByRoom(ctx context.Context, roomID string) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Message
	for _, m := range s.messages {
		if m.RoomID == roomID && m.RoomID != "" {
			out = append(out, copyMessage(m))
		}
	}
	return out, nil
}

func (s *MemoryMessageStore) ListByGroup(ctx context.Context, groupID string) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Message
	for _, m := range s.messages {
		if gid, ok := m.Conversation.GroupID(); ok && gid == groupID {
			out = append(out, copyMessage(m))
		}
	}
	return out, nil
}

func (s *MemoryMessageStore) MarkRead(ctx context.Context, receiverID, senderID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var affected int64
	for i, m := range s.messages {
		rid, ok := m.Conversation.ReceiverID()
		if ok && rid == receiverID && m.SenderID == senderID && !m.IsRead {
			s.messages[i].IsRead = true
			affected++
		}
	}
	return affected, nil
}

func (s *MemoryMessageStore) UnreadCounts(ctx context.Context, userID string) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := map[string]int{}
	for _, m := range s.messages {
		if rid, ok := m.Conversation.ReceiverID(); ok && rid == userID && !m.IsRead {
			counts[m.SenderID]++
		}
	}
	return counts, nil
}

func (s *MemoryMessageStore) RemoveVisibility(ctx context.Context, roomID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, m := range s.messages {
		if m.RoomID != roomID || m.RoomID == "" {
			continue
		}
		kept := m.VisibleTo[:0:0]
		for _, id := range m.VisibleTo {
			if id != userID {
				kept = append(kept, id)
			}
		}
		s.messages[i].VisibleTo = kept
	}
	return nil
}

func (s *MemoryMessageStore) DeleteMessage(ctx context.Context, messageID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, m := range s.messages {
		if m.ID == messageID {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func copyMessage(m models.Message) models.Message {
	out := m
	out.VisibleTo = append([]string(nil), m.VisibleTo...)
	if m.Attachment != nil {
		att := *m.Attachment
		out.Attachment = &att
	}
	return out
}
