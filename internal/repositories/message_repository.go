package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"chat-core/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageStore defines persistence for chat messages, their per-recipient
// visibility and their read state. Each call is a single atomic operation;
// no method leaves a partially visible message behind.
type MessageStore interface {
	// Append assigns id and timestamp and persists the message durably.
	Append(ctx context.Context, msg models.Message) (models.Message, error)
	// ListByRoom returns a room's messages in ascending timestamp order with
	// a stable insertion-order tie-break.
	ListByRoom(ctx context.Context, roomID string) ([]models.Message, error)
	// ListByGroup returns a group's messages under the same ordering rule.
	ListByGroup(ctx context.Context, groupID string) ([]models.Message, error)
	// MarkRead flips every currently-unread direct message from senderID to
	// receiverID and reports how many were affected.
	MarkRead(ctx context.Context, receiverID, senderID string) (int64, error)
	// UnreadCounts counts unread direct messages addressed to userID, keyed
	// by sender. Senders with zero unread are absent.
	UnreadCounts(ctx context.Context, userID string) (map[string]int, error)
	// RemoveVisibility drops userID from the visibility set of every message
	// in the room without deleting the messages themselves.
	RemoveVisibility(ctx context.Context, roomID, userID string) error
	// DeleteMessage hard-deletes a message for all viewers and reports
	// whether it existed.
	DeleteMessage(ctx context.Context, messageID int64) (bool, error)
}

// MessageRepo is the sqlx-backed MessageStore.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

var _ MessageStore = (*MessageRepo)(nil)

type messageRow struct {
	ID         int64          `db:"id"`
	RoomID     sql.NullString `db:"room_id"`
	ReceiverID sql.NullString `db:"receiver_id"`
	GroupID    sql.NullString `db:"group_id"`
	SenderID   string         `db:"sender_id"`
	Content    string         `db:"content"`
	FileURL    sql.NullString `db:"file_url"`
	FileType   sql.NullString `db:"file_type"`
	FileName   sql.NullString `db:"file_name"`
	IsRead     bool           `db:"is_read"`
	VisibleTo  pq.StringArray `db:"visible_to"`
	CreatedAt  time.Time      `db:"created_at"`
}

func (r messageRow) toModel() models.Message {
	msg := models.Message{
		ID:        r.ID,
		RoomID:    r.RoomID.String,
		SenderID:  r.SenderID,
		Text:      r.Content,
		IsRead:    r.IsRead,
		VisibleTo: []string(r.VisibleTo),
		CreatedAt: r.CreatedAt,
	}
	if r.GroupID.Valid {
		msg.Conversation = models.GroupConversation(r.GroupID.String)
	} else {
		msg.Conversation = models.DirectConversation(r.ReceiverID.String)
	}
	if r.FileURL.Valid || r.FileType.Valid || r.FileName.Valid {
		msg.Attachment = &models.Attachment{
			URL:  r.FileURL.String,
			Type: r.FileType.String,
			Name: r.FileName.String,
		}
	}
	return msg
}

const messageColumns = `id, room_id, receiver_id, group_id, sender_id, content, file_url, file_type, file_name, is_read, visible_to, created_at`

// Append persists the message and returns it with store-assigned id and
// timestamp.
func (r *MessageRepo) Append(ctx context.Context, msg models.Message) (models.Message, error) {
	var roomID, receiverID, groupID sql.NullString
	if id, ok := msg.Conversation.ReceiverID(); ok {
		receiverID = sql.NullString{String: id, Valid: true}
		roomID = sql.NullString{String: msg.RoomID, Valid: true}
	}
	if id, ok := msg.Conversation.GroupID(); ok {
		groupID = sql.NullString{String: id, Valid: true}
	}

	var fileURL, fileType, fileName sql.NullString
	if msg.Attachment != nil {
		fileURL = sql.NullString{String: msg.Attachment.URL, Valid: true}
		fileType = sql.NullString{String: msg.Attachment.Type, Valid: true}
		fileName = sql.NullString{String: msg.Attachment.Name, Valid: true}
	}

	stored := msg
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO messages (room_id, receiver_id, group_id, sender_id, content, file_url, file_type, file_name, visible_to)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
         RETURNING id, created_at`,
		roomID, receiverID, groupID, msg.SenderID, msg.Text, fileURL, fileType, fileName, pq.StringArray(msg.VisibleTo)).
		Scan(&stored.ID, &stored.CreatedAt)
	if err != nil {
		return models.Message{}, fmt.Errorf("append message: %w", err)
	}
	return stored, nil
}

// ListByRoom returns the room's messages ordered by timestamp, then id.
func (r *MessageRepo) ListByRoom(ctx context.Context, roomID string) ([]models.Message, error) {
	return r.list(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE room_id=$1 ORDER BY created_at ASC, id ASC`, roomID)
}

// ListByGroup returns the group's messages ordered by timestamp, then id.
func (r *MessageRepo) ListByGroup(ctx context.Context, groupID string) ([]models.Message, error) {
	return r.list(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE group_id=$1 ORDER BY created_at ASC, id ASC`, groupID)
}

func (r *MessageRepo) list(ctx context.Context, query string, arg string) ([]models.Message, error) {
	var rows []messageRow
	if err := r.db.SelectContext(ctx, &rows, query, arg); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	msgs := make([]models.Message, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, row.toModel())
	}
	return msgs, nil
}

// MarkRead bulk-flips unread direct messages from senderID to receiverID.
func (r *MessageRepo) MarkRead(ctx context.Context, receiverID, senderID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE messages SET is_read = TRUE WHERE receiver_id=$1 AND sender_id=$2 AND is_read = FALSE`,
		receiverID, senderID)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	return res.RowsAffected()
}

// UnreadCounts groups the user's unread direct messages by sender.
func (r *MessageRepo) UnreadCounts(ctx context.Context, userID string) (map[string]int, error) {
	rows, err := r.db.QueryxContext(ctx,
		`SELECT sender_id, COUNT(*) AS unread FROM messages WHERE receiver_id=$1 AND is_read = FALSE GROUP BY sender_id`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("unread counts: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var senderID string
		var unread int
		if err := rows.Scan(&senderID, &unread); err != nil {
			return nil, err
		}
		counts[senderID] = unread
	}
	return counts, rows.Err()
}

// RemoveVisibility pulls userID out of visible_to across the room. The
// messages stay in place so the other participant's history is unaffected.
func (r *MessageRepo) RemoveVisibility(ctx context.Context, roomID, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE messages SET visible_to = array_remove(visible_to, $2) WHERE room_id=$1 AND $2 = ANY(visible_to)`,
		roomID, userID)
	if err != nil {
		return fmt.Errorf("remove visibility: %w", err)
	}
	return nil
}

// DeleteMessage hard-deletes the message for every viewer.
func (r *MessageRepo) DeleteMessage(ctx context.Context, messageID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE id=$1`, messageID)
	if err != nil {
		return false, fmt.Errorf("delete message: %w", err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
