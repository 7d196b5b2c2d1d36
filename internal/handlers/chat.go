package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chat-core/internal/dispatch"
	"chat-core/internal/models"
	"chat-core/internal/repositories"
	"chat-core/internal/room"
	"chat-core/internal/services"
	"chat-core/internal/telemetry"
	"chat-core/internal/ws"
)

// ChatHandler exposes the dispatcher operations over HTTP.
type ChatHandler struct {
	dispatcher *dispatch.Dispatcher
	hub        *ws.Hub
	audit      *telemetry.AuditEmitter
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(dispatcher *dispatch.Dispatcher, hub *ws.Hub, audit *telemetry.AuditEmitter) *ChatHandler {
	return &ChatHandler{dispatcher: dispatcher, hub: hub, audit: audit}
}

type attachmentRequest struct {
	URL  string `json:"url" binding:"required"`
	Type string `json:"type" binding:"required"`
	Name string `json:"name" binding:"required"`
}

func (a *attachmentRequest) toModel() *models.Attachment {
	if a == nil {
		return nil
	}
	return &models.Attachment{URL: a.URL, Type: a.Type, Name: a.Name}
}

// SendDirect persists and delivers a one-to-one message.
func (h *ChatHandler) SendDirect(c *gin.Context) {
	var req struct {
		ReceiverID string             `json:"receiver_id" binding:"required"`
		Text       string             `json:"text" binding:"required"`
		Attachment *attachmentRequest `json:"attachment"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	senderID := c.GetString("userID")
	msg, err := h.dispatcher.SendDirect(c.Request.Context(), senderID, req.ReceiverID, req.Text, req.Attachment.toModel())
	if err != nil {
		respondError(c, err)
		return
	}

	h.audit.Emit(c.Request.Context(), "INFO", "direct message sent", requestIDFromContext(c), &senderID)
	c.JSON(http.StatusCreated, msg)
}

// SendGroup persists and fans out a group message.
func (h *ChatHandler) SendGroup(c *gin.Context) {
	var req struct {
		GroupID    string             `json:"group_id" binding:"required"`
		Text       string             `json:"text" binding:"required"`
		Attachment *attachmentRequest `json:"attachment"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	senderID := c.GetString("userID")
	msg, err := h.dispatcher.SendGroup(c.Request.Context(), senderID, req.GroupID, req.Text, req.Attachment.toModel())
	if err != nil {
		respondError(c, err)
		return
	}

	h.audit.Emit(c.Request.Context(), "INFO", "group message sent", requestIDFromContext(c), &senderID)
	c.JSON(http.StatusCreated, msg)
}

// GetRoomMessages returns the caller's visible history with a friend.
func (h *ChatHandler) GetRoomMessages(c *gin.Context) {
	friendID := c.Param("friend_id")
	userID := c.GetString("userID")
	if !room.ValidID(friendID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid friend id"})
		return
	}

	msgs, err := h.dispatcher.ListRoomHistory(c.Request.Context(), room.Key(userID, friendID), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// GetGroupMessages returns the caller's visible history in a group.
func (h *ChatHandler) GetGroupMessages(c *gin.Context) {
	groupID := c.Param("group_id")
	userID := c.GetString("userID")

	msgs, err := h.dispatcher.ListGroupHistory(c.Request.Context(), groupID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// UnreadCounts reports unread direct messages grouped by sender.
func (h *ChatHandler) UnreadCounts(c *gin.Context) {
	userID := c.GetString("userID")

	counts, err := h.dispatcher.UnreadCounts(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": counts})
}

// MarkRead flips all unread messages from a sender to the caller.
func (h *ChatHandler) MarkRead(c *gin.Context) {
	var req struct {
		SenderID string `json:"sender_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	marked, err := h.dispatcher.MarkRead(c.Request.Context(), userID, req.SenderID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": marked})
}

// ClearRoomForMe removes the caller from the visibility set of a room's
// messages. The friend's history is untouched.
func (h *ChatHandler) ClearRoomForMe(c *gin.Context) {
	friendID := c.Param("friend_id")
	userID := c.GetString("userID")
	if !room.ValidID(friendID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid friend id"})
		return
	}

	if err := h.dispatcher.ClearRoomForUser(c.Request.Context(), room.Key(userID, friendID), userID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteMessage hard-deletes a message for every viewer and notifies live
// sessions.
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	messageID, err := strconv.ParseInt(c.Param("message_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	if err := h.dispatcher.DeleteMessage(c.Request.Context(), messageID); err != nil {
		respondError(c, err)
		return
	}

	userID := c.GetString("userID")
	h.audit.Emit(c.Request.Context(), "INFO", "message deleted", requestIDFromContext(c), &userID)
	h.hub.BroadcastDeletion(messageID)
	c.Status(http.StatusNoContent)
}

// OnlineStatus reports advisory presence flags for the requested users.
func (h *ChatHandler) OnlineStatus(c *gin.Context) {
	ids := splitIDs(c.Query("user_ids"))
	if len(ids) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_ids is required"})
		return
	}

	flags, err := h.dispatcher.OnlineStatus(c.Request.Context(), ids)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"online": flags})
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repositories.ErrGroupNotFound),
		errors.Is(err, repositories.ErrMessageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
