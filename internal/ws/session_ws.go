package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"chat-core/internal/dispatch"
	"chat-core/internal/observability"
)

// SessionHandler owns the single websocket endpoint. One upgrade equals one
// transport session: the dispatcher is told about the connect, and the
// matching disconnect fires when the read loop ends.
type SessionHandler struct {
	hub        *Hub
	dispatcher *dispatch.Dispatcher
	log        zerolog.Logger
}

// NewSessionHandler constructs a SessionHandler.
func NewSessionHandler(hub *Hub, dispatcher *dispatch.Dispatcher, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		hub:        hub,
		dispatcher: dispatcher,
		log:        logger.With().Str("component", "ws").Logger(),
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type connInfo struct {
	SessionID   string
	UserID      string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

// Handle upgrades the request and registers the session.
func (h *SessionHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("chat-core/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID := c.GetString("userID")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}

	wsConn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	conn := NewConnection(userID, wsConn)
	info := connInfo{
		SessionID:   conn.SessionID,
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}

	h.hub.Add(conn)
	conn.Start()

	if previous, superseded := h.dispatcher.Connect(ctx, userID, conn.SessionID); superseded {
		if stale := h.hub.Remove(previous); stale != nil {
			stale.Close(4001, "session replaced")
		}
	}

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	h.publishSessionEvent(ctx, "ws_connect", info, 0, "")

	go h.readLoop(conn, info)
}

func (h *SessionHandler) readLoop(conn *Connection, info connInfo) {
	var closeReason string
	defer func() {
		h.hub.Remove(conn.SessionID)
		conn.Close(websocket.CloseNormalClosure, "")

		// A stale close (the user already reconnected under a new session)
		// must leave the registry and presence untouched.
		h.dispatcher.Disconnect(context.Background(), conn.UserID, conn.SessionID)

		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")
		h.publishSessionEvent(context.Background(), "ws_disconnect", info, time.Since(info.ConnectedAt).Milliseconds(), closeReason)
	}()

	for {
		if _, _, err := conn.ws.ReadMessage(); err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
				h.log.Debug().Err(err).
					Str("session_id", conn.SessionID).
					Str("user_id", conn.UserID).
					Msg("websocket read ended")
			}
			return
		}
	}
}

func (h *SessionHandler) publishSessionEvent(ctx context.Context, event string, info connInfo, durationMS int64, reason string) {
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"event":       event,
			"session_id":  info.SessionID,
			"duration_ms": durationMS,
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(ctx, "ws_events.sessions", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload:   payload,
	}, headers)
}
