package services

import "chat-core/internal/models"

// Notifier pushes a transient delivery notification to a live session. An
// error means the session was present in the registry but could not be
// written to; callers treat that as a per-recipient delivery failure, never
// as a failure of the send itself.
type Notifier interface {
	Notify(sessionID string, n models.Notification) error
}
