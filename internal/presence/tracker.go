// Package presence mirrors registry connect/disconnect events into a
// persisted online flag. The flag is advisory: it may lag the registry and is
// never consulted for routing decisions.
package presence

import (
	"context"

	"github.com/rs/zerolog"

	"chat-core/internal/repositories"
)

// Tracker writes best-effort online flags. Store failures are logged and
// swallowed; a crash between registry update and flag update is tolerated.
type Tracker struct {
	store repositories.PresenceStore
	log   zerolog.Logger
}

// NewTracker constructs a Tracker.
func NewTracker(store repositories.PresenceStore, logger zerolog.Logger) *Tracker {
	return &Tracker{store: store, log: logger.With().Str("component", "presence").Logger()}
}

// MarkOnline flags the user online.
func (t *Tracker) MarkOnline(ctx context.Context, userID string) {
	if err := t.store.SetOnline(ctx, userID); err != nil {
		t.log.Warn().Err(err).Str("user_id", userID).Msg("mark online failed")
	}
}

// MarkOffline clears the user's online flag.
func (t *Tracker) MarkOffline(ctx context.Context, userID string) {
	if err := t.store.SetOffline(ctx, userID); err != nil {
		t.log.Warn().Err(err).Str("user_id", userID).Msg("mark offline failed")
	}
}

// OnlineStatus reports the advisory flags for the given users.
func (t *Tracker) OnlineStatus(ctx context.Context, userIDs []string) (map[string]bool, error) {
	return t.store.Online(ctx, userIDs)
}
