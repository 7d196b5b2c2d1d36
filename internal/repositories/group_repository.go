package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var ErrGroupNotFound = errors.New("group not found")

// GroupMembership is the read-side view of the external group service. The
// delivery core never mutates membership; it only snapshots the member set at
// send time.
type GroupMembership interface {
	// GetMembers returns the group's current member ids, or ErrGroupNotFound
	// when the group does not exist.
	GetMembers(ctx context.Context, groupID string) ([]string, error)
}

// GroupRepo reads membership from the tables owned by the group service.
type GroupRepo struct {
	db *sqlx.DB
}

// NewGroupRepo constructs a GroupRepo.
func NewGroupRepo(db *sqlx.DB) *GroupRepo {
	return &GroupRepo{db: db}
}

var _ GroupMembership = (*GroupRepo)(nil)

// GetMembers snapshots the group's member set.
func (r *GroupRepo) GetMembers(ctx context.Context, groupID string) ([]string, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM groups WHERE id=$1)`, groupID); err != nil {
		return nil, fmt.Errorf("check group: %w", err)
	}
	if !exists {
		return nil, ErrGroupNotFound
	}

	var members []string
	if err := r.db.SelectContext(ctx, &members, `SELECT user_id FROM group_members WHERE group_id=$1 ORDER BY user_id`, groupID); err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}
	return members, nil
}
