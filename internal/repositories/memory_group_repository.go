package repositories

import (
	"context"
	"sort"
	"sync"
)

// MemoryGroupStore is an in-process GroupMembership for development and tests.
type MemoryGroupStore struct {
	mu     sync.RWMutex
	groups map[string]map[string]struct{}
}

// NewMemoryGroupStore creates an empty membership store.
func NewMemoryGroupStore() *MemoryGroupStore {
	return &MemoryGroupStore{groups: make(map[string]map[string]struct{})}
}

var _ GroupMembership = (*MemoryGroupStore)(nil)

// AddMember creates the group on first use and adds the user to it.
func (s *MemoryGroupStore) AddMember(groupID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	members, ok := s.groups[groupID]
	if !ok {
		members = make(map[string]struct{})
		s.groups[groupID] = members
	}
	members[userID] = struct{}{}
}

// GetMembers snapshots the group's member set.
func (s *MemoryGroupStore) GetMembers(ctx context.Context, groupID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members, ok := s.groups[groupID]
	if !ok {
		return nil, ErrGroupNotFound
	}

	ids := make([]string, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
