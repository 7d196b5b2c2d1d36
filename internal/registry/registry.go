// Package registry tracks which transport session, if any, belongs to each
// logged-in user. At most one session is active per user; a new connect
// silently supersedes the previous one.
package registry

import (
	"hash/fnv"
	"sync"
)

const shardCount = 32

type shard struct {
	mu       sync.Mutex
	sessions map[string]string
}

// Registry is a sharded map from user id to active session id. Operations
// are atomic per user key; no lock ever spans two users in different shards.
type Registry struct {
	shards [shardCount]*shard
}

// New constructs an empty Registry.
func New() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i] = &shard{sessions: make(map[string]string)}
	}
	return r
}

func (r *Registry) shardFor(userID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return r.shards[h.Sum32()%shardCount]
}

// Connect records sessionID as the user's active session, replacing any
// previous mapping. It returns the superseded session id, if there was one,
// so the caller may close the stale socket.
func (r *Registry) Connect(userID, sessionID string) (previous string, superseded bool) {
	s := r.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	previous, superseded = s.sessions[userID]
	s.sessions[userID] = sessionID
	return previous, superseded
}

// Disconnect removes the mapping only if the stored session id still equals
// sessionID. A disconnect that arrives after the user reconnected under a new
// session is a no-op; the return value reports whether a removal occurred.
func (r *Registry) Disconnect(userID, sessionID string) bool {
	s := r.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.sessions[userID]
	if !ok || current != sessionID {
		return false
	}
	delete(s.sessions, userID)
	return true
}

// Lookup returns the user's active session id. Absence is a normal case, not
// an error: the user is simply offline.
func (r *Registry) Lookup(userID string) (string, bool) {
	s := r.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	sessionID, ok := s.sessions[userID]
	return sessionID, ok
}
