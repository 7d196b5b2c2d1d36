package repositories

import (
	"context"
	"fmt"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Stale flags from a crashed process age out on their own; the flag is
// advisory and never consulted for routing.
const presenceTTL = 24 * time.Hour

// PresenceStore persists advisory online flags.
type PresenceStore interface {
	SetOnline(ctx context.Context, userID string) error
	SetOffline(ctx context.Context, userID string) error
	Online(ctx context.Context, userIDs []string) (map[string]bool, error)
}

// RedisPresenceStore keeps the flags in Redis under presence:<userID>.
type RedisPresenceStore struct {
	client *redis.Client
}

// NewRedisPresenceStore connects to Redis and verifies the connection.
func NewRedisPresenceStore(url string) (*RedisPresenceStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return &RedisPresenceStore{client: client}, nil
}

var _ PresenceStore = (*RedisPresenceStore)(nil)

func presenceKey(userID string) string {
	return "presence:" + userID
}

func (s *RedisPresenceStore) SetOnline(ctx context.Context, userID string) error {
	return s.client.Set(ctx, presenceKey(userID), "1", presenceTTL).Err()
}

func (s *RedisPresenceStore) SetOffline(ctx context.Context, userID string) error {
	return s.client.Del(ctx, presenceKey(userID)).Err()
}

func (s *RedisPresenceStore) Online(ctx context.Context, userIDs []string) (map[string]bool, error) {
	if len(userIDs) == 0 {
		return map[string]bool{}, nil
	}
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, presenceKey(id))
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: mget presence: %w", err)
	}
	out := make(map[string]bool, len(userIDs))
	for i, id := range userIDs {
		out[id] = values[i] != nil
	}
	return out, nil
}

// Close releases the Redis connection.
func (s *RedisPresenceStore) Close() error {
	return s.client.Close()
}

// MemoryPresenceStore is the in-process fallback used when Redis is not
// configured.
type MemoryPresenceStore struct {
	mu     sync.Mutex
	online map[string]struct{}
}

// NewMemoryPresenceStore constructs an empty store.
func NewMemoryPresenceStore() *MemoryPresenceStore {
	return &MemoryPresenceStore{online: make(map[string]struct{})}
}

var _ PresenceStore = (*MemoryPresenceStore)(nil)

func (s *MemoryPresenceStore) SetOnline(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online[userID] = struct{}{}
	return nil
}

func (s *MemoryPresenceStore) SetOffline(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.online, userID)
	return nil
}

func (s *MemoryPresenceStore) Online(ctx context.Context, userIDs []string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		_, ok := s.online[id]
		out[id] = ok
	}
	return out, nil
}
