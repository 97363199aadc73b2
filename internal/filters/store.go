// Package filters keeps the list-screen filters of each user so a screen
// can restore them on entry after being left.
package filters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrInvalidScreen = errors.New("invalid screen name")

var screenPattern = regexp.MustCompile(`^[a-z][a-z0-9-]{0,63}$`)

// Filters is the saved state of one screen: field name to value.
type Filters map[string]string

type Store interface {
	Save(ctx context.Context, userID, screen string, filters Filters) error
	Load(ctx context.Context, userID, screen string) (Filters, error)
}

func ValidScreen(screen string) error {
	if !screenPattern.MatchString(screen) {
		return fmt.Errorf("%w: %q", ErrInvalidScreen, screen)
	}
	return nil
}

func key(userID, screen string) string {
	return "pestops:filters:" + userID + ":" + screen
}

// RedisStore keeps filters in Redis so they survive restarts and follow the
// user across service instances.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Save(ctx context.Context, userID, screen string, filters Filters) error {
	if err := ValidScreen(screen); err != nil {
		return err
	}
	if len(filters) == 0 {
		return s.client.Del(ctx, key(userID, screen)).Err()
	}
	raw, err := json.Marshal(filters)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key(userID, screen), raw, s.ttl).Err()
}

func (s *RedisStore) Load(ctx context.Context, userID, screen string) (Filters, error) {
	if err := ValidScreen(screen); err != nil {
		return nil, err
	}
	raw, err := s.client.Get(ctx, key(userID, screen)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Filters{}, nil
	}
	if err != nil {
		return nil, err
	}
	var filters Filters
	if err := json.Unmarshal(raw, &filters); err != nil {
		return nil, fmt.Errorf("decode filters: %w", err)
	}
	return filters, nil
}

// MemoryStore is the fallback when no Redis is configured.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]Filters
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]Filters)}
}

func (s *MemoryStore) Save(_ context.Context, userID, screen string, filters Filters) error {
	if err := ValidScreen(screen); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(filters) == 0 {
		delete(s.items, key(userID, screen))
		return nil
	}
	copied := make(Filters, len(filters))
	for k, v := range filters {
		copied[k] = v
	}
	s.items[key(userID, screen)] = copied
	return nil
}

func (s *MemoryStore) Load(_ context.Context, userID, screen string) (Filters, error) {
	if err := ValidScreen(screen); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	saved := s.items[key(userID, screen)]
	copied := make(Filters, len(saved))
	for k, v := range saved {
		copied[k] = v
	}
	return copied, nil
}
