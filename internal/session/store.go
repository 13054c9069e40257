package session

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "assist:last_entity:"

// Store remembers the last explicitly referenced entity per conversation so
// follow-ups like "turn it off" can resolve. Backed by redis so the memory
// survives websocket reconnects; a nil Store remembers nothing.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// New connects to redis. addr empty returns a nil store, which every method
// tolerates.
func New(addr, password string) *Store {
	if addr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	return &Store{rdb: rdb, ttl: 30 * time.Minute}
}

// NewWithClient wraps an existing client; used by tests.
func NewWithClient(rdb *redis.Client) *Store {
	return &Store{rdb: rdb, ttl: 30 * time.Minute}
}

// RememberEntity records the entity the conversation last addressed.
func (s *Store) RememberEntity(ctx context.Context, conversationID, entityID string) error {
	if s == nil || s.rdb == nil || conversationID == "" || entityID == "" {
		return nil
	}
	return s.rdb.Set(ctx, keyPrefix+conversationID, entityID, s.ttl).Err()
}

// LastEntity returns the remembered entity id, or "" when nothing is stored.
func (s *Store) LastEntity(ctx context.Context, conversationID string) (string, error) {
	if s == nil || s.rdb == nil || conversationID == "" {
		return "", nil
	}
	val, err := s.rdb.Get(ctx, keyPrefix+conversationID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

// Forget clears the remembered entity for a conversation.
func (s *Store) Forget(ctx context.Context, conversationID string) error {
	if s == nil || s.rdb == nil || conversationID == "" {
		return nil
	}
	return s.rdb.Del(ctx, keyPrefix+conversationID).Err()
}

// Close releases the redis connection.
func (s *Store) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}
