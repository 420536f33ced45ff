package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RedisSessionStore persists sessions until they expire.
type RedisSessionStore struct {
	cache *RedisCache
	now   func() time.Time
}

func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{cache: NewRedisCache(client), now: time.Now}
}

func (s *RedisSessionStore) GetSession(ctx context.Context, userID string) (*domain.Session, error) {
	var session domain.Session
	if err := s.cache.getJSON(ctx, sessionKey(userID), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// SetSession stores the session with a TTL matching its expiry. Already
// expired sessions are not stored.
func (s *RedisSessionStore) SetSession(ctx context.Context, userID string, session *domain.Session) error {
	ttl := session.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return s.DeleteSession(ctx, userID)
	}
	return s.cache.setJSON(ctx, sessionKey(userID), session, ttl)
}

func (s *RedisSessionStore) DeleteSession(ctx context.Context, userID string) error {
	return s.cache.del(ctx, sessionKey(userID))
}

func sessionKey(userID string) string {
	return fmt.Sprintf("session:%s", userID)
}
