package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// SessionStore implements scs.Store and scs.CtxStore on a Redis client.
// Session data is kept under <prefix>:session:<token> with the session's
// expiry as TTL.
type SessionStore struct {
	redis  goredis.UniversalClient
	prefix string
}

// NewSessionStore creates a SessionStore. prefix sets the Redis key namespace.
func NewSessionStore(redis goredis.UniversalClient, prefix string) *SessionStore {
	if prefix == "" {
		prefix = "scs"
	}
	return &SessionStore{redis: redis, prefix: prefix}
}

func (s *SessionStore) key(token string) string {
	return s.prefix + ":session:" + token
}

func (s *SessionStore) FindCtx(ctx context.Context, token string) ([]byte, bool, error) {
	data, err := s.redis.Get(ctx, s.key(token)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis session lookup failed: %w", err)
	}
	return data, true, nil
}

func (s *SessionStore) CommitCtx(ctx context.Context, token string, b []byte, expiry time.Time) error {
	ttl := time.Until(expiry)
	if ttl <= 0 {
		return s.DeleteCtx(ctx, token)
	}
	if err := s.redis.Set(ctx, s.key(token), b, ttl).Err(); err != nil {
		return fmt.Errorf("redis session commit failed: %w", err)
	}
	return nil
}

func (s *SessionStore) DeleteCtx(ctx context.Context, token string) error {
	if err := s.redis.Del(ctx, s.key(token)).Err(); err != nil {
		return fmt.Errorf("redis session delete failed: %w", err)
	}
	return nil
}

func (s *SessionStore) Find(token string) ([]byte, bool, error) {
	return s.FindCtx(context.Background(), token)
}

func (s *SessionStore) Commit(token string, b []byte, expiry time.Time) error {
	return s.CommitCtx(context.Background(), token, b, expiry)
}

func (s *SessionStore) Delete(token string) error {
	return s.DeleteCtx(context.Background(), token)
}
