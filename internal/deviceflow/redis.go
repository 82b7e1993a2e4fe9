package deviceflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionPrefix = "device:"

// RedisStore implements the Store interface using Redis
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisStore creates a new Redis-backed store
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

// CheckHealth verifies Redis connectivity
func (s *RedisStore) CheckHealth(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// SaveSession stores a session with a TTL ending at its expiry
func (s *RedisStore) SaveSession(ctx context.Context, session *Session) error {
	ttl := session.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return ErrExpiredCode
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshaling device session: %w", err)
	}

	if err := s.client.Set(ctx, sessionPrefix+session.DeviceCode, data, ttl).Err(); err != nil {
		return fmt.Errorf("saving device session: %w", err)
	}
	return nil
}

// GetSession retrieves a session
func (s *RedisStore) GetSession(ctx context.Context, deviceCode string) (*Session, error) {
	data, err := s.client.Get(ctx, sessionPrefix+deviceCode).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting device session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshaling device session: %w", err)
	}
	return &session, nil
}

// DeleteSession removes a session
func (s *RedisStore) DeleteSession(ctx context.Context, deviceCode string) error {
	if err := s.client.Del(ctx, sessionPrefix+deviceCode).Err(); err != nil {
		return fmt.Errorf("deleting device session: %w", err)
	}
	return nil
}
