package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// KV is the subset of the redis client used for snapshots.
type KV interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	GetBytes(ctx context.Context, key string) ([]byte, bool, error)
	CartKey(name string) string
}

// RedisStore persists snapshots as plain redis strings without expiry.
type RedisStore struct {
	kv KV
}

func NewRedisStore(kv KV) (*RedisStore, error) {
	if kv == nil {
		return nil, errors.New("redis client required")
	}
	return &RedisStore{kv: kv}, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, payload []byte) error {
	if err := s.kv.Set(ctx, s.kv.CartKey(key), payload, 0); err != nil {
		return fmt.Errorf("redis put snapshot: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	payload, found, err := s.kv.GetBytes(ctx, s.kv.CartKey(key))
	if err != nil {
		return nil, fmt.Errorf("redis get snapshot: %w", err)
	}
	if !found {
		return nil, ErrNotFound
	}
	return payload, nil
}
