package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis keeps client slots in redis under "<prefix>:<client>:<key>". Each
// write refreshes the TTL so abandoned clients age out on their own.
type Redis struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedis creates a redis-backed provider. A zero ttl keeps keys forever.
func NewRedis(client redis.UniversalClient, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = "lg:kv"
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

// ForClient returns the slot for clientID
func (r *Redis) ForClient(clientID string) Store {
	return &redisStore{parent: r, client: clientKey(clientID)}
}

type redisStore struct {
	parent *Redis
	client string
}

func (s *redisStore) key(k string) string {
	return s.parent.prefix + ":" + s.client + ":" + k
}

func (s *redisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.parent.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kvstore: redis get: %w", err)
	}
	return val, true, nil
}

func (s *redisStore) Set(ctx context.Context, key, value string) error {
	if err := s.parent.client.Set(ctx, s.key(key), value, s.parent.ttl).Err(); err != nil {
		return fmt.Errorf("kvstore: redis set: %w", err)
	}
	return nil
}

func (s *redisStore) Delete(ctx context.Context, key string) error {
	if err := s.parent.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("kvstore: redis del: %w", err)
	}
	return nil
}
