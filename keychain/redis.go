package keychain

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis stores items in a Redis keyspace as "service:accessGroup:key".
// Items never expire.
type Redis struct {
	redis redis.UniversalClient
	ns    Namespace
}

// NewRedis creates a Redis-backed keychain in the given namespace.
func NewRedis(client redis.UniversalClient, service, accessGroup string) *Redis {
	return &Redis{
		redis: client,
		ns:    Namespace{Service: service, AccessGroup: accessGroup},
	}
}

func (r *Redis) String(ctx context.Context, key string) (string, error) {
	v, err := r.redis.Get(ctx, r.ns.redisKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return v, nil
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	if err := r.redis.Set(ctx, r.ns.redisKey(key), value, 0).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.redis.Del(ctx, r.ns.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}
