package store

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// Redis persists room contexts in a shared key/value service so a restarted
// node can rehydrate rooms it owned. Set is last-writer-wins; room ownership
// is pinned to the node that created the actor, so concurrent writers for
// one key do not occur in a healthy deployment.
type Redis struct {
	client *redis.Client
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Get returns the stored value for key.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Set stores value under key with no expiry.
func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, key, value, 0).Err()
}
