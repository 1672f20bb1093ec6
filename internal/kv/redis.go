package kv

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// Redis stores keys in a redis database. Values never expire.
type Redis struct {
	client *redis.Client
}

// OpenRedis connects to addr; an empty addr falls back to 127.0.0.1:6379.
func OpenRedis(addr, pass string, db int) *Redis {
	if addr == "" {
		addr = "127.0.0.1:6379"
	}
	return NewRedis(redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db}))
}

func NewRedis(c *redis.Client) *Redis { return &Redis{client: c} }

func (r *Redis) Ping(ctx context.Context) error { return r.client.Ping(ctx).Err() }

func (r *Redis) Close() error { return r.client.Close() }

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, key, value, 0).Err()
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}
