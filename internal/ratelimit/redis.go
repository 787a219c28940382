package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit:fallback:"

// allowScript checks before incrementing so a rejected request never
// extends or bumps the window. The TTL is set on the first hit only.
var allowScript = redis.NewScript(`
local count = tonumber(redis.call('GET', KEYS[1]) or '0')
if count >= tonumber(ARGV[1]) then
  return 0
end
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 1
`)

// Redis is a fixed-window limiter shared by every relay instance pointing at
// the same Redis.
type Redis struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func NewRedis(redisURL string, limit int) (*Redis, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisWithClient(redis.NewClient(opt), limit), nil
}

func NewRedisWithClient(client *redis.Client, limit int) *Redis {
	return &Redis{client: client, limit: limit, window: DefaultWindow}
}

func (r *Redis) Allow(ctx context.Context, identity string) (bool, error) {
	res, err := allowScript.Run(ctx, r.client, []string{keyPrefix + identity}, r.limit, r.window.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit script: %w", err)
	}
	return res == 1, nil
}

func (r *Redis) Limit() int { return r.limit }

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
