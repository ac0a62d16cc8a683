package lease

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	Client *redis.Client
}

func NewRedisLocker(opt *redis.Options) *RedisLocker {
	return &RedisLocker{Client: redis.NewClient(opt)}
}

func (r *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	token := newToken()
	ok, err := r.Client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lease %s: %w", key, err)
	}
	if !ok {
		return nil, ErrHeld
	}
	return &Lease{Key: key, Token: token, ExpiresAt: time.Now().Add(ttl)}, nil
}

func (r *RedisLocker) Release(ctx context.Context, l *Lease) error {
	if l == nil {
		return nil
	}
	if err := releaseScript.Run(ctx, r.Client, []string{l.Key}, l.Token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("release lease %s: %w", l.Key, err)
	}
	return nil
}

func (r *RedisLocker) Ping(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}

func (r *RedisLocker) Close() error {
	return r.Client.Close()
}
