package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"solvency/internal/domain"
)

const DefaultTTL = 5 * time.Minute

// only the holder's token may delete the lease
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a lease lock held with SET NX PX.
type Redis struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedis(client redis.UniversalClient, ttl time.Duration) (*Redis, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, prefix: "solvency:publish:", ttl: ttl}, nil
}

func (l *Redis) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	token := uuid.NewString()
	name := l.prefix + key
	ok, err := l.client.SetNX(ctx, name, token, l.ttl).Result()
	if err != nil {
		return nil, &domain.TransientError{Op: "acquire publish lease", Err: err}
	}
	if !ok {
		return nil, fmt.Errorf("publish lease %s is held: %w", key, domain.ErrConflict)
	}
	return func(ctx context.Context) error {
		return releaseScript.Run(ctx, l.client, []string{name}, token).Err()
	}, nil
}

// NewClient builds the shared client used by the lease lock and the rate limiter.
func NewClient(addr, password string, db int) (*redis.Client, error) {
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}), nil
}
