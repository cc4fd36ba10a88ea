package bruteforce

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "bruteforce"

// recordFailureScript increments the counter and gives it a TTL when it has
// none. An existing TTL is left alone so the window stays anchored at the
// first failure.
var recordFailureScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// RedisGuard keeps counters in Redis so every instance sees the same
// failures. The window is the key's TTL, set on the first failure.
type RedisGuard struct {
	client    redis.UniversalClient
	cfg       Config
	keyPrefix string
}

func NewRedisGuard(client redis.UniversalClient, cfg Config, keyPrefix string) *RedisGuard {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisGuard{client: client, cfg: cfg, keyPrefix: keyPrefix}
}

func (g *RedisGuard) IsBlocked(ctx context.Context, key string) (bool, error) {
	count, err := g.client.Get(ctx, g.key(key)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis get: %w", err)
	}
	return count >= g.cfg.MaxAttempts, nil
}

func (g *RedisGuard) RecordFailure(ctx context.Context, key string) error {
	err := recordFailureScript.Run(ctx, g.client, []string{g.key(key)}, g.cfg.Window.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("redis record failure: %w", err)
	}
	return nil
}

func (g *RedisGuard) key(identifier string) string {
	return fmt.Sprintf("%s:%s", g.keyPrefix, identifier)
}
