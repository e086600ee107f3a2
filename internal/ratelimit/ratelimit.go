// Package ratelimit implements a fixed-window request limiter on Redis.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter allows at most limit requests per key per window.
type Limiter struct {
	redis  redis.Cmdable
	limit  int64
	window time.Duration
	prefix string
}

// New constructs a Limiter. A limit of zero disables limiting.
func New(client redis.Cmdable, limit int, window time.Duration) *Limiter {
	return &Limiter{
		redis:  client,
		limit:  int64(limit),
		window: window,
		prefix: "ratelimit:registration:",
	}
}

// incrWindowScript counts a request and starts the window on the first one.
// Running both steps in one script means a key can never be left without an
// expiry.
const incrWindowScript = `
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`

// Allow counts one request for key and reports whether it is within the
// limit.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.limit <= 0 {
		return true, nil
	}
	k := l.prefix + key

	count, err := l.redis.Eval(ctx, incrWindowScript, []string{k}, l.window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("count %s: %w", k, err)
	}
	return count <= l.limit, nil
}
