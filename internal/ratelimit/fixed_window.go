package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var fixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// Options configure a FixedWindowLimiter.
type Options struct {
	Limit  int
	Window time.Duration
	Prefix string
	// FailOpen admits requests when Redis is unreachable. Default is fail closed.
	FailOpen bool
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// FixedWindowLimiter limits requests per key (brand id or client ip) in a fixed time window.
type FixedWindowLimiter struct {
	limit    int
	window   time.Duration
	prefix   string
	failOpen bool
	client   redis.Cmdable
	now      func() time.Time
}

// NewFixedWindowLimiter creates a Redis-backed distributed limiter on an existing client.
func NewFixedWindowLimiter(client redis.Cmdable, opts Options) (*FixedWindowLimiter, error) {
	if opts.Limit <= 0 || opts.Window <= 0 {
		return nil, errors.New("rate limiter requires positive limit and window")
	}
	if client == nil {
		return nil, errors.New("rate limiter redis client is required")
	}
	prefix := strings.TrimSpace(opts.Prefix)
	if prefix == "" {
		prefix = "autogensocial:ratelimit"
	}
	return &FixedWindowLimiter{
		limit:    opts.Limit,
		window:   opts.Window,
		prefix:   prefix,
		failOpen: opts.FailOpen,
		client:   client,
		now:      time.Now,
	}, nil
}

// Allow counts one hit for key in the current window.
func (l *FixedWindowLimiter) Allow(ctx context.Context, key string) Decision {
	if l == nil {
		return Decision{}
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "unknown"
	}
	windowMs := l.window.Milliseconds()
	nowMs := l.now().UTC().UnixMilli()
	slot := nowMs / windowMs
	retryAfter := time.Duration((slot+1)*windowMs-nowMs) * time.Millisecond

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	redisKey := fmt.Sprintf("%s:%s:%d", l.prefix, key, slot)
	count, err := fixedWindowScript.Run(ctx, l.client, []string{redisKey}, windowMs).Int64()
	if err != nil {
		if l.failOpen {
			return Decision{Allowed: true}
		}
		return Decision{RetryAfter: retryAfter}
	}
	if count > int64(l.limit) {
		return Decision{RetryAfter: retryAfter}
	}
	return Decision{Allowed: true, Remaining: l.limit - int(count)}
}
