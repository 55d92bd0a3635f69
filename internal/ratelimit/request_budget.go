// Package ratelimit coordinates outbound request budgets across processes using Redis.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/address-discovery/internal/logging"
	"github.com/redis/go-redis/v9"
)

// Default budget configuration values.
const (
	DefaultWindowSize = time.Minute
	DefaultKeyPrefix  = "budget:"
)

// consumeScript atomically checks and increments the window counter.
var consumeScript = redis.NewScript(`
	local key = KEYS[1]
	local n = tonumber(ARGV[1])
	local limit = tonumber(ARGV[2])
	local ttl = tonumber(ARGV[3])

	local used = tonumber(redis.call('GET', key) or '0')
	if used + n > limit then
		return {0, used}
	end

	redis.call('INCRBY', key, n)
	redis.call('EXPIRE', key, ttl)
	return {1, used + n}
`)

// RequestBudget caps the number of upstream requests per fixed window for a
// named provider. The counter lives in Redis so the API server and queue
// workers share one budget.
type RequestBudget struct {
	redis      redis.Cmdable
	name       string
	limit      int64
	windowSize time.Duration
	keyPrefix  string
	now        func() time.Time
}

// RequestBudgetConfig holds configuration for a RequestBudget.
type RequestBudgetConfig struct {
	// Redis is required.
	Redis redis.Cmdable

	// Name identifies the provider, e.g. "reddit".
	Name string

	// Limit is the maximum requests per window. Must be positive.
	Limit int64

	// WindowSize defaults to one minute.
	WindowSize time.Duration

	// KeyPrefix defaults to "budget:".
	KeyPrefix string
}

// Validate checks if the configuration is valid.
func (c *RequestBudgetConfig) Validate() error {
	if c.Redis == nil {
		return errors.New("redis client is required")
	}
	if c.Name == "" {
		return errors.New("budget name is required")
	}
	if c.Limit <= 0 {
		return fmt.Errorf("limit must be positive, got %d", c.Limit)
	}
	if c.WindowSize < 0 {
		return errors.New("window size cannot be negative")
	}
	return nil
}

// NewRequestBudget creates a budget from cfg.
func NewRequestBudget(cfg *RequestBudgetConfig) (*RequestBudget, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	windowSize := cfg.WindowSize
	if windowSize == 0 {
		windowSize = DefaultWindowSize
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	return &RequestBudget{
		redis:      cfg.Redis,
		name:       cfg.Name,
		limit:      cfg.Limit,
		windowSize: windowSize,
		keyPrefix:  prefix,
		now:        time.Now,
	}, nil
}

func (b *RequestBudget) windowStart() time.Time {
	return b.now().Truncate(b.windowSize)
}

func (b *RequestBudget) key(windowStart time.Time) string {
	return b.keyPrefix + b.name + ":" + strconv.FormatInt(windowStart.UnixMilli(), 10)
}

// TryConsume takes n requests from the current window. When the window is
// exhausted it returns false and the time until the next window opens.
// Redis failures allow the request; the local limiter still paces it.
func (b *RequestBudget) TryConsume(ctx context.Context, n int64) (bool, time.Duration) {
	if n <= 0 {
		return true, 0
	}

	start := b.windowStart()
	ttlSeconds := int(b.windowSize.Seconds()) + 1

	res, err := consumeScript.Run(ctx, b.redis, []string{b.key(start)}, n, b.limit, ttlSeconds).Int64Slice()
	if err != nil {
		logging.FromContext(ctx).WithField("budget", b.name).WithError(err).Warn("Request budget unavailable, allowing request")
		return true, 0
	}
	if len(res) == 0 || res[0] != 1 {
		return false, b.untilNextWindow(start)
	}
	return true, 0
}

// Wait blocks until one request can be taken or ctx is done.
func (b *RequestBudget) Wait(ctx context.Context) error {
	for {
		ok, wait := b.TryConsume(ctx, 1)
		if ok {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Used returns the number of requests taken in the current window.
func (b *RequestBudget) Used(ctx context.Context) (int64, error) {
	val, err := b.redis.Get(ctx, b.key(b.windowStart())).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return val, err
}

// Limit returns the configured per-window limit.
func (b *RequestBudget) Limit() int64 {
	return b.limit
}

func (b *RequestBudget) untilNextWindow(start time.Time) time.Duration {
	wait := start.Add(b.windowSize).Sub(b.now())
	if wait < 0 {
		wait = 0
	}
	return wait + time.Millisecond
}
