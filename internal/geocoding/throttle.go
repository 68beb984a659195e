package geocoding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Throttle decides whether an outbound call to a provider may be issued now.
// An error means the decision could not be made; callers allow the call.
type Throttle interface {
	Allow(ctx context.Context, provider string) (bool, error)
}

type noThrottle struct{}

func (noThrottle) Allow(context.Context, string) (bool, error) { return true, nil }

const redisThrottlePrefix = "geocoder:throttle"

// RedisThrottle counts calls per provider in one-second Redis windows so the
// limit holds across every process sharing the Redis instance.
type RedisThrottle struct {
	client redis.Cmdable
	limits map[string]int
	now    func() time.Time
}

// NewRedisThrottle limits each provider in limits to that many calls per
// second. Providers absent from limits are not throttled.
func NewRedisThrottle(client redis.Cmdable, limits map[string]int) *RedisThrottle {
	return &RedisThrottle{client: client, limits: limits, now: time.Now}
}

func (t *RedisThrottle) Allow(ctx context.Context, provider string) (bool, error) {
	limit, ok := t.limits[provider]
	if !ok || limit <= 0 {
		return true, nil
	}

	key := fmt.Sprintf("%s:%s:%d", redisThrottlePrefix, provider, t.now().Unix())
	pipe := t.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 2*time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("throttle %s: %w", provider, err)
	}

	return incr.Val() <= int64(limit), nil
}

// LocalThrottle is the in-process fallback used when Redis is not configured.
type LocalThrottle struct {
	mu       sync.Mutex
	limits   map[string]int
	limiters map[string]*rate.Limiter
}

func NewLocalThrottle(limits map[string]int) *LocalThrottle {
	return &LocalThrottle{limits: limits, limiters: make(map[string]*rate.Limiter)}
}

func (t *LocalThrottle) Allow(_ context.Context, provider string) (bool, error) {
	limit, ok := t.limits[provider]
	if !ok || limit <= 0 {
		return true, nil
	}

	t.mu.Lock()
	limiter, exists := t.limiters[provider]
	if !exists {
		limiter = rate.NewLimiter(rate.Limit(limit), limit)
		t.limiters[provider] = limiter
	}
	t.mu.Unlock()

	return limiter.Allow(), nil
}
