package middleware

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const failurePrefix = "rl:auth:"

// FailureLimiter counts authentication failures per subject in one-minute
// windows. It fails open when Redis is absent or erroring.
type FailureLimiter struct {
	cache     *redis.Client
	maxPerMin int
}

// NewFailureLimiter builds a limiter. A non-positive max defaults to 5.
func NewFailureLimiter(cache *redis.Client, maxPerMin int) *FailureLimiter {
	if maxPerMin <= 0 {
		maxPerMin = 5
	}
	return &FailureLimiter{cache: cache, maxPerMin: maxPerMin}
}

// Blocked reports whether subject exhausted its failures for the window.
func (l *FailureLimiter) Blocked(ctx context.Context, subject string) bool {
	if l == nil || l.cache == nil {
		return false
	}
	cnt, err := l.cache.Get(ctx, failurePrefix+subject).Int()
	if err != nil {
		return false
	}
	return cnt >= l.maxPerMin
}

// Fail records one failure for subject.
func (l *FailureLimiter) Fail(ctx context.Context, subject string) {
	if l == nil || l.cache == nil {
		return
	}
	key := failurePrefix + subject
	cnt, err := l.cache.Incr(ctx, key).Result()
	if err == nil && cnt == 1 {
		l.cache.Expire(ctx, key, time.Minute)
	}
}
