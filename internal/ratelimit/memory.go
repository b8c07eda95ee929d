package ratelimit

import (
	"context"
	"sync"
	"time"
)

type bucket struct {
	count   int
	resetAt time.Time
}

// DailyCap is an in-process Limiter. Counts are lost on restart.
type DailyCap struct {
	limit int
	loc   *time.Location
	now   func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

// NewDailyCap allows limit calls per key per calendar day in loc.
func NewDailyCap(limit int, loc *time.Location) *DailyCap {
	return &DailyCap{
		limit:   limit,
		loc:     loc,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

func (c *DailyCap) Consume(_ context.Context, key string) (Result, error) {
	now := c.now()
	id := HashKey(key)

	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.buckets[id]
	if !ok || !b.resetAt.After(now) {
		if !ok {
			c.sweep(now)
		}
		b = &bucket{resetAt: NextMidnight(now, c.loc)}
		c.buckets[id] = b
	}

	if b.count >= c.limit {
		return Result{Allowed: false, Limit: c.limit, Remaining: 0, ResetAt: b.resetAt}, nil
	}
	b.count++
	return Result{
		Allowed:   true,
		Limit:     c.limit,
		Remaining: max(0, c.limit-b.count),
		ResetAt:   b.resetAt,
	}, nil
}

// sweep drops expired buckets. Caller holds mu.
func (c *DailyCap) sweep(now time.Time) {
	for k, b := range c.buckets {
		if !b.resetAt.After(now) {
			delete(c.buckets, k)
		}
	}
}
