package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Limiter shared by every server instance using the same Redis.
type Redis struct {
	client *redis.Client
	limit  int
	loc    *time.Location
	prefix string
	now    func() time.Time
}

// NewRedisClient parses a redis:// URL and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewRedis allows limit calls per key per calendar day in loc.
func NewRedis(client *redis.Client, limit int, loc *time.Location) *Redis {
	return &Redis{
		client: client,
		limit:  limit,
		loc:    loc,
		prefix: "mockinterview:dailycap",
		now:    time.Now,
	}
}

func (r *Redis) key(day, id string) string {
	return fmt.Sprintf("%s:%s:%s", r.prefix, day, id)
}

// Consume increments the caller's counter for the current day. The key expires
// at the next local midnight, so a new day starts from zero.
func (r *Redis) Consume(ctx context.Context, key string) (Result, error) {
	now := r.now()
	resetAt := NextMidnight(now, r.loc)
	k := r.key(dayStamp(now, r.loc), HashKey(key))

	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.ExpireAt(ctx, k, resetAt)
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("daily cap incr: %w", err)
	}

	count := int(incr.Val())
	return Result{
		Allowed:   count <= r.limit,
		Limit:     r.limit,
		Remaining: max(0, r.limit-count),
		ResetAt:   resetAt,
	}, nil
}
