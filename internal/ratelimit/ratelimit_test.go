package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"
)

var ist = time.FixedZone("IST", 5*60*60+30*60)

func TestNextMidnight(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"utc evening is next ist day", time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC), time.Date(2026, 3, 12, 0, 0, 0, 0, ist)},
		{"utc morning", time.Date(2026, 3, 10, 5, 0, 0, 0, time.UTC), time.Date(2026, 3, 11, 0, 0, 0, 0, ist)},
		{"exact midnight moves a full day", time.Date(2026, 3, 11, 0, 0, 0, 0, ist), time.Date(2026, 3, 12, 0, 0, 0, 0, ist)},
		{"month end", time.Date(2026, 1, 31, 23, 59, 0, 0, ist), time.Date(2026, 2, 1, 0, 0, 0, 0, ist)},
		{"year end", time.Date(2026, 12, 31, 12, 0, 0, 0, ist), time.Date(2027, 1, 1, 0, 0, 0, 0, ist)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextMidnight(tt.now, ist)
			if !got.Equal(tt.want) {
				t.Errorf("NextMidnight(%v) = %v, want %v", tt.now, got, tt.want)
			}
			if !got.After(tt.now) || got.Sub(tt.now) > 24*time.Hour {
				t.Errorf("reset %v not within (now, now+24h]", got)
			}
		})
	}
}

func TestLoadLocation(t *testing.T) {
	loc := LoadLocation("")
	_, offset := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC).In(loc).Zone()
	if offset != 5*60*60+30*60 {
		t.Errorf("default zone offset = %d, want +05:30", offset)
	}
	if got := LoadLocation("Not/AZone"); got != time.UTC {
		t.Errorf("unknown zone should fall back to UTC, got %v", got)
	}
}

func TestHashKey(t *testing.T) {
	a, b := HashKey("203.0.113.7"), HashKey("203.0.113.8")
	if a == b {
		t.Error("different keys should hash differently")
	}
	if a != HashKey("203.0.113.7") {
		t.Error("hash should be stable")
	}
	if len(a) != 32 {
		t.Errorf("expected 32 hex chars, got %d", len(a))
	}
}

func TestDailyCap(t *testing.T) {
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, ist)
	c := NewDailyCap(3, ist)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		res, err := c.Consume(ctx, "u1")
		if err != nil {
			t.Fatalf("Consume: %v", err)
		}
		if !res.Allowed || res.Remaining != 3-i || res.Limit != 3 {
			t.Fatalf("call %d: unexpected result %+v", i, res)
		}
	}

	res, err := c.Consume(ctx, "u1")
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if res.Allowed {
		t.Fatal("call over the cap should be rejected")
	}
	if res.Remaining != 0 {
		t.Errorf("expected 0 remaining, got %d", res.Remaining)
	}
	if !res.ResetAt.After(now) || res.ResetAt.Sub(now) > 24*time.Hour {
		t.Errorf("reset %v not within (now, now+24h]", res.ResetAt)
	}
	if got := res.RetryAfter(now); got != 14*time.Hour {
		t.Errorf("RetryAfter = %v, want 14h", got)
	}
	if got := res.RetryAfter(now.Add(500 * time.Millisecond)); got != 14*time.Hour {
		t.Errorf("RetryAfter should round up, got %v", got)
	}

	// Other callers have their own budget.
	if res, _ := c.Consume(ctx, "u2"); !res.Allowed {
		t.Error("a different caller should be allowed")
	}

	// The window resets at local midnight.
	now = time.Date(2026, 3, 11, 0, 0, 1, 0, ist)
	res, _ = c.Consume(ctx, "u1")
	if !res.Allowed || res.Remaining != 2 {
		t.Errorf("expected fresh budget after midnight, got %+v", res)
	}
	if len(c.buckets) != 2 {
		t.Errorf("expected 2 live buckets, got %d", len(c.buckets))
	}
}

func TestDailyCapSweepsExpiredBuckets(t *testing.T) {
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, ist)
	c := NewDailyCap(1, ist)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c"} {
		c.Consume(ctx, k)
	}
	now = now.Add(24 * time.Hour)
	c.Consume(ctx, "d")
	if len(c.buckets) != 1 {
		t.Errorf("expected expired buckets to be swept, have %d", len(c.buckets))
	}
}

func TestRedisLimiter(t *testing.T) {
	url := os.Getenv("MOCKINTERVIEW_TEST_REDIS_URL")
	if url == "" {
		t.Skip("MOCKINTERVIEW_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	client, err := NewRedisClient(ctx, url)
	if err != nil {
		t.Fatalf("NewRedisClient: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	r := NewRedis(client, 2, ist)
	r.prefix = "mockinterview:test:" + time.Now().Format("150405.000000")
	key := "caller"

	for i := 1; i <= 2; i++ {
		res, err := r.Consume(ctx, key)
		if err != nil {
			t.Fatalf("Consume: %v", err)
		}
		if !res.Allowed || res.Remaining != 2-i {
			t.Fatalf("call %d: unexpected result %+v", i, res)
		}
	}
	res, err := r.Consume(ctx, key)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if res.Allowed {
		t.Error("third call should be rejected")
	}
	ttl, err := client.TTL(ctx, r.key(dayStamp(time.Now(), ist), HashKey(key))).Result()
	if err != nil {
		t.Fatalf("TTL: %v", err)
	}
	if ttl <= 0 || ttl > 24*time.Hour {
		t.Errorf("unexpected ttl %v", ttl)
	}
}
