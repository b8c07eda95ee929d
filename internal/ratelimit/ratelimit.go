// Package ratelimit enforces a per-caller cap on question generation within a
// calendar day of a fixed timezone.
package ratelimit

import (
	"context"
	"encoding/hex"
	"log/slog"
	"time"

	"golang.org/x/crypto/blake2b"
)

// DefaultTimezone is the zone whose midnight resets the daily window.
const DefaultTimezone = "Asia/Kolkata"

// Result describes the outcome of one Consume call.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns the time left until the window resets, rounded up to a whole second.
func (r Result) RetryAfter(now time.Time) time.Duration {
	d := r.ResetAt.Sub(now)
	if d <= 0 {
		return 0
	}
	if d%time.Second == 0 {
		return d
	}
	return d.Truncate(time.Second) + time.Second
}

// Limiter counts calls per caller key.
type Limiter interface {
	Consume(ctx context.Context, key string) (Result, error)
}

// LoadLocation resolves an IANA zone name. Hosts without tzdata fall back to
// a fixed UTC+05:30 zone for the default name and UTC otherwise.
func LoadLocation(name string) *time.Location {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err == nil {
		return loc
	}
	if name == DefaultTimezone {
		return time.FixedZone("IST", 5*60*60+30*60)
	}
	slog.Warn("unknown daily cap timezone, using UTC", "timezone", name, "error", err)
	return time.UTC
}

// NextMidnight returns the first midnight in loc strictly after now.
func NextMidnight(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	y, m, d := local.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, loc)
}

// dayStamp names the calendar day of now in loc.
func dayStamp(now time.Time, loc *time.Location) string {
	return now.In(loc).Format("20060102")
}

// HashKey turns a caller key (user id or client address) into a fixed-size
// bucket name so raw identifiers are never stored.
func HashKey(key string) string {
	sum := blake2b.Sum256([]byte(key))
	return hex.EncodeToString(sum[:16])
}
