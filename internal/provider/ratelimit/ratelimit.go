// Package ratelimit throttles outbound calls to a rail per tenant, so one
// tenant's retry storm against a provider can't exhaust the rail's shared
// quota for every other tenant.
package ratelimit

import (
	"context"

	"github.com/smallbiznis/pspcore/internal/ratelimit"
)

// RailLimiter wraps the generic token bucket with a key scheme scoped to
// (tenant, rail).
type RailLimiter struct {
	bucket *ratelimit.TokenBucket
	rate   float64
	burst  int
}

// NewRailLimiter builds a RailLimiter. rate is sustained requests/second,
// burst the bucket capacity. Nil-safe: a nil bucket (no Redis configured)
// makes Allow always permit.
func NewRailLimiter(bucket *ratelimit.TokenBucket, rate float64, burst int) *RailLimiter {
	return &RailLimiter{bucket: bucket, rate: rate, burst: burst}
}

// Allow reports whether a call to rail on behalf of tenantID may proceed.
func (l *RailLimiter) Allow(ctx context.Context, tenantID, rail string) (*ratelimit.RateLimitResult, error) {
	if l == nil || l.bucket == nil {
		return &ratelimit.RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, "provider:"+rail+":"+tenantID, l.rate, l.burst)
}
