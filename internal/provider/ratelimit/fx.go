package ratelimit

import (
	"github.com/smallbiznis/pspcore/internal/config"
	sharedratelimit "github.com/smallbiznis/pspcore/internal/ratelimit"
)

func NewRailLimiterFromConfig(cfg config.Config, bucket *sharedratelimit.TokenBucket) *RailLimiter {
	return NewRailLimiter(bucket, cfg.ProviderRateLimitPerSecond, cfg.ProviderRateLimitBurst)
}
