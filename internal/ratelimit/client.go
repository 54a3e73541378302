// Package ratelimit wraps Redis primitives shared by the funding gate's
// freeze flag and the provider rail rate limiters: a token bucket, a
// lease-style lock, and a boolean flag with a reason.
package ratelimit

import (
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/pspcore/internal/config"
)

// NewClient opens the shared Redis connection. Returns nil if RedisAddr is
// unset, so every primitive built on top degrades to permissive defaults.
func NewClient(cfg config.Config) *redis.Client {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})
}
