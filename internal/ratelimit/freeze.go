package ratelimit

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// FreezeFlag is an advisory hold an operator (or an automated risk check)
// places on a funding account. The pay-gate treats a set flag as blocking;
// the commit-gate does not consult it. Backed by Redis so a flag set by one
// process instance is visible to all.
type FreezeFlag struct {
	client *redis.Client
}

// NewFreezeFlag wraps client. A nil client makes every method report
// not-frozen, the fail-open behavior for an unconfigured deployment.
func NewFreezeFlag(client *redis.Client) *FreezeFlag {
	if client == nil {
		return nil
	}
	return &FreezeFlag{client: client}
}

// Freeze blocks the pay-gate for legalEntityID until ttl elapses or Unfreeze
// is called, recording reason for the gate's Reason list.
func (f *FreezeFlag) Freeze(ctx context.Context, legalEntityID, reason string, ttl time.Duration) error {
	if f == nil || f.client == nil {
		return errors.New("ratelimit: freeze flag not configured")
	}
	if ttl <= 0 {
		return errors.New("ratelimit: freeze ttl must be positive")
	}
	return f.client.Set(ctx, freezeKey(legalEntityID), reason, ttl).Err()
}

// Unfreeze lifts the hold early.
func (f *FreezeFlag) Unfreeze(ctx context.Context, legalEntityID string) error {
	if f == nil || f.client == nil {
		return nil
	}
	return f.client.Del(ctx, freezeKey(legalEntityID)).Err()
}

// IsFrozen reports whether legalEntityID currently has a hold, and its
// reason if so. A nil FreezeFlag (Redis unconfigured) always reports false.
func (f *FreezeFlag) IsFrozen(ctx context.Context, legalEntityID string) (bool, string, error) {
	if f == nil || f.client == nil {
		return false, "", nil
	}
	reason, err := f.client.Get(ctx, freezeKey(legalEntityID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, "", nil
	}
	if err != nil {
		return false, "", err
	}
	return true, reason, nil
}

func freezeKey(legalEntityID string) string {
	return "pspcore:freeze:legal_entity:" + legalEntityID
}
