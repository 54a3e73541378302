package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	ledgerdomain "github.com/smallbiznis/pspcore/internal/ledger/domain"
)

// idempotencyCacheTTL bounds how long a repeat Post can be answered without
// a database round trip. Short-lived: the database row is the source of
// truth, this only shields it from hot repeat calls in the same window.
const idempotencyCacheTTL = 5 * time.Minute

// idempotencyCache is a best-effort fast path in front of
// repository.FindPostingByIdempotencyKey. A nil client (no Redis configured)
// degrades every call to a miss, so Post always falls through to the
// database transaction.
type idempotencyCache struct {
	client *redis.Client
}

func newIdempotencyCache(client *redis.Client) *idempotencyCache {
	return &idempotencyCache{client: client}
}

type cachedPosting struct {
	CorrelationID uuid.UUID                   `json:"correlation_id"`
	Entries       []ledgerdomain.LedgerEntry `json:"entries"`
}

func idempotencyCacheKey(tenantID uuid.UUID, idempotencyKey string) string {
	return "pspcore:ledger:idem:" + tenantID.String() + ":" + idempotencyKey
}

func (c *idempotencyCache) get(ctx context.Context, tenantID uuid.UUID, idempotencyKey string) ([]ledgerdomain.LedgerEntry, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, idempotencyCacheKey(tenantID, idempotencyKey)).Bytes()
	if err != nil {
		return nil, false
	}
	var cached cachedPosting
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, false
	}
	return cached.Entries, true
}

func (c *idempotencyCache) set(ctx context.Context, tenantID uuid.UUID, idempotencyKey string, entries []ledgerdomain.LedgerEntry) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(cachedPosting{Entries: entries})
	if err != nil {
		return
	}
	c.client.Set(ctx, idempotencyCacheKey(tenantID, idempotencyKey), raw, idempotencyCacheTTL)
}
