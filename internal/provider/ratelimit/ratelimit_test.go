package ratelimit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRailLimiter_NilBucketAlwaysAllows(t *testing.T) {
	limiter := NewRailLimiter(nil, 5, 10)
	result, err := limiter.Allow(context.Background(), "tenant-1", "ach")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestRailLimiter_NilReceiverAlwaysAllows(t *testing.T) {
	var limiter *RailLimiter
	result, err := limiter.Allow(context.Background(), "tenant-1", "ach")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}
