package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFreezeFlag_FreezeSetsKeyWithTTL(t *testing.T) {
	client, mock := redismock.NewClientMock()
	flag := NewFreezeFlag(client)

	mock.ExpectSet(freezeKey("legal-entity-1"), "manual risk hold", time.Hour).SetVal("OK")

	err := flag.Freeze(context.Background(), "legal-entity-1", "manual risk hold", time.Hour)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFreezeFlag_IsFrozenReportsReason(t *testing.T) {
	client, mock := redismock.NewClientMock()
	flag := NewFreezeFlag(client)

	mock.ExpectGet(freezeKey("legal-entity-1")).SetVal("manual risk hold")

	frozen, reason, err := flag.IsFrozen(context.Background(), "legal-entity-1")
	require.NoError(t, err)
	assert.True(t, frozen)
	assert.Equal(t, "manual risk hold", reason)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFreezeFlag_IsFrozenFalseWhenKeyMissing(t *testing.T) {
	client, mock := redismock.NewClientMock()
	flag := NewFreezeFlag(client)

	mock.ExpectGet(freezeKey("legal-entity-1")).RedisNil()

	frozen, reason, err := flag.IsFrozen(context.Background(), "legal-entity-1")
	require.NoError(t, err)
	assert.False(t, frozen)
	assert.Empty(t, reason)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFreezeFlag_UnfreezeDeletesKey(t *testing.T) {
	client, mock := redismock.NewClientMock()
	flag := NewFreezeFlag(client)

	mock.ExpectDel(freezeKey("legal-entity-1")).SetVal(1)

	err := flag.Unfreeze(context.Background(), "legal-entity-1")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFreezeFlag_NilClientFailsOpen(t *testing.T) {
	var flag *FreezeFlag
	frozen, reason, err := flag.IsFrozen(context.Background(), "legal-entity-1")
	require.NoError(t, err)
	assert.False(t, frozen)
	assert.Empty(t, reason)
}
