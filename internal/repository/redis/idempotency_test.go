package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyLockThenResult(t *testing.T) {
	rdb, _ := newTestClient(t)
	s := NewIdempotencyStore(rdb, time.Hour)
	ctx := context.Background()
	key := KeyIdemTicketEvent(9, "evt-1")

	ok, err := s.AcquireLock(ctx, key, 30*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.AcquireLock(ctx, key, 30*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	// A held lock is not a stored result.
	_, found, err := s.GetResult(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.SaveResult(ctx, key, `{"voyage_id":9}`))

	res, found, err := s.GetResult(ctx, key)
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `{"voyage_id":9}`, res)

	ok, err = s.AcquireLock(ctx, key, 30*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIdempotencyReleaseAndExpiry(t *testing.T) {
	rdb, mr := newTestClient(t)
	s := NewIdempotencyStore(rdb, time.Hour)
	ctx := context.Background()
	key := KeyIdemTicketEvent(9, "evt-2")

	ok, err := s.AcquireLock(ctx, key, 30*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.Release(ctx, key))

	ok, err = s.AcquireLock(ctx, key, 30*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(time.Minute)

	ok, err = s.AcquireLock(ctx, key, 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIdempotencyKeysAreScopedByVoyage(t *testing.T) {
	assert.NotEqual(t, KeyIdemTicketEvent(1, "evt"), KeyIdemTicketEvent(2, "evt"))
}
