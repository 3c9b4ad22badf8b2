package redis

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type summary struct {
	VoyageID int64  `json:"voyage_id"`
	From     string `json:"from"`
}

func TestGetOrSetJSONLoadsOnce(t *testing.T) {
	rdb, _ := newTestClient(t)
	c := New(rdb)
	ctx := context.Background()

	var calls atomic.Int32
	load := func(context.Context) (summary, error) {
		calls.Add(1)
		time.Sleep(10 * time.Millisecond)
		return summary{VoyageID: 7, From: "Split"}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := GetOrSetJSON(ctx, c, KeyVoyageSummary(7), time.Minute, load)
			assert.NoError(t, err)
			assert.Equal(t, "Split", got.From)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())

	got, ok, err := GetJSON[summary](ctx, c, KeyVoyageSummary(7))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(7), got.VoyageID)
}

func TestGetOrSetJSONDoesNotCacheLoaderErrors(t *testing.T) {
	rdb, _ := newTestClient(t)
	c := New(rdb)
	ctx := context.Background()

	boom := errors.New("db down")
	_, err := GetOrSetJSON(ctx, c, KeyStation(1), time.Minute, func(context.Context) (summary, error) {
		return summary{}, boom
	})
	assert.ErrorIs(t, err, boom)

	_, ok, err := c.GetString(ctx, KeyStation(1))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCachedValuesExpire(t *testing.T) {
	rdb, mr := newTestClient(t)
	c := New(rdb)
	ctx := context.Background()

	require.NoError(t, SetJSON(ctx, c, KeyStation(2), summary{From: "Supetar"}, time.Minute))

	mr.FastForward(2 * time.Minute)

	_, ok, err := GetJSON[summary](ctx, c, KeyStation(2))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInvalidateVoyageDropsEveryView(t *testing.T) {
	rdb, _ := newTestClient(t)
	c := New(rdb)
	ctx := context.Background()

	keys := []string{KeyVoyageSummary(3), KeyVoyageAvailability(3), KeyVoyageSeatMap(3), KeyVoyageSummary(4)}
	for _, k := range keys {
		require.NoError(t, c.SetString(ctx, k, "{}", time.Minute))
	}

	require.NoError(t, c.InvalidateVoyage(ctx, 3))

	for _, k := range keys[:3] {
		_, ok, err := c.GetString(ctx, k)
		require.NoError(t, err)
		assert.False(t, ok, k)
	}
	_, ok, err := c.GetString(ctx, KeyVoyageSummary(4))
	require.NoError(t, err)
	assert.True(t, ok)
}
