package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *SnapshotCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSnapshotCache(client, time.Hour)
}

func TestSnapshotCompareMissIsNotDivergence(t *testing.T) {
	cache := newTestCache(t)
	totals := Aggregate([]LineAmounts{{Price: FromInt(100), Quantity: 1}}, Zero())

	diverged, prev, err := cache.Compare(context.Background(), 42, totals)
	require.NoError(t, err)
	require.False(t, diverged)
	require.Nil(t, prev)
}

func TestSnapshotStoreThenCompare(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()
	totals := Aggregate([]LineAmounts{{Price: FromInt(1000), Quantity: 2, Advance: FromInt(500)}}, FromInt(200))

	require.NoError(t, cache.Store(ctx, 7, totals))

	diverged, prev, err := cache.Compare(ctx, 7, totals)
	require.NoError(t, err)
	require.False(t, diverged)
	require.NotNil(t, prev)
	require.Equal(t, "1700", prev.Remaining)
}

func TestSnapshotDetectsDivergence(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()
	old := Aggregate([]LineAmounts{{Price: FromInt(1000), Quantity: 2}}, Zero())
	require.NoError(t, cache.Store(ctx, 9, old))

	// Same order, item price edited elsewhere.
	fresh := Aggregate([]LineAmounts{{Price: FromInt(1200), Quantity: 2}}, Zero())
	diverged, prev, err := cache.Compare(ctx, 9, fresh)
	require.NoError(t, err)
	require.True(t, diverged)
	require.Equal(t, "2000", prev.Total)
}

func TestSnapshotNilCacheIsNoop(t *testing.T) {
	var cache *SnapshotCache
	diverged, prev, err := cache.Compare(context.Background(), 1, Totals{})
	require.NoError(t, err)
	require.False(t, diverged)
	require.Nil(t, prev)
	require.NoError(t, cache.Store(context.Background(), 1, Totals{}))
}
