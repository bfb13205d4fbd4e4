package pricesource_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"cyberlombard/internal/infrastructure/pricesource"
)

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR is not set")
	}

	rq := require.New(t)
	ctx := context.Background()

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	rq.NoError(client.FlushDB(ctx).Err())

	store := pricesource.NewRedisStore(client, time.Minute)

	_, ok, err := store.Load(ctx)
	rq.NoError(err)
	rq.False(ok)

	fetchedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rq.NoError(store.Save(ctx, pricesource.NewSnapshot(prices("Zeus x27", "180.25"), fetchedAt)))

	snap, ok, err := store.Load(ctx)
	rq.NoError(err)
	rq.True(ok)
	rq.True(fetchedAt.Equal(snap.FetchedAt))
	rq.Equal("180.25", snap.Prices["Zeus x27"].String())
}
