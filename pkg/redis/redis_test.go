package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/factorlab/pkg/config"
)

func disabledClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(context.Background(), &config.Config{Redis: config.RedisConfig{Enabled: false, Prefix: "test"}})
	require.NoError(t, err)
	return client
}

func TestNewClient_Disabled(t *testing.T) {
	client := disabledClient(t)
	assert.False(t, client.Enabled())
	assert.Equal(t, "test", client.Prefix())
	assert.NoError(t, client.Close())
}

func TestCache_DisabledIsAlwaysMiss(t *testing.T) {
	cache := NewCache(disabledClient(t), "calendar")
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", []string{"a"}, time.Minute))

	var got []string
	found, err := cache.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, cache.Delete(ctx, "k"))
}

func TestGetOrLoad_DisabledCallsLoader(t *testing.T) {
	cache := NewCache(disabledClient(t), "members")
	calls := 0
	load := func() ([]string, error) {
		calls++
		return []string{"600000", "600036"}, nil
	}

	for i := 0; i < 2; i++ {
		got, err := GetOrLoad(context.Background(), cache, "k", time.Minute, load)
		require.NoError(t, err)
		assert.Equal(t, []string{"600000", "600036"}, got)
	}
	assert.Equal(t, 2, calls)

	_, err := GetOrLoad(context.Background(), cache, "k", time.Minute, func() (int, error) {
		return 0, errors.New("db down")
	})
	assert.EqualError(t, err, "db down")
}

func TestCacheKeys(t *testing.T) {
	assert.Equal(t, "members:hs300:2024-01-31", MembershipKey("hs300", time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "test:members:x", NewCache(&Client{prefix: "test"}, "members").fullKey("x"))
}
