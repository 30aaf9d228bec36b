package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	return Wrap(raw), mr
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	assert.Equal(t, "gr:idempotency:scope:id", client.IdempotencyKey("scope", "id"))
	assert.Equal(t, "gr:lock:checkout-session:cs_123", client.LockKey("checkout-session", "cs_123"))
	assert.Equal(t, "gr:lock:only", client.LockKey(" only ", ""))
}

func TestSetNXOnlyOnce(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	first, err := client.SetNX(ctx, "k", "1", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := client.SetNX(ctx, "k", "1", time.Minute)
	require.NoError(t, err)
	assert.False(t, second)
}

func TestAcquireAndRelease(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	release, err := client.Acquire(ctx, "checkout-session", "cs_1", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, mr.Exists("gr:lock:checkout-session:cs_1"))

	_, err = client.Acquire(ctx, "checkout-session", "cs_1", 30*time.Second)
	assert.True(t, errors.Is(err, ErrLockHeld))

	require.NoError(t, release(ctx))
	assert.False(t, mr.Exists("gr:lock:checkout-session:cs_1"))

	again, err := client.Acquire(ctx, "checkout-session", "cs_1", 30*time.Second)
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

func TestReleaseDoesNotStealForeignLock(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	release, err := client.Acquire(ctx, "scope", "id", time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	other, err := client.Acquire(ctx, "scope", "id", time.Minute)
	require.NoError(t, err)

	require.NoError(t, release(ctx))
	assert.True(t, mr.Exists("gr:lock:scope:id"), "stale release must not drop the new owner's lock")
	require.NoError(t, other(ctx))
}

func TestAcquireRejectsZeroTTL(t *testing.T) {
	client, _ := setupTestRedis(t)
	_, err := client.Acquire(context.Background(), "scope", "id", 0)
	assert.Error(t, err)
}

func TestOptionsFromConfigRequiresAddress(t *testing.T) {
	_, err := optionsFromConfig(configFor("", ""))
	assert.Error(t, err)

	opts, err := optionsFromConfig(configFor("redis://localhost:6379/3", ""))
	require.NoError(t, err)
	assert.Equal(t, 3, opts.DB)
	assert.Equal(t, 10, opts.PoolSize)
}

func TestUninitializedClientErrors(t *testing.T) {
	var client *Client
	assert.Error(t, client.Ping(context.Background()))
	assert.NoError(t, client.Close())
	_, err := (&Client{}).Get(context.Background(), "k")
	assert.Error(t, err)
}

func TestOptionsFromAddressKeepsConfigTimeouts(t *testing.T) {
	opts, err := optionsFromConfig(configFor("", "cache:6379"))
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", opts.Addr)
	assert.Equal(t, 2, opts.MinIdleConns)
	assert.Equal(t, 5*time.Second, opts.DialTimeout)
}
