package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/grocery-backend/pkg/redis"
)

func newManager(t *testing.T, ttl time.Duration) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	manager, err := NewManager(redis.Wrap(raw), ttl)
	require.NoError(t, err)
	return manager, mr
}

func TestCheckAndMarkProcessed_FirstThenDuplicate(t *testing.T) {
	manager, mr := newManager(t, 24*time.Hour)
	ctx := context.Background()
	eventID := uuid.New()

	already, err := manager.CheckAndMarkProcessed(ctx, "fulfillment-worker", eventID)
	require.NoError(t, err)
	assert.False(t, already)

	key := "gr:idempotency:evt:processed:fulfillment-worker:" + eventID.String()
	assert.True(t, mr.Exists(key))
	assert.Equal(t, 24*time.Hour, mr.TTL(key))

	already, err = manager.CheckAndMarkProcessed(ctx, "fulfillment-worker", eventID)
	require.NoError(t, err)
	assert.True(t, already)
}

func TestCheckAndMark_ScopedPerConsumer(t *testing.T) {
	manager, _ := newManager(t, time.Hour)
	ctx := context.Background()

	already, err := manager.CheckAndMark(ctx, "stripe-webhook", "evt_123")
	require.NoError(t, err)
	assert.False(t, already)

	already, err = manager.CheckAndMark(ctx, "other-consumer", "evt_123")
	require.NoError(t, err)
	assert.False(t, already)
}

func TestReleaseAllowsReprocessing(t *testing.T) {
	manager, _ := newManager(t, time.Hour)
	ctx := context.Background()

	_, err := manager.CheckAndMark(ctx, "stripe-webhook", "evt_9")
	require.NoError(t, err)
	require.NoError(t, manager.Release(ctx, "stripe-webhook", "evt_9"))

	already, err := manager.CheckAndMark(ctx, "stripe-webhook", "evt_9")
	require.NoError(t, err)
	assert.False(t, already)
}

func TestValidation(t *testing.T) {
	_, err := NewManager(nil, time.Hour)
	assert.Error(t, err)

	manager, _ := newManager(t, time.Hour)
	_, err = manager.CheckAndMarkProcessed(context.Background(), "c", uuid.Nil)
	assert.Error(t, err)
	_, err = manager.CheckAndMark(context.Background(), "", "id")
	assert.Error(t, err)
	_, err = manager.CheckAndMark(context.Background(), "c", " ")
	assert.Error(t, err)
}

func TestStoreErrorsSurface(t *testing.T) {
	manager, mr := newManager(t, time.Hour)
	mr.Close()
	_, err := manager.CheckAndMark(context.Background(), "c", "id")
	assert.Error(t, err)
}
