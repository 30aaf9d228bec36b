package maintenance

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/grocery-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/grocery-backend/pkg/redis"
)

type countingJob struct {
	name    string
	deleted int64
	err     error
	runs    atomic.Int32
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(context.Context) (int64, error) {
	j.runs.Add(1)
	return j.deleted, j.err
}

func newLocker(t *testing.T) (*pkgredis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	return pkgredis.Wrap(raw), mr
}

func TestRunCycleRunsEveryJobDespiteFailures(t *testing.T) {
	locker, mr := newLocker(t)
	ok := &countingJob{name: "ok", deleted: 3}
	failing := &countingJob{name: "failing", err: errors.New("boom")}
	svc, err := NewService(ServiceParams{Logger: logger.Nop(), Locker: locker, Jobs: []Job{failing, nil, ok}})
	require.NoError(t, err)

	require.NoError(t, svc.runCycle(context.Background()))
	assert.EqualValues(t, 1, failing.runs.Load())
	assert.EqualValues(t, 1, ok.runs.Load())
	assert.False(t, mr.Exists(locker.LockKey(lockScope, lockID)), "lock must be released after the cycle")
}

func TestRunCycleSkipsWhenAnotherWorkerHoldsLock(t *testing.T) {
	locker, _ := newLocker(t)
	ctx := context.Background()
	release, err := locker.Acquire(ctx, lockScope, lockID, time.Minute)
	require.NoError(t, err)
	defer func() { _ = release(ctx) }()

	job := &countingJob{name: "ok"}
	svc, err := NewService(ServiceParams{Logger: logger.Nop(), Locker: locker, Jobs: []Job{job}})
	require.NoError(t, err)

	require.NoError(t, svc.runCycle(ctx))
	assert.Zero(t, job.runs.Load())
}

func TestRunStopsOnCancel(t *testing.T) {
	locker, _ := newLocker(t)
	job := &countingJob{name: "ok"}
	svc, err := NewService(ServiceParams{Logger: logger.Nop(), Locker: locker, Jobs: []Job{job}, Interval: time.Hour})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	require.Eventually(t, func() bool { return job.runs.Load() > 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("run did not stop after cancel")
	}
}

func TestNewServiceRequiresLocker(t *testing.T) {
	_, err := NewService(ServiceParams{Logger: logger.Nop()})
	assert.Error(t, err)
}
