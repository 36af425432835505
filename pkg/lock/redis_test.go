package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/bio-attendance-api/pkg/errors"
)

type fakeRedis struct {
	values map[string]string
	ttls   map[string]time.Duration
	setErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	if f.setErr != nil {
		return redis.NewBoolResult(false, f.setErr)
	}
	if _, ok := f.values[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.values[key] = value.(string)
	f.ttls[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Eval(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	if f.values[keys[0]] == args[0].(string) {
		delete(f.values, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func TestRedisLockerExcludesSecondHolder(t *testing.T) {
	client := newFakeRedis()
	locker := NewRedisLocker(client, "attendance:lock:")
	ctx := context.Background()

	lease, err := locker.Acquire(ctx, "expiration", 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "attendance:lock:expiration", lease.Key())
	assert.Equal(t, 10*time.Minute, client.ttls["attendance:lock:expiration"])

	_, err = locker.Acquire(ctx, "expiration", 10*time.Minute)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrLockHeld))

	require.NoError(t, lease.Release(ctx))

	again, err := locker.Acquire(ctx, "expiration", 10*time.Minute)
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestRedisLeaseDoesNotReleaseForeignToken(t *testing.T) {
	client := newFakeRedis()
	locker := NewRedisLocker(client, "")
	ctx := context.Background()

	lease, err := locker.Acquire(ctx, "expiration", time.Minute)
	require.NoError(t, err)

	// the lease expired and another replica took over
	client.values["lock:expiration"] = "someone-else"

	require.Error(t, lease.Release(ctx))
	assert.Equal(t, "someone-else", client.values["lock:expiration"])
}

func TestRedisLockerPropagatesClientErrors(t *testing.T) {
	client := newFakeRedis()
	client.setErr = errors.New("connection refused")
	_, err := NewRedisLocker(client, "").Acquire(context.Background(), "expiration", time.Minute)
	require.Error(t, err)
	assert.False(t, errors.Is(err, appErrors.ErrLockHeld))

	_, err = NewRedisLocker(newFakeRedis(), "").Acquire(context.Background(), "expiration", 0)
	require.Error(t, err)
}

func TestLocalLocker(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()

	lease, err := locker.Acquire(ctx, "expiration", time.Minute)
	require.NoError(t, err)
	_, err = locker.Acquire(ctx, "expiration", time.Minute)
	assert.True(t, errors.Is(err, appErrors.ErrLockHeld))

	require.NoError(t, lease.Release(ctx))
	_, err = locker.Acquire(ctx, "expiration", time.Minute)
	require.NoError(t, err)
}
