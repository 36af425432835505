package jobs

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

func TestQueueRunsJobs(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}
	q := NewQueue("test", func(_ context.Context, job Job) error {
		mu.Lock()
		seen[job.Key] = true
		mu.Unlock()
		return nil
	}, QueueConfig{Workers: 2})

	_, err := q.Enqueue(Job{Key: "early"})
	require.Error(t, err)

	q.Start(context.Background())
	defer q.Stop()

	for _, key := range []string{"emp-1|2025-06-02", "emp-2|2025-06-02"} {
		accepted, err := q.Enqueue(Job{ID: key, Type: "reclassify", Key: key})
		require.NoError(t, err)
		assert.True(t, accepted)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, q.Wait(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, seen["emp-1|2025-06-02"])
	assert.True(t, seen["emp-2|2025-06-02"])
	assert.Equal(t, 0, q.Pending())
}

func TestQueueCollapsesWaitingKeys(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var runs int32
	q := NewQueue("test", func(_ context.Context, job Job) error {
		if job.Key == "blocker" {
			close(started)
			<-release
			return nil
		}
		atomic.AddInt32(&runs, 1)
		return nil
	}, QueueConfig{Workers: 1})
	q.Start(context.Background())
	defer q.Stop()

	_, err := q.Enqueue(Job{Key: "blocker"})
	require.NoError(t, err)
	<-started

	first, err := q.Enqueue(Job{Key: "emp-1|2025-06-02"})
	require.NoError(t, err)
	second, err := q.Enqueue(Job{Key: "emp-1|2025-06-02"})
	require.NoError(t, err)
	assert.True(t, first)
	assert.False(t, second)
	assert.Equal(t, 2, q.Pending())

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, q.Wait(ctx))
	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))
}

func TestQueueRerunsKeyRequestedWhileRunning(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var runs int32
	q := NewQueue("test", func(_ context.Context, job Job) error {
		if atomic.AddInt32(&runs, 1) == 1 {
			close(started)
			<-release
		}
		return nil
	}, QueueConfig{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	_, err := q.Enqueue(Job{Key: "emp-1|2025-06-02"})
	require.NoError(t, err)
	<-started

	// leave flags changed after the running job read them
	again, err := q.Enqueue(Job{Key: "emp-1|2025-06-02"})
	require.NoError(t, err)
	assert.True(t, again)
	collapsed, err := q.Enqueue(Job{Key: "emp-1|2025-06-02"})
	require.NoError(t, err)
	assert.False(t, collapsed)
	assert.Equal(t, 1, q.Pending())

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, q.Wait(ctx))
	assert.Equal(t, int32(2), atomic.LoadInt32(&runs))
	assert.Equal(t, 0, q.Pending())
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	var attempts int32
	q := NewQueue("test", func(_ context.Context, job Job) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.New("transient")
		}
		return nil
	}, QueueConfig{Workers: 1, MaxRetries: 3, RetryDelay: 10 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	_, err := q.Enqueue(Job{Key: "emp-9|2025-06-02"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, q.Wait(ctx))
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}
