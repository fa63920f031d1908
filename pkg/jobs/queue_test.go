package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	done := make(chan string, 2)
	q := NewQueue("test", func(_ context.Context, job Job) error {
		done <- job.ID
		return nil
	}, QueueConfig{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "a"}))
	require.NoError(t, q.Enqueue(Job{ID: "b"}))

	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case id := <-done:
			got[id] = true
		case <-time.After(2 * time.Second):
			t.Fatal("job not processed")
		}
	}
	assert.Equal(t, map[string]bool{"a": true, "b": true}, got)
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	var calls int32
	done := make(chan struct{})
	q := NewQueue("retry", func(_ context.Context, job Job) error {
		if atomic.AddInt32(&calls, 1) < 2 {
			return errors.New("boom")
		}
		close(done)
		return nil
	}, QueueConfig{MaxRetries: 2, RetryDelay: 10 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "a"}))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job not retried")
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestQueueWithoutRetries(t *testing.T) {
	var calls int32
	q := NewQueue("once", func(_ context.Context, job Job) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("boom")
	}, QueueConfig{MaxRetries: -1, RetryDelay: time.Millisecond})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job{ID: "a"}))
	time.Sleep(50 * time.Millisecond)
	q.Stop()
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestQueueRejectsWhenNotStarted(t *testing.T) {
	q := NewQueue("idle", func(context.Context, Job) error { return nil }, QueueConfig{})
	assert.Error(t, q.Enqueue(Job{ID: "a"}))
	assert.Error(t, q.TryEnqueue(Job{ID: "a"}))
}

func TestQueueTryEnqueueReportsFull(t *testing.T) {
	block := make(chan struct{})
	q := NewQueue("full", func(ctx context.Context, job Job) error {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())
	defer func() {
		close(block)
		q.Stop()
	}()

	require.NoError(t, q.TryEnqueue(Job{ID: "running"}))
	require.Eventually(t, func() bool { return q.Pending() == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, q.TryEnqueue(Job{ID: "buffered"}))
	assert.ErrorIs(t, q.TryEnqueue(Job{ID: "overflow"}), ErrQueueFull)
}
