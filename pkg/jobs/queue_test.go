package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueueRetriesUntilSuccess(t *testing.T) {
	var calls int32
	done := make(chan struct{})
	q := NewQueue("test", func(_ context.Context, job Job) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}, QueueConfig{MaxRetries: 3, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "1", Type: "mail"}))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job never succeeded")
	}
	require.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestQueueDiscardsAfterMaxRetries(t *testing.T) {
	discarded := make(chan Job, 1)
	q := NewQueue("test", func(context.Context, Job) error {
		return errors.New("smtp down")
	}, QueueConfig{
		MaxRetries: 1,
		RetryDelay: time.Millisecond,
		OnDiscard:  func(job Job, _ error) { discarded <- job },
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "1", Type: "mail"}))
	select {
	case job := <-discarded:
		require.Equal(t, 2, job.Attempt)
	case <-time.After(2 * time.Second):
		t.Fatal("job was not discarded")
	}
}

func TestQueueRejectsWhenStopped(t *testing.T) {
	q := NewQueue("test", func(context.Context, Job) error { return nil }, QueueConfig{})
	err := q.Enqueue(Job{ID: "1"})
	require.ErrorIs(t, err, ErrQueueStopped)

	q.Start(context.Background())
	q.Stop()
	require.ErrorIs(t, q.Enqueue(Job{ID: "2"}), ErrQueueStopped)
}

func TestQueueBackoffIsCapped(t *testing.T) {
	q := NewQueue("test", nil, QueueConfig{RetryDelay: time.Second, MaxDelay: 5 * time.Second})
	require.Equal(t, time.Second, q.backoff(1))
	require.Equal(t, 2*time.Second, q.backoff(2))
	require.Equal(t, 4*time.Second, q.backoff(3))
	require.Equal(t, 5*time.Second, q.backoff(4))
}

func TestQueueStatsCountOutcomes(t *testing.T) {
	discarded := make(chan struct{})
	q := NewQueue("test", func(_ context.Context, job Job) error {
		if job.Type == "bad" {
			return errors.New("rejected")
		}
		return nil
	}, QueueConfig{
		MaxRetries: 1,
		RetryDelay: time.Millisecond,
		OnDiscard:  func(Job, error) { close(discarded) },
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "ok", Type: "good"}))
	require.NoError(t, q.Enqueue(Job{ID: "ko", Type: "bad"}))
	select {
	case <-discarded:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not discarded")
	}

	require.Eventually(t, func() bool { return q.Stats().Succeeded == 1 }, time.Second, time.Millisecond)
	stats := q.Stats()
	require.EqualValues(t, 1, stats.Retried)
	require.EqualValues(t, 1, stats.Discarded)
}

func TestQueueStartTwiceKeepsOneRun(t *testing.T) {
	q := NewQueue("test", func(context.Context, Job) error { return nil }, QueueConfig{Workers: 2})
	q.Start(context.Background())
	q.Start(context.Background())
	q.Stop()
	q.Stop()
	require.ErrorIs(t, q.Enqueue(Job{ID: "late"}), ErrQueueStopped)
}
