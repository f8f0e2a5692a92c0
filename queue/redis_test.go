package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jesposito/walkabout/config"
)

func newTestQueue(t *testing.T) *RedisQueue {
	t.Helper()
	mr := miniredis.RunT(t)
	q, err := NewRedisQueue(config.RedisConfig{
		Addr:   mr.Addr(),
		Stream: "walkabout:trip_searches",
		Group:  "walkabout_workers",
	})
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })
	return q
}

func TestEnqueueDequeueAck(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	id, err := q.EnqueueTripSearch(ctx, 42)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	job, err := q.Dequeue(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, id, job.ID)
	assert.Equal(t, "trip_search", job.Type)
	assert.Equal(t, 1, job.Attempts)

	p, err := job.TripSearch()
	require.NoError(t, err)
	assert.Equal(t, int64(42), p.TripPlanID)

	require.NoError(t, q.Ack(ctx, job))

	n, err := q.Pending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDequeueEmpty(t *testing.T) {
	q := newTestQueue(t)

	_, err := q.Dequeue(context.Background(), 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestNackRequeuesUntilExhausted(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	_, err := q.EnqueueTripSearch(ctx, 7)
	require.NoError(t, err)

	var job *Job
	for attempt := 1; attempt <= defaultMaxAttempts; attempt++ {
		job, err = q.Dequeue(ctx, 10*time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, attempt, job.Attempts)

		retried, err := q.Nack(ctx, job)
		require.NoError(t, err)
		if attempt < defaultMaxAttempts {
			assert.True(t, retried)
		} else {
			assert.False(t, retried, "attempts exhausted")
		}
	}

	_, err = q.Dequeue(ctx, 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestQueuePreservesOrder(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	first, err := q.EnqueueTripSearch(ctx, 1)
	require.NoError(t, err)
	second, err := q.EnqueueTripSearch(ctx, 2)
	require.NoError(t, err)

	job, err := q.Dequeue(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, first, job.ID)

	job, err = q.Dequeue(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, second, job.ID)
}
