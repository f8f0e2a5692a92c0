// Package queue is the Redis Streams job queue feeding the trip-plan search
// workers. One stream, one consumer group; each worker is a named consumer.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jesposito/walkabout/config"
)

// Job statuses.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// ErrEmpty is returned by Dequeue when no job is waiting.
var ErrEmpty = errors.New("queue is empty")

const defaultMaxAttempts = 3

// TripSearchPayload is the job body for a trip-plan search.
type TripSearchPayload struct {
	TripPlanID int64 `json:"trip_plan_id"`
}

// Job is one queued unit of work.
type Job struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	StreamID    string          `json:"-"`
}

// TripSearch decodes the payload of a trip-search job.
func (j *Job) TripSearch() (*TripSearchPayload, error) {
	var p TripSearchPayload
	if err := json.Unmarshal(j.Payload, &p); err != nil {
		return nil, fmt.Errorf("failed to decode trip search payload: %w", err)
	}
	return &p, nil
}

// RedisQueue is a Redis Streams queue with a single consumer group.
type RedisQueue struct {
	client   *redis.Client
	stream   string
	group    string
	consumer string
}

// NewRedisQueue connects and ensures the stream's consumer group exists.
func NewRedisQueue(cfg config.RedisConfig) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	q := &RedisQueue{
		client:   client,
		stream:   cfg.Stream,
		group:    cfg.Group,
		consumer: "worker-" + uuid.NewString()[:8],
	}
	if err := q.ensureGroup(ctx); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *RedisQueue) ensureGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// EnqueueTripSearch queues a search for a trip plan. Returns the job id.
func (q *RedisQueue) EnqueueTripSearch(ctx context.Context, tripPlanID int64) (string, error) {
	payload, err := json.Marshal(TripSearchPayload{TripPlanID: tripPlanID})
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}
	job := Job{
		ID:          uuid.NewString(),
		Type:        "trip_search",
		Payload:     payload,
		CreatedAt:   time.Now(),
		MaxAttempts: defaultMaxAttempts,
	}
	return q.add(ctx, &job)
}

func (q *RedisQueue) add(ctx context.Context, job *Job) (string, error) {
	body, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job: %w", err)
	}
	err = q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]interface{}{"job": string(body)},
	}).Err()
	if err != nil {
		return "", fmt.Errorf("failed to enqueue job: %w", err)
	}
	return job.ID, nil
}

// Dequeue claims the next job for this consumer, blocking up to block.
// Returns ErrEmpty on timeout.
func (q *RedisQueue) Dequeue(ctx context.Context, block time.Duration) (*Job, error) {
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: q.consumer,
		Streams:  []string{q.stream, ">"},
		Count:    1,
		Block:    block,
	}).Result()
	if err == redis.Nil {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read from queue: %w", err)
	}
	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, ErrEmpty
	}

	msg := streams[0].Messages[0]
	raw, ok := msg.Values["job"].(string)
	if !ok {
		// Poison entry: ack it away so it cannot wedge the stream.
		q.client.XAck(ctx, q.stream, q.group, msg.ID)
		return nil, fmt.Errorf("malformed queue entry %s", msg.ID)
	}

	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		q.client.XAck(ctx, q.stream, q.group, msg.ID)
		return nil, fmt.Errorf("failed to decode job: %w", err)
	}
	job.StreamID = msg.ID
	job.Attempts++
	return &job, nil
}

// Ack marks a job done and removes it from the stream.
func (q *RedisQueue) Ack(ctx context.Context, job *Job) error {
	if err := q.client.XAck(ctx, q.stream, q.group, job.StreamID).Err(); err != nil {
		return fmt.Errorf("failed to ack job: %w", err)
	}
	q.client.XDel(ctx, q.stream, job.StreamID)
	return nil
}

// Nack acks the failed attempt and re-enqueues the job unless its attempts
// are exhausted. Returns whether the job will be retried.
func (q *RedisQueue) Nack(ctx context.Context, job *Job) (bool, error) {
	if err := q.Ack(ctx, job); err != nil {
		return false, err
	}
	if job.Attempts >= job.MaxAttempts {
		return false, nil
	}
	retry := *job
	retry.StreamID = ""
	if _, err := q.add(ctx, &retry); err != nil {
		return false, err
	}
	return true, nil
}

// Pending returns the number of stream entries not yet acknowledged.
func (q *RedisQueue) Pending(ctx context.Context) (int64, error) {
	n, err := q.client.XLen(ctx, q.stream).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue length: %w", err)
	}
	return n, nil
}
