package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Retry job kinds
const (
	RetryOrderEmail = "order_email"
	RetryPushUser   = "push_user"
	RetryPushAdmins = "push_admins"
)

const (
	defaultRetryKey      = "storefront:dispatch:retry"
	defaultMaxAttempts   = 3
	defaultRetryBaseWait = 2 * time.Second
)

// RetryJob is a serialized dispatch task
type RetryJob struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	Attempt    int             `json:"attempt"`
	LastError  string          `json:"lastError,omitempty"`
	NotBefore  time.Time       `json:"notBefore"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
}

// NewRetryJob marshals payload into a job of the given kind.
func NewRetryJob(kind string, payload interface{}) (*RetryJob, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &RetryJob{ID: uuid.NewString(), Kind: kind, Payload: raw}, nil
}

// RetryQueue stores failed dispatch tasks
type RetryQueue interface {
	Enqueue(ctx context.Context, job RetryJob) error
	// Dequeue blocks up to timeout and returns nil when nothing arrived.
	Dequeue(ctx context.Context, timeout time.Duration) (*RetryJob, error)
}

// RedisRetryQueue keeps jobs in a Redis list
type RedisRetryQueue struct {
	client *redis.Client
	key    string
}

// NewRedisRetryQueue connects to redisURL and verifies the connection.
func NewRedisRetryQueue(ctx context.Context, redisURL string) (*RedisRetryQueue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisRetryQueue{client: client, key: defaultRetryKey}, nil
}

// Enqueue pushes job onto the list.
func (q *RedisRetryQueue) Enqueue(ctx context.Context, job RetryJob) error {
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now()
	}
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, data).Err()
}

// Dequeue pops the oldest job.
func (q *RedisRetryQueue) Dequeue(ctx context.Context, timeout time.Duration) (*RetryJob, error) {
	res, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var job RetryJob
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("corrupt retry job: %w", err)
	}
	return &job, nil
}

// Close releases the Redis connection.
func (q *RedisRetryQueue) Close() error {
	return q.client.Close()
}

// RetryHandler re-runs one kind of job.
type RetryHandler func(ctx context.Context, payload json.RawMessage) error

// RetryWorker drains a RetryQueue
type RetryWorker struct {
	queue       RetryQueue
	handlers    map[string]RetryHandler
	mu          sync.RWMutex
	maxAttempts int
	baseWait    time.Duration
	pollTimeout time.Duration
	log         *logrus.Logger
	now         func() time.Time
}

// NewRetryWorker creates a worker with three attempts per job.
func NewRetryWorker(queue RetryQueue, log *logrus.Logger) *RetryWorker {
	return &RetryWorker{
		queue:       queue,
		handlers:    make(map[string]RetryHandler),
		maxAttempts: defaultMaxAttempts,
		baseWait:    defaultRetryBaseWait,
		pollTimeout: 5 * time.Second,
		log:         log,
		now:         time.Now,
	}
}

// Handle registers the handler for kind.
func (w *RetryWorker) Handle(kind string, h RetryHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[kind] = h
}

// Start processes jobs until ctx is cancelled.
func (w *RetryWorker) Start(ctx context.Context) {
	w.log.Info("dispatch retry worker started")
	for {
		select {
		case <-ctx.Done():
			w.log.Info("dispatch retry worker stopped")
			return
		default:
		}

		job, err := w.queue.Dequeue(ctx, w.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.log.WithError(err).Error("failed to read retry queue")
			sleepCtx(ctx, time.Second)
			continue
		}
		if job == nil {
			continue
		}
		w.Process(ctx, *job)
	}
}

// Process runs one job, re-queueing it with a longer delay on failure
// until maxAttempts is reached.
func (w *RetryWorker) Process(ctx context.Context, job RetryJob) {
	if wait := job.NotBefore.Sub(w.now()); wait > 0 {
		if !sleepCtx(ctx, wait) {
			_ = w.queue.Enqueue(context.Background(), job)
			return
		}
	}

	w.mu.RLock()
	h, ok := w.handlers[job.Kind]
	w.mu.RUnlock()

	entry := w.log.WithFields(logrus.Fields{"job": job.ID, "kind": job.Kind, "attempt": job.Attempt + 1})
	if !ok {
		entry.Error("no handler for retry job, dropping")
		return
	}

	err := h(ctx, job.Payload)
	if err == nil {
		entry.Info("retried dispatch task succeeded")
		return
	}

	job.Attempt++
	job.LastError = err.Error()
	if job.Attempt >= w.maxAttempts {
		entry.WithError(err).Error("dispatch task failed permanently, dropping")
		return
	}

	job.NotBefore = w.now().Add(w.backoff(job.Attempt))
	if qErr := w.queue.Enqueue(ctx, job); qErr != nil {
		entry.WithError(qErr).Error("failed to re-queue dispatch task")
		return
	}
	entry.WithError(err).Warn("retried dispatch task failed, re-queued")
}

func (w *RetryWorker) backoff(attempt int) time.Duration {
	return w.baseWait << uint(attempt-1)
}

// sleepCtx waits d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
