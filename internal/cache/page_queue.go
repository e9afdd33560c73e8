package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	pageQueueKey  = "prodflow:sync:pages"
	pageLockFmt   = "prodflow:sync:lock:%s:%d"
	defaultLockTT = 10 * time.Minute
)

// PageJob is one unit of paginated sync work for a tenant.
type PageJob struct {
	RunID      string    `json:"runId"`
	TenantID   string    `json:"tenantId"`
	Page       int       `json:"page"`
	Attempt    int       `json:"attempt"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// PageLock is a held (tenant, page) lock. Release it when the page is done.
type PageLock struct {
	key   string
	token string
}

// PageQueue is the Redis-backed work queue that carries the page cursor
// between sync invocations, plus the per-page locks that keep two workers
// off the same page.
type PageQueue struct {
	redis   *RedisClient
	lockTTL time.Duration
}

// NewPageQueue creates a PageQueue. lockTTL bounds how long a crashed worker
// can hold a page; zero uses 10 minutes.
func NewPageQueue(redis *RedisClient, lockTTL time.Duration) *PageQueue {
	if lockTTL <= 0 {
		lockTTL = defaultLockTT
	}
	return &PageQueue{redis: redis, lockTTL: lockTTL}
}

// Enqueue schedules job.
func (q *PageQueue) Enqueue(ctx context.Context, job PageJob) error {
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal page job: %w", err)
	}
	if err := q.redis.LPush(ctx, pageQueueKey, string(data)); err != nil {
		return fmt.Errorf("failed to enqueue page job: %w", err)
	}
	return nil
}

// Dequeue waits up to timeout for the next job. It returns nil, nil on timeout.
func (q *PageQueue) Dequeue(ctx context.Context, timeout time.Duration) (*PageJob, error) {
	raw, err := q.redis.BRPop(ctx, timeout, pageQueueKey)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue page job: %w", err)
	}
	var job PageJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, fmt.Errorf("failed to decode page job: %w", err)
	}
	return &job, nil
}

// Len returns the number of pending jobs.
func (q *PageQueue) Len(ctx context.Context) (int64, error) {
	return q.redis.LLen(ctx, pageQueueKey)
}

// AcquirePageLock takes the (tenant, page) lock. ok is false when another
// worker already holds it.
func (q *PageQueue) AcquirePageLock(ctx context.Context, tenantID string, page int) (*PageLock, bool, error) {
	lock := &PageLock{
		key:   fmt.Sprintf(pageLockFmt, tenantID, page),
		token: uuid.New().String(),
	}
	ok, err := q.redis.SetNX(ctx, lock.key, lock.token, q.lockTTL)
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire page lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return lock, true, nil
}

// ReleasePageLock releases lock if it is still ours.
func (q *PageQueue) ReleasePageLock(ctx context.Context, lock *PageLock) error {
	if lock == nil {
		return nil
	}
	if _, err := q.redis.DeleteIfValue(ctx, lock.key, lock.token); err != nil {
		return fmt.Errorf("failed to release page lock: %w", err)
	}
	return nil
}
