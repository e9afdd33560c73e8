package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/JaimeRamones/prodflow/internal/cache"
	"github.com/JaimeRamones/prodflow/internal/models"
	"github.com/JaimeRamones/prodflow/internal/utils"
)

type stubRunner struct {
	err  error
	seen []cache.PageJob
}

func (s *stubRunner) RunPage(_ context.Context, job cache.PageJob) (*models.SyncSummary, error) {
	s.seen = append(s.seen, job)
	return &models.SyncSummary{TenantID: job.TenantID, Page: job.Page}, s.err
}

type memQueue struct {
	mu   sync.Mutex
	jobs []cache.PageJob
}

func (q *memQueue) Enqueue(_ context.Context, job cache.PageJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *memQueue) Dequeue(_ context.Context, timeout time.Duration) (*cache.PageJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		time.Sleep(timeout)
		return nil, nil
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return &job, nil
}

func TestPageWorkerRetriesTransientFailure(t *testing.T) {
	runner := &stubRunner{err: errors.New("connection refused")}
	queue := &memQueue{}
	w := NewPageWorker(runner, queue, 1, 3, time.Millisecond)

	w.process(context.Background(), cache.PageJob{TenantID: "t1", Page: 2})
	if len(queue.jobs) != 1 || queue.jobs[0].Attempt != 1 || queue.jobs[0].Page != 2 {
		t.Fatalf("queue = %+v, want page 2 attempt 1", queue.jobs)
	}

	w.process(context.Background(), cache.PageJob{TenantID: "t1", Page: 2, Attempt: 2})
	if len(queue.jobs) != 1 {
		t.Fatalf("exhausted job re-enqueued: %+v", queue.jobs)
	}
}

func TestPageWorkerDoesNotRetryFatalOrLocked(t *testing.T) {
	for _, err := range []error{
		fmt.Errorf("t1: %w", utils.ErrTokenRefresh),
		fmt.Errorf("t1: %w", utils.ErrMissingMarkup),
		fmt.Errorf("t1 page 0: %w", utils.ErrPageLocked),
	} {
		queue := &memQueue{}
		w := NewPageWorker(&stubRunner{err: err}, queue, 1, 3, time.Millisecond)
		w.process(context.Background(), cache.PageJob{TenantID: "t1"})
		if len(queue.jobs) != 0 {
			t.Errorf("%v: job re-enqueued", err)
		}
	}
}

func TestPageWorkerConsumesUntilCancelled(t *testing.T) {
	runner := &stubRunner{}
	queue := &memQueue{jobs: []cache.PageJob{{TenantID: "t1", Page: 1}, {TenantID: "t1", Page: 2}}}
	w := NewPageWorker(runner, queue, 1, 3, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	w.Start(ctx)

	if len(runner.seen) != 2 || runner.seen[0].Page != 1 || runner.seen[1].Page != 2 {
		t.Fatalf("seen = %+v", runner.seen)
	}
}

func TestPageWorkerBoundsPagesWithoutProgress(t *testing.T) {
	runner := &stubRunner{err: fmt.Errorf("t1 page 3: %w", utils.ErrPageNoProgress)}
	queue := &memQueue{}
	w := NewPageWorker(runner, queue, 1, 2, time.Millisecond)

	w.process(context.Background(), cache.PageJob{TenantID: "t1", Page: 3})
	if len(queue.jobs) != 1 || queue.jobs[0].Attempt != 1 || queue.jobs[0].Page != 3 {
		t.Fatalf("queue = %+v, want page 3 attempt 1", queue.jobs)
	}

	w.process(context.Background(), queue.jobs[0])
	if len(queue.jobs) != 1 {
		t.Fatalf("page retried past the attempt limit: %+v", queue.jobs)
	}
}
