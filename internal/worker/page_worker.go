package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/JaimeRamones/prodflow/internal/cache"
	"github.com/JaimeRamones/prodflow/internal/models"
	"github.com/JaimeRamones/prodflow/internal/service"
	"github.com/JaimeRamones/prodflow/internal/utils"
)

// PageRunner syncs one queued page.
type PageRunner interface {
	RunPage(ctx context.Context, job cache.PageJob) (*models.SyncSummary, error)
}

// PageQueue is the job source of a PageWorker.
type PageQueue interface {
	Enqueue(ctx context.Context, job cache.PageJob) error
	Dequeue(ctx context.Context, timeout time.Duration) (*cache.PageJob, error)
}

// PageWorker consumes page jobs scheduled by the orchestrator and retries
// failed pages a bounded number of times.
type PageWorker struct {
	runner      PageRunner
	queue       PageQueue
	workers     int
	maxAttempts int
	pollTimeout time.Duration
}

// NewPageWorker constructs a PageWorker.
func NewPageWorker(runner PageRunner, queue PageQueue, workers, maxAttempts int, pollTimeout time.Duration) *PageWorker {
	if workers < 1 {
		workers = 1
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if pollTimeout <= 0 {
		pollTimeout = 5 * time.Second
	}
	return &PageWorker{
		runner:      runner,
		queue:       queue,
		workers:     workers,
		maxAttempts: maxAttempts,
		pollTimeout: pollTimeout,
	}
}

// Start runs the consumers until ctx is cancelled.
func (w *PageWorker) Start(ctx context.Context) {
	log.Info().Int("workers", w.workers).Int("max_attempts", w.maxAttempts).Msg("Starting page worker")

	var wg sync.WaitGroup
	for i := 0; i < w.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.consume(ctx)
		}()
	}
	wg.Wait()
	log.Info().Msg("Page worker stopped")
}

func (w *PageWorker) consume(ctx context.Context) {
	for ctx.Err() == nil {
		job, err := w.queue.Dequeue(ctx, w.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("Failed to read page queue")
			sleep(ctx, time.Second)
			continue
		}
		if job == nil {
			continue
		}
		w.process(ctx, *job)
	}
}

func (w *PageWorker) process(ctx context.Context, job cache.PageJob) {
	_, err := w.runner.RunPage(ctx, job)
	if err == nil {
		return
	}

	logger := log.With().
		Str("run_id", job.RunID).
		Str("tenant_id", job.TenantID).
		Int("page", job.Page).
		Int("attempt", job.Attempt).
		Logger()

	switch {
	case errors.Is(err, utils.ErrPageLocked):
		// The holder schedules whatever comes after this page.
		logger.Debug().Msg("Page already in progress, dropping duplicate job")
		return
	case !service.IsRetryablePageError(err):
		logger.Warn().Err(err).Msg("Page failed permanently")
		return
	case job.Attempt+1 >= w.maxAttempts:
		logger.Error().Err(err).Msg("Page failed, attempts exhausted")
		return
	}

	job.Attempt++
	job.EnqueuedAt = time.Time{}
	if err := w.queue.Enqueue(ctx, job); err != nil {
		logger.Error().Err(err).Msg("Failed to re-enqueue page")
		return
	}
	logger.Warn().Err(err).Msg("Page failed, re-enqueued")
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
