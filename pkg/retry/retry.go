// Package retry implements the single backoff policy shared by every outbound
// call in the sync pipeline (marketplace API, OAuth endpoint, database bootstrap).
package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// ErrExhausted is wrapped into the error returned by Do when every attempt failed
// with a retryable error.
var ErrExhausted = errors.New("retry attempts exhausted")

// StatusCoder is implemented by errors that carry an HTTP status code.
type StatusCoder interface {
	HTTPStatus() int
}

// Policy describes how an operation is retried.
// Delay for attempt n (1-based) is BaseDelay * 2^(n-1), capped at MaxDelay when set.
type Policy struct {
	MaxAttempts          int
	BaseDelay            time.Duration
	MaxDelay             time.Duration
	RetryableStatusCodes []int

	// RetryIf replaces the default classification when set.
	RetryIf func(err error) bool

	// Sleep waits between attempts. Nil means a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Default returns the marketplace policy: 5 attempts, 1s base, retry on 409 and 429.
func Default() Policy {
	return Policy{
		MaxAttempts:          5,
		BaseDelay:            time.Second,
		RetryableStatusCodes: []int{409, 429},
	}
}

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as non-retryable regardless of its type.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Delay returns the wait after the given failed attempt.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.BaseDelay << (attempt - 1)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Retryable reports whether err should be retried under this policy.
// Transport errors are retried the same way as retryable status codes.
func (p Policy) Retryable(err error) bool {
	if err == nil {
		return false
	}
	var perm *permanentError
	if errors.As(err, &perm) {
		return false
	}
	if p.RetryIf != nil {
		return p.RetryIf(err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		status := sc.HTTPStatus()
		for _, code := range p.RetryableStatusCodes {
			if code == status {
				return true
			}
		}
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}

// Do runs fn until it succeeds, returns a non-retryable error, or MaxAttempts is reached.
// fn receives the 1-based attempt number.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return nil
		}
		if !p.Retryable(lastErr) || ctx.Err() != nil {
			return unwrapPermanent(lastErr)
		}
		if attempt == maxAttempts {
			break
		}
		if err := sleep(ctx, p.Delay(attempt)); err != nil {
			return fmt.Errorf("retry interrupted after %d attempts: %w", attempt, err)
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, maxAttempts, lastErr)
}

func unwrapPermanent(err error) error {
	var perm *permanentError
	if errors.As(err, &perm) && perm == err {
		return perm.err
	}
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
