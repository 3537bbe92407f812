// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package retry wraps a single fallible operation with bounded retries and
// exponential backoff.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/pdiddy/design-engine/internal/apperr"
)

const (
	defaultMaxRetries   = 3
	defaultInitialDelay = time.Second
)

// Backoff selects how the delay grows between attempts.
type Backoff int

const (
	// BackoffExponential doubles the delay after each failed attempt.
	BackoffExponential Backoff = iota
	// BackoffConstant waits InitialDelay between every attempt.
	BackoffConstant
)

// Options configure Do. The zero value makes a single attempt; start from
// DefaultOptions for the standard three retries.
type Options struct {
	// MaxRetries is the number of retries after the first attempt. Zero
	// disables retrying.
	MaxRetries int

	// InitialDelay is the wait before the first retry. Values <= 0 use the
	// default (1 s).
	InitialDelay time.Duration

	Backoff Backoff

	// Retryable decides whether a failure may be retried. Nil uses
	// apperr.IsRetryable.
	Retryable func(error) bool

	// OnRetry runs before each retry, after the delay has been chosen.
	OnRetry func(attempt int, delay time.Duration, err error)

	// Timeout races each attempt against a timer. The attempt's context is
	// cancelled on expiry, but an operation that ignores its context keeps
	// running in the background; only its result is discarded.
	Timeout time.Duration
}

// DefaultOptions retries three times with a 1 s exponential backoff and the
// default retryable predicate.
func DefaultOptions() Options {
	return Options{MaxRetries: defaultMaxRetries, InitialDelay: defaultInitialDelay, Backoff: BackoffExponential}
}

// sleep waits for d or until ctx is done. Tests replace it to avoid real
// waits.
var sleep = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Delay returns the wait before retry number attempt (1-based).
func (o Options) Delay(attempt int) time.Duration {
	base := o.InitialDelay
	if base <= 0 {
		base = defaultInitialDelay
	}
	if o.Backoff == BackoffConstant || attempt <= 1 {
		return base
	}
	return base * time.Duration(1<<(attempt-1))
}

func (o Options) maxRetries() int {
	if o.MaxRetries < 0 {
		return 0
	}
	return o.MaxRetries
}

// Do runs op until it succeeds, fails with a non-retryable error, or
// exhausts MaxRetries+1 attempts. name identifies the operation in errors.
// Attempts are strictly sequential.
func Do[T any](ctx context.Context, name string, opts Options, op func(context.Context) (T, error)) (T, error) {
	var zero T
	retryable := opts.Retryable
	if retryable == nil {
		retryable = apperr.IsRetryable
	}
	maxRetries := opts.maxRetries()

	var lastErr error
	for attempt := 1; ; attempt++ {
		res, err := runAttempt(ctx, opts.Timeout, op)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, apperr.Wrap(fmt.Errorf("cancelled after %d attempt(s): %w", attempt, ctx.Err()), name)
		}
		if !retryable(err) {
			return zero, apperr.Wrap(fmt.Errorf("failed after %d attempt(s): %w", attempt, err), name)
		}
		if attempt > maxRetries {
			return zero, apperr.Wrap(fmt.Errorf("failed after %d attempt(s): %w", attempt, lastErr), name)
		}

		delay := opts.Delay(attempt)
		if opts.OnRetry != nil {
			opts.OnRetry(attempt, delay, err)
		}
		if err := sleep(ctx, delay); err != nil {
			return zero, apperr.Wrap(fmt.Errorf("cancelled after %d attempt(s): %w", attempt, err), name)
		}
	}
}

type outcome[T any] struct {
	val T
	err error
}

// runAttempt runs op once, racing it against timeout when set.
func runAttempt[T any](ctx context.Context, timeout time.Duration, op func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return op(ctx)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan outcome[T], 1)
	go func() {
		v, err := op(attemptCtx)
		done <- outcome[T]{val: v, err: err}
	}()

	var zero T
	select {
	case out := <-done:
		return out.val, out.err
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, apperr.New(apperr.CategoryNetwork, apperr.CodeTimeout, "", fmt.Sprintf("operation timed out after %v", timeout))
	}
}
