package model

import (
	"context"
	"time"
)

// RetryOptions bound the retry behavior of WithRetry.
type RetryOptions struct {
	MaxAttempts int           // total attempts including the first
	BaseDelay   time.Duration // delay before the second attempt; doubles per retry
}

// DefaultRetryOptions matches the bounded backoff used for all model calls.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond}
}

// retryModel decorates a Model with bounded exponential backoff. Transient
// provider failures are absorbed up to MaxAttempts; the last error is
// returned unchanged so callers can still inspect it.
type retryModel struct {
	inner Model
	opts  RetryOptions
}

// WithRetry wraps m so Generate retries failed calls with exponential
// backoff. Context cancellation aborts the wait immediately.
func WithRetry(m Model, opts RetryOptions) Model {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 500 * time.Millisecond
	}
	return &retryModel{inner: m, opts: opts}
}

func (r *retryModel) Generate(ctx context.Context, req Request) (*Response, error) {
	var lastErr error
	delay := r.opts.BaseDelay
	for attempt := 0; attempt < r.opts.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
		resp, err := r.inner.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

func (r *retryModel) Info() Info { return r.inner.Info() }
