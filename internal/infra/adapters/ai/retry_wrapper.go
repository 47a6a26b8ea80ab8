package ai

import (
	"context"
	"errors"
	"time"

	"chattrain/internal/domain"
	"chattrain/internal/domain/ports/adapter"
)

var _ adapter.CompletionAdapter = (*retryingAI)(nil)

type retryingAI struct {
	inner      adapter.CompletionAdapter
	maxRetries int
	backoff    time.Duration
}

// NewRetryingAI retries transient completion failures up to maxRetries times
// with linear backoff. Non-transient errors fail immediately.
func NewRetryingAI(inner adapter.CompletionAdapter, maxRetries int, backoff time.Duration) adapter.CompletionAdapter {
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	return &retryingAI{inner: inner, maxRetries: maxRetries, backoff: backoff}
}

func (r *retryingAI) Complete(ctx context.Context, req adapter.ChatRequest) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * r.backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		reply, err := r.inner.Complete(ctx, req)
		if err == nil {
			return reply, nil
		}
		lastErr = err
		if !errors.Is(err, domain.ErrTransient) {
			return "", err
		}
	}
	return "", lastErr
}
