package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/catalog-scraper/pkg/utils"
)

// RetryFetcher pauses and retries a fetch after a connectivity failure.
// Only ErrTransientNetwork is retried; every other outcome is returned as is.
// When the retries are exhausted the last error is wrapped in ErrRetryFailed.
type RetryFetcher struct {
	Next    Fetcher
	Backoff time.Duration // Pause before each retry
	Retries int           // Retries after the first attempt
	Log     *logrus.Entry
}

// NewRetryFetcher wraps next with the pause-and-retry policy.
func NewRetryFetcher(next Fetcher, backoff time.Duration, retries int, log *logrus.Entry) *RetryFetcher {
	return &RetryFetcher{Next: next, Backoff: backoff, Retries: retries, Log: log}
}

// Fetch implements Fetcher.
func (r *RetryFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	reqLog := r.Log.WithField("url", rawURL)
	var lastErr error

	for attempt := 0; attempt <= r.Retries; attempt++ {
		if attempt > 0 {
			reqLog.WithFields(logrus.Fields{"attempt": attempt, "max_retries": r.Retries, "delay": r.Backoff}).
				Warnf("Connection problem, check your internet connection. Retrying: %v", lastErr)

			timer := time.NewTimer(r.Backoff)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			}
		}

		page, err := r.Next.Fetch(ctx, rawURL)
		if err == nil {
			return page, nil
		}
		if !utils.IsTransient(err) {
			return nil, err
		}
		lastErr = err
	}

	reqLog.Errorf("Giving up after %d attempt(s): %v", r.Retries+1, lastErr)
	return nil, fmt.Errorf("%w: %w", utils.ErrRetryFailed, lastErr)
}
