package syncer

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourorg/mfl-sync/internal/apperr"
)

const (
	defaultMaxRetries = 3
	defaultRetryDelay = time.Second
)

// withRetry runs op up to maxRetries times, waiting delay*attempt between
// attempts. Cancellation is checked before every attempt and during every wait;
// once the context is done the returned error is a CancellationError for name.
func withRetry(ctx context.Context, log *logrus.Entry, name string, maxRetries int, delay time.Duration, op func(context.Context) (string, error)) (string, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", apperr.Cancelled(name, err)
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil || apperr.IsCancellation(err) {
			return "", apperr.Cancelled(name, err)
		}
		if !apperr.Retryable(err) {
			log.WithError(err).WithField("attempt", attempt).Warn(name + " failed permanently")
			return "", err
		}
		if attempt == maxRetries {
			break
		}

		wait := delay * time.Duration(attempt)
		log.WithError(err).WithFields(logrus.Fields{
			"attempt":      attempt,
			"max_attempts": maxRetries,
			"retry_in":     wait,
		}).Warn(name + " failed, retrying")

		if err := sleep(ctx, wait); err != nil {
			return "", apperr.Cancelled(name, err)
		}
	}

	log.WithError(lastErr).WithField("attempts", maxRetries).Error(name + " failed")
	return "", lastErr
}

// sleep waits d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
