package remote

import (
	"context"

	"github.com/cenkalti/backoff/v4"
	kverrors "github.com/systmms/kvtui/internal/errors"
)

// withRetry runs one remote operation under the façade's uniform policy:
// each attempt gets a bounded wait, transient failures are retried with
// exponential backoff and jitter up to the configured attempt count, and
// non-transient failures are classified and returned immediately.
func (c *Client) withRetry(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retry.InitialBackoff
	bo.MaxInterval = c.retry.MaxBackoff
	bo.MaxElapsedTime = 0

	attempt := 0
	op := func() error {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, c.retry.RequestTimeout)
		defer cancel()

		err := fn(callCtx)
		if err == nil {
			return nil
		}

		classified := kverrors.Classify(operation, err)
		if !kverrors.IsTransient(classified) {
			return backoff.Permanent(classified)
		}
		c.logger.Debug("%s attempt %d failed (transient): %v", operation, attempt, classified)
		return classified
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(c.retry.MaxAttempts-1)), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		c.logger.Debug("%s failed after %d attempt(s): %v", operation, attempt, err)
		return err
	}
	return nil
}
