// Package retry runs operations against flaky external stores with bounded exponential backoff.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/eion/tenantgate/internal/logging"
	"github.com/eion/tenantgate/internal/metrics"
)

// Policy bounds how often and how slowly an operation is retried.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64

	// RetryIf decides whether a failure is worth another attempt. Nil retries every error.
	RetryIf func(error) bool
}

// DefaultPolicy is three attempts starting at 100ms and doubling.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Multiplier:      2,
	}
}

func (p Policy) normalized() Policy {
	def := DefaultPolicy()
	if p.MaxAttempts < 1 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = def.InitialInterval
	}
	if p.MaxInterval < p.InitialInterval {
		p.MaxInterval = p.InitialInterval
	}
	if p.Multiplier < 1 {
		p.Multiplier = def.Multiplier
	}
	return p
}

// backOff has no jitter so consecutive delays never decrease.
func (p Policy) backOff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialInterval
	eb.MaxInterval = p.MaxInterval
	eb.Multiplier = p.Multiplier
	eb.RandomizationFactor = 0
	eb.MaxElapsedTime = 0
	eb.Reset()
	return backoff.WithMaxRetries(eb, uint64(p.MaxAttempts-1))
}

// Do runs fn until it succeeds, RetryIf rejects the error, the attempts are exhausted or ctx is done.
// The error of the last attempt is returned as is.
func Do[T any](ctx context.Context, p Policy, logger logging.Logger, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.normalized()

	attempt := 0
	op := func() (T, error) {
		attempt++
		res, err := fn(ctx)
		if err != nil && p.RetryIf != nil && !p.RetryIf(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}

	notify := func(err error, next time.Duration) {
		metrics.RecordStoreRetry(operation)
		logger.Debug("retrying operation", logging.Fields{
			"operation":   operation,
			"attempt":     attempt,
			"maxAttempts": p.MaxAttempts,
			"nextDelayMs": next.Milliseconds(),
			"reason":      err.Error(),
		})
	}

	res, err := backoff.RetryNotifyWithData(op, backoff.WithContext(p.backOff(), ctx), notify)
	if err != nil && attempt > 1 {
		logger.Warn("operation failed after retries", logging.Fields{
			"operation": operation,
			"attempts":  attempt,
		})
	}
	return res, err
}
