// Package resilience implements the retry/backoff policy described in
// spec §4.7: exponential backoff with jitter, a hard retry budget, and a
// pluggable classifier distinguishing retryable, non-retryable, and
// token-expiry errors. Grounded on the attempt-numbered retry loop shape
// in stadam23-Eve-flipper/internal/esi/client.go, generalized onto
// github.com/cenkalti/backoff/v4 instead of a hand-rolled loop.
package resilience

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/kisquant/daytrader/internal/logger"
	"github.com/kisquant/daytrader/pkg/errors"
)

// Classification is the outcome of classifying a failed call.
type Classification int

const (
	Retryable Classification = iota
	NonRetryable
	TokenExpired
)

// Classifier maps an error from one call attempt to a Classification.
type Classifier func(error) Classification

// Policy holds the retry/backoff parameters from spec §4.7.
type Policy struct {
	MaxRetries     int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	JitterFraction float64
	CallTimeout    time.Duration
}

// DefaultPolicy returns the spec's stated defaults (max_retries=5, max
// delay capped at 6s).
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:     5,
		BaseDelay:      200 * time.Millisecond,
		MaxDelay:       6 * time.Second,
		JitterFraction: 0.2,
		CallTimeout:    10 * time.Second,
	}
}

// Retrier runs an operation under Policy, logging each attempt.
type Retrier struct {
	policy Policy
	logger *logger.Logger
}

// New constructs a Retrier.
func New(policy Policy, log *logger.Logger) *Retrier {
	return &Retrier{policy: policy, logger: log}
}

// Do runs op, retrying per policy while classify(err) == Retryable or
// TokenExpired. A TokenExpired classification is retried exactly like
// Retryable here; callers that need refresh-then-retry-once semantics
// (internal/execution/liveclient's withAuth) wrap op themselves and only see the outer retry loop
// for the surrounding transient failures, matching spec §4.7's statement
// that the two mechanisms compose.
func (r *Retrier) Do(ctx context.Context, classify Classifier, op func(ctx context.Context) error) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = r.policy.BaseDelay
	exp.MaxInterval = r.policy.MaxDelay
	exp.Multiplier = 2
	exp.RandomizationFactor = r.policy.JitterFraction
	exp.MaxElapsedTime = 0

	bo := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(r.policy.MaxRetries)), ctx)

	attempt := 0
	nonRetryable := false

	operation := func() error {
		callCtx, cancel := context.WithTimeout(ctx, r.policy.CallTimeout)
		defer cancel()

		err := op(callCtx)
		if err == nil {
			return nil
		}

		class := classify(err)
		if class == NonRetryable {
			nonRetryable = true

			return backoff.Permanent(err)
		}

		return err
	}

	notify := func(err error, delay time.Duration) {
		attempt++

		r.logger.Warn("retrying external call",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.policy.MaxRetries+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	}

	err := backoff.RetryNotify(operation, bo, notify)
	if err == nil {
		return nil
	}

	var permErr *backoff.PermanentError
	if stderrors.As(err, &permErr) {
		err = permErr.Err
	}

	if nonRetryable {
		return errors.Wrap(errors.ErrCodeAPINonRetryableFailure, err, "non-retryable external call failure")
	}

	return errors.Newf(errors.ErrCodeAPIRetryExhausted, "retry budget of %d attempts exhausted: %v", r.policy.MaxRetries+1, err)
}
