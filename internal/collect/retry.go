package collect

import (
	"context"
	"time"
)

// RetryPolicy retries transient failures with exponential backoff. Timeout
// and connection errors are transient; validation errors are permanent and
// propagate on first occurrence.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	Retryable   map[ErrorKind]bool
}

// NewRetryPolicy returns the standard policy: retry timeouts and connection
// errors, doubling the delay between attempts.
func NewRetryPolicy(maxAttempts int, baseDelay time.Duration) RetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		Multiplier:  2,
		Retryable: map[ErrorKind]bool{
			ErrKindTimeout:    true,
			ErrKindConnection: true,
		},
	}
}

// Do invokes fn up to MaxAttempts times. attempt is zero-based. The first
// nil return wins; a non-retryable error, or the final attempt's error,
// propagates unchanged.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	var err error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if attempt > 0 {
			if serr := p.sleep(ctx, attempt); serr != nil {
				return serr
			}
		}
		err = fn(ctx, attempt)
		if err == nil {
			return nil
		}
		if !p.Retryable[KindOf(err)] {
			return err
		}
	}
	return err
}

func (p RetryPolicy) sleep(ctx context.Context, attempt int) error {
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * p.Multiplier)
	}

	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
