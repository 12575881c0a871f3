package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// Default policy values.
const (
	DefaultMaxAttempts  = 3
	DefaultInitialDelay = 1200 * time.Millisecond
	DefaultFactor       = 2.0
	DefaultMaxJitter    = 500 * time.Millisecond
)

// Policy describes how a single remote call is retried.
type Policy struct {
	// MaxAttempts caps the total number of invocations, including the first.
	MaxAttempts int
	// InitialDelay is the wait before the second attempt.
	InitialDelay time.Duration
	// Factor multiplies the delay after every retry.
	Factor float64
	// MaxJitter bounds the random delay added to every wait.
	MaxJitter time.Duration
	// Retryable decides whether an error is worth another attempt. Nil means
	// nothing is retried.
	Retryable func(error) bool
	// OnRetry is called before every wait. It must not block.
	OnRetry func(attempt int, delay time.Duration, err error)
	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy returns a Policy with the package defaults and the given classifier.
func DefaultPolicy(retryable func(error) bool) Policy {
	return Policy{
		MaxAttempts:  DefaultMaxAttempts,
		InitialDelay: DefaultInitialDelay,
		Factor:       DefaultFactor,
		MaxJitter:    DefaultMaxJitter,
		Retryable:    retryable,
	}
}

// ExhaustedError is returned when every allowed attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry: giving up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Backoff returns the wait before retry number attempt (0-based), without jitter.
func (p Policy) Backoff(attempt int) time.Duration {
	factor := p.Factor
	if factor < 1 {
		factor = 1
	}
	return time.Duration(float64(p.InitialDelay) * math.Pow(factor, float64(attempt)))
}

func (p Policy) delay(attempt int) time.Duration {
	d := p.Backoff(attempt)
	if p.MaxJitter > 0 {
		d += rand.N(p.MaxJitter)
	}
	return d
}

// Do invokes op until it succeeds, fails with a non-retryable error, or the
// attempt budget is spent.
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	for i := 0; ; i++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		if p.Retryable == nil || !p.Retryable(err) {
			return zero, err
		}
		if i >= attempts-1 {
			return zero, &ExhaustedError{Attempts: i + 1, Err: err}
		}

		d := p.delay(i)
		if p.OnRetry != nil {
			p.OnRetry(i+1, d, err)
		}
		if serr := sleep(ctx, d); serr != nil {
			return zero, serr
		}
	}
}

// Sleep waits for d, returning early with the context error if ctx is done first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
