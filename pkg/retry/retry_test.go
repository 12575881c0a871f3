package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errQuota = errors.New("429 RESOURCE_EXHAUSTED")

func isQuota(err error) bool { return errors.Is(err, errQuota) }

// recordingSleep captures requested delays without waiting.
type recordingSleep struct {
	delays []time.Duration
}

func (r *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func TestDo_SuccessFirstAttempt(t *testing.T) {
	rec := &recordingSleep{}
	p := DefaultPolicy(isQuota)
	p.Sleep = rec.sleep

	calls := 0
	v, err := Do(context.Background(), p, func(context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 1, calls)
	assert.Empty(t, rec.delays)
}

func TestDo_NonRecoverableFailsImmediately(t *testing.T) {
	rec := &recordingSleep{}
	p := DefaultPolicy(isQuota)
	p.Sleep = rec.sleep

	boom := errors.New("bad request")
	calls := 0
	_, err := Do(context.Background(), p, func(context.Context) (int, error) {
		calls++
		return 0, boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
	assert.Empty(t, rec.delays, "no sleep for terminal errors")

	var exhausted *ExhaustedError
	assert.False(t, errors.As(err, &exhausted))
}

func TestDo_AlwaysRecoverableStopsAtMaxAttempts(t *testing.T) {
	for _, maxAttempts := range []int{1, 2, 3, 5} {
		rec := &recordingSleep{}
		p := DefaultPolicy(isQuota)
		p.MaxAttempts = maxAttempts
		p.Sleep = rec.sleep

		calls := 0
		_, err := Do(context.Background(), p, func(context.Context) (int, error) {
			calls++
			return 0, errQuota
		})

		assert.Equal(t, maxAttempts, calls, "attempts for max=%d", maxAttempts)
		assert.Len(t, rec.delays, maxAttempts-1)

		var exhausted *ExhaustedError
		require.ErrorAs(t, err, &exhausted)
		assert.Equal(t, maxAttempts, exhausted.Attempts)
		assert.ErrorIs(t, err, errQuota, "last error stays reachable")
	}
}

func TestDo_RecoversAfterRetries(t *testing.T) {
	rec := &recordingSleep{}
	p := DefaultPolicy(isQuota)
	p.Sleep = rec.sleep

	var observed []int
	p.OnRetry = func(attempt int, _ time.Duration, _ error) { observed = append(observed, attempt) }

	calls := 0
	v, err := Do(context.Background(), p, func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errQuota
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, []int{1, 2}, observed)
}

func TestDo_BackoffGrowsExponentiallyWithBoundedJitter(t *testing.T) {
	rec := &recordingSleep{}
	p := Policy{
		MaxAttempts:  4,
		InitialDelay: 100 * time.Millisecond,
		Factor:       2,
		MaxJitter:    50 * time.Millisecond,
		Retryable:    isQuota,
		Sleep:        rec.sleep,
	}

	_, _ = Do(context.Background(), p, func(context.Context) (int, error) { return 0, errQuota })

	require.Len(t, rec.delays, 3)
	for i, d := range rec.delays {
		base := p.Backoff(i)
		assert.GreaterOrEqual(t, d, base)
		assert.Less(t, d, base+p.MaxJitter)
	}
	assert.Equal(t, 100*time.Millisecond, p.Backoff(0))
	assert.Equal(t, 400*time.Millisecond, p.Backoff(2))
}

func TestDo_ContextCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{
		MaxAttempts:  3,
		InitialDelay: time.Hour,
		Factor:       2,
		Retryable:    isQuota,
	}

	calls := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := Do(ctx, p, func(context.Context) (int, error) {
		calls++
		return 0, errQuota
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestSleep(t *testing.T) {
	start := time.Now()
	require.NoError(t, Sleep(context.Background(), 10*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Second), context.Canceled)
}
