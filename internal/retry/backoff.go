// Package retry runs an operation again with exponential backoff.  The
// attach client uses it to redial a console that is not up yet.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	ncerr "rconsole/internal/errors"
)

// ── Permanent errors ─────────────────────────────────────────────────

// PermanentError stops [Backoff.Do] on the first occurrence.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err has been marked with [Permanent].
func IsPermanent(err error) bool {
	var pe *PermanentError
	return ncerr.As(err, &pe)
}

// ── Backoff ──────────────────────────────────────────────────────────

// Backoff retries with a delay that grows by Multiplier each attempt.
type Backoff struct {
	InitialDelay time.Duration // default 200ms
	MaxDelay     time.Duration // default 5s
	Multiplier   float64       // default 2
	// MaxAttempts counts the first try.  0 retries until ctx is done.
	MaxAttempts int
	// Jitter spreads each wait by ±25%.
	Jitter bool
	// OnRetry, when set, is called before each wait.
	OnRetry func(attempt int, err error, wait time.Duration)
	// Classify decides whether a failure may be retried.  nil retries
	// everything that is not [Permanent].
	Classify func(err error) bool
}

// New returns a jittered backoff that makes retries extra attempts
// after the first, waiting at most maxDelay between them.
func New(retries int, maxDelay time.Duration) *Backoff {
	if retries < 0 {
		retries = 0
	}
	return &Backoff{
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     maxDelay,
		Multiplier:   2,
		MaxAttempts:  retries + 1,
		Jitter:       true,
	}
}

// Dial is the classification used for network dials: refused and
// timed-out dials are retried, anything else (bad address, auth) is not.
func Dial(err error) bool { return ncerr.IsRetryable(err) }

// Do calls fn until it succeeds, returns a permanent or unclassified
// error, runs out of attempts or ctx is done.  attempt is 1-based.
func (b *Backoff) Do(ctx context.Context, fn func(attempt int) error) error {
	delay := b.InitialDelay
	if delay <= 0 {
		delay = 200 * time.Millisecond
	}
	multiplier := b.Multiplier
	if multiplier <= 1 {
		multiplier = 2
	}
	maxDelay := b.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}

	for attempt := 1; ; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		var pe *PermanentError
		if ncerr.As(err, &pe) {
			return pe.Err
		}
		if b.Classify != nil && !b.Classify(err) {
			return err
		}
		if b.MaxAttempts > 0 && attempt >= b.MaxAttempts {
			return ncerr.Wrapf(err, "gave up after %d attempt(s)", attempt)
		}

		wait := delay
		if b.Jitter {
			wait = addJitter(delay)
		}
		if b.OnRetry != nil {
			b.OnRetry(attempt, err, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ncerr.Wrapf(ctx.Err(), "retry cancelled after %d attempt(s)", attempt)
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * multiplier)
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

func addJitter(d time.Duration) time.Duration {
	quarter := float64(d) * 0.25
	delta := (rand.Float64() * 2 * quarter) - quarter //nolint:gosec
	return time.Duration(math.Max(float64(d)+delta, float64(time.Millisecond)))
}
