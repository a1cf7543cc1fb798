package retry

import (
	"context"
	"math"
	"time"
)

// Func is an operation that can be attempted more than once.
type Func func(ctx context.Context) error

// Classifier reports whether an error is worth another attempt.
type Classifier func(error) bool

// Options configures the backoff loop.
type Options struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	Classifier      Classifier
}

// DefaultOptions suits short interactive calls against the sheet API.
func DefaultOptions() Options {
	return Options{
		MaxAttempts:     3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Multiplier:      2.0,
		Classifier: func(err error) bool {
			return true
		},
	}
}

// Once runs the operation a single time.
func Once() Options {
	opts := DefaultOptions()
	opts.MaxAttempts = 1
	return opts
}

// Do runs fn until it succeeds, returns a non-retryable error, the attempts run
// out, or ctx is done.
func Do(ctx context.Context, fn Func, opts Options) error {
	attempts := opts.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if opts.Classifier != nil && !opts.Classifier(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		timer := time.NewTimer(Backoff(attempt, opts))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}

// Backoff returns the wait after the given attempt number.
func Backoff(attempt int, opts Options) time.Duration {
	if attempt <= 1 {
		return opts.InitialInterval
	}

	interval := float64(opts.InitialInterval) * math.Pow(opts.Multiplier, float64(attempt-1))
	if interval > float64(opts.MaxInterval) {
		return opts.MaxInterval
	}
	return time.Duration(interval)
}
