package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func fastOptions(attempts int) Options {
	opts := DefaultOptions()
	opts.MaxAttempts = attempts
	opts.InitialInterval = time.Microsecond
	opts.MaxInterval = 10 * time.Microsecond
	return opts
}

func TestRetryProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("backoff never exceeds the cap", prop.ForAll(
		func(initialNs, maxNs int64, multiplier float64, attempt int) bool {
			opts := Options{
				InitialInterval: time.Duration(initialNs),
				MaxInterval:     time.Duration(maxNs),
				Multiplier:      multiplier,
			}
			backoff := Backoff(attempt, opts)
			if backoff > opts.MaxInterval {
				return false
			}
			return attempt != 1 || backoff == opts.InitialInterval
		},
		gen.Int64Range(int64(10*time.Millisecond), int64(100*time.Millisecond)),
		gen.Int64Range(int64(1*time.Second), int64(5*time.Second)),
		gen.Float64Range(1.1, 3.0),
		gen.IntRange(1, 10),
	))

	properties.Property("attempts never exceed the limit", prop.ForAll(
		func(maxAttempts int) bool {
			count := 0
			_ = Do(context.Background(), func(context.Context) error {
				count++
				return errors.New("sheet unreachable")
			}, fastOptions(maxAttempts))
			return count == maxAttempts
		},
		gen.IntRange(1, 10),
	))

	properties.Property("non-retryable errors stop the loop", prop.ForAll(
		func(failAt int) bool {
			count := 0
			opts := fastOptions(10)
			opts.Classifier = func(err error) bool { return err.Error() == "retryable" }

			err := Do(context.Background(), func(context.Context) error {
				count++
				if count == failAt {
					return errors.New("fatal")
				}
				return errors.New("retryable")
			}, opts)

			return count == failAt && err.Error() == "fatal"
		},
		gen.IntRange(1, 5),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestRetrySuccess(t *testing.T) {
	count := 0
	err := Do(context.Background(), func(context.Context) error {
		count++
		if count < 3 {
			return errors.New("not yet")
		}
		return nil
	}, fastOptions(5))

	assert.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestOnceAndZeroAttempts(t *testing.T) {
	count := 0
	fn := func(context.Context) error {
		count++
		return errors.New("down")
	}

	assert.Error(t, Do(context.Background(), fn, Once()))
	assert.Equal(t, 1, count)

	count = 0
	assert.Error(t, Do(context.Background(), fn, Options{}))
	assert.Equal(t, 1, count)
}

func TestRetryContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	opts := DefaultOptions()
	opts.MaxAttempts = 5
	opts.InitialInterval = 100 * time.Millisecond

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	err := Do(ctx, func(context.Context) error { return errors.New("waiting") }, opts)
	assert.ErrorIs(t, err, context.Canceled)
}
