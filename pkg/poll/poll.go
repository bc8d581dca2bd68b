// Package poll re-reads observable state until a predicate holds, bounded by a wait budget.
package poll

import (
	"context"
	"errors"
	"time"
	"voicechanger/pkg/apperr"

	backoff "github.com/cenkalti/backoff/v4"
)

const (
	DefaultInterval    = 100 * time.Millisecond
	DefaultMaxInterval = time.Second
	DefaultMultiplier  = 1.5
	DefaultMaxWait     = time.Minute
)

var errNotReady = errors.New("condition not met")

type Options struct {
	// Name identifies the wait in errors.
	Name        string
	Interval    time.Duration
	MaxInterval time.Duration
	Multiplier  float64
	// MaxWait bounds the whole wait. Zero means DefaultMaxWait; there is no unbounded mode.
	MaxWait time.Duration
	// Notify, when set, is called after every unsuccessful read with the read count and the next delay.
	Notify func(reads int, next time.Duration)
}

func (o Options) withDefaults() Options {
	if o.Name == "" {
		o.Name = "poll.Until"
	}

	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}

	if o.MaxInterval < o.Interval {
		o.MaxInterval = max(DefaultMaxInterval, o.Interval)
	}

	if o.Multiplier < 1 {
		o.Multiplier = DefaultMultiplier
	}

	if o.MaxWait <= 0 {
		o.MaxWait = DefaultMaxWait
	}

	return o
}

func (o Options) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.Interval
	b.MaxInterval = o.MaxInterval
	b.Multiplier = o.Multiplier
	b.RandomizationFactor = 0
	b.MaxElapsedTime = o.MaxWait

	return b
}

// Until calls read until ready accepts its result and returns that result.
// Reads never overlap and the first successful read returns immediately.
// An error from read stops the wait and is returned as is.
// When the budget runs out the error carries apperr.CodeTimeout;
// when ctx ends it carries apperr.CodeCancelled.
func Until[T any](ctx context.Context, read func(context.Context) (T, error), ready func(T) bool, opts Options) (T, error) {
	opts = opts.withDefaults()

	var zero T
	reads := 0
	started := time.Now()

	operation := func() (T, error) {
		if err := ctx.Err(); err != nil {
			return zero, backoff.Permanent(err)
		}

		reads++

		value, err := read(ctx)
		if err != nil {
			return zero, backoff.Permanent(err)
		}

		if !ready(value) {
			return zero, errNotReady
		}

		return value, nil
	}

	notify := func(_ error, next time.Duration) {
		if opts.Notify != nil {
			opts.Notify(reads, next)
		}
	}

	value, err := backoff.RetryNotifyWithData(operation, backoff.WithContext(opts.backOff(), ctx), notify)
	if err == nil {
		return value, nil
	}

	metadata := map[string]any{
		apperr.MetaWaited: time.Since(started).String(),
		"reads":           reads,
	}

	switch {
	case errors.Is(err, errNotReady):
		metadata[apperr.MetaReason] = "wait_budget_exhausted"

		return zero, apperr.Wrap(opts.Name, apperr.CodeTimeout, err, metadata)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		if ctx.Err() != nil {
			metadata[apperr.MetaReason] = "wait_cancelled"

			return zero, apperr.Wrap(opts.Name, apperr.CodeCancelled, err, metadata)
		}
	}

	return zero, err
}
