// Package timing runs a workload under the warm-up/measurement protocol
// and records one wall-clock duration per repetition.
package timing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var (
	// ErrInvalidRepetitions indicates a repetition count below one.
	ErrInvalidRepetitions = errors.New("repetitions must be at least 1")

	// ErrWarmup wraps a failure of the unmeasured warm-up call.
	ErrWarmup = errors.New("warm-up failed")
)

// Runner executes one unit of work.
type Runner interface {
	RunOnce(ctx context.Context) error
}

// Sample is the ordered sequence of measured durations, warm-up excluded.
type Sample []time.Duration

// Clock returns the current time.
type Clock func() time.Time

type options struct {
	clock  Clock
	logger *slog.Logger
}

// Option configures Measure.
type Option func(*options)

// WithClock replaces the wall clock used to time repetitions.
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger sets the logger for progress messages.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Measure calls r.RunOnce once as an unmeasured warm-up and then reps more
// times, sequentially, timing each call. The first error from RunOnce ends
// the measurement and is returned; no partial sample is returned with it.
func Measure(ctx context.Context, r Runner, reps int, opts ...Option) (Sample, error) {
	o := options{clock: time.Now, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}

	if reps < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidRepetitions, reps)
	}

	o.logger.DebugContext(ctx, "warm-up")

	if err := r.RunOnce(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWarmup, err)
	}

	sample := make(Sample, 0, reps)

	for i := 0; i < reps; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("repetition %d: %w", i+1, err)
		}

		start := o.clock()

		if err := r.RunOnce(ctx); err != nil {
			return nil, fmt.Errorf("repetition %d: %w", i+1, err)
		}

		elapsed := o.clock().Sub(start)
		if elapsed < 0 {
			elapsed = 0
		}

		sample = append(sample, elapsed)
	}

	o.logger.DebugContext(ctx, "measurement finished", slog.Int("repetitions", reps))

	return sample, nil
}

// Total returns the sum of all durations in s.
func (s Sample) Total() time.Duration {
	var total time.Duration
	for _, d := range s {
		total += d
	}

	return total
}
