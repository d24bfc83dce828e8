// Package backoff runs request-producing closures with capped exponential
// retry. Retry decisions are delegated to a fatal-error predicate; metric
// emission happens here so callers log and count failures exactly once.
package backoff

import (
	"context"
	"errors"
	"time"
)

const (
	defaultBase = 250 * time.Millisecond
	defaultCap  = 8 * time.Second
)

// Metrics receives one event per retry attempt started and one latency
// sample per successful call.
type Metrics interface {
	RetryStarted(operation string)
	ObserveDuration(operation string, d time.Duration)
}

// NopMetrics discards all events.
type NopMetrics struct{}

func (NopMetrics) RetryStarted(string) {}

func (NopMetrics) ObserveDuration(string, time.Duration) {}

// Fataler is implemented by errors that must never be retried.
type Fataler interface {
	Fatal() bool
}

// IsFatal reports whether the error chain carries a fatal condition.
// Errors that do not implement Fataler are treated as retryable; network
// failures, timeouts, and unclassified statuses all fall in that bucket.
func IsFatal(err error) bool {
	var f Fataler
	if errors.As(err, &f) {
		return f.Fatal()
	}
	return false
}

// Option configures an Executor.
type Option func(*Executor)

// WithBase sets the first retry delay.
func WithBase(d time.Duration) Option {
	return func(e *Executor) { e.base = d }
}

// WithCap bounds the retry delay.
func WithCap(d time.Duration) Option {
	return func(e *Executor) { e.cap = d }
}

// WithFatal replaces the fatal-error predicate.
func WithFatal(fn func(error) bool) Option {
	return func(e *Executor) { e.fatal = fn }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// Executor retries a closure with full exponential backoff. A zero retry
// count means exactly one attempt. Executors are stateless across calls and
// safe for concurrent use.
type Executor struct {
	retries int
	base    time.Duration
	cap     time.Duration
	fatal   func(error) bool
	metrics Metrics

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an executor that allows up to retries additional attempts
// after the first.
func New(retries int, opts ...Option) *Executor {
	if retries < 0 {
		retries = 0
	}
	e := &Executor{
		retries: retries,
		base:    defaultBase,
		cap:     defaultCap,
		fatal:   IsFatal,
		metrics: NopMetrics{},
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Do runs fn until it succeeds, fails fatally, exhausts the retry budget,
// or the context is done. The error from the last attempt is returned
// unchanged so callers can classify it. When the context expires while
// waiting between attempts, the context error is returned instead.
func (e *Executor) Do(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= e.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := time.Now()
		err := fn(ctx)
		if err == nil {
			e.metrics.ObserveDuration(operation, time.Since(start))
			return nil
		}
		lastErr = err

		if e.fatal(err) || attempt == e.retries {
			return lastErr
		}

		if serr := e.sleep(ctx, e.delay(attempt)); serr != nil {
			// Caller context expired between attempts; abandon the retry
			// budget and surface the context error so the caller maps a
			// deadline to its timeout classification.
			return serr
		}

		// Counted when the retry attempt starts, so a fatal first attempt
		// emits nothing.
		e.metrics.RetryStarted(operation)
	}

	return lastErr
}

// delay returns the wait before retry attempt n (0-based): base·2^n,
// bounded by the cap.
func (e *Executor) delay(attempt int) time.Duration {
	d := e.base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= e.cap {
			return e.cap
		}
	}
	if d > e.cap {
		return e.cap
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
