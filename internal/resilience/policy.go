// Package resilience guards calls to a downstream dependency with a timeout,
// a circuit breaker, a bounded retry for reads and an optional fallback.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"

	"product-composite/internal/fault"
	"product-composite/internal/logger"
)

// BreakerSettings drive the CLOSED -> OPEN -> HALF_OPEN cycle.
type BreakerSettings struct {
	// Window is the fixed period after which the failure counters are
	// cleared while closed.
	Window time.Duration
	// FailureRate (percent) of the calls in Window that trips the breaker.
	FailureRate int
	// MinRequests in Window before FailureRate is evaluated.
	MinRequests int
	// OpenCooldown is how long the breaker stays open before letting trial calls through.
	OpenCooldown time.Duration
	// HalfOpenCalls is the number of trial calls allowed while half-open.
	// All of them must succeed to close the breaker again.
	HalfOpenCalls int
}

type Options struct {
	Name    string
	Timeout time.Duration
	Breaker BreakerSettings
	// ReadAttempts bounds ExecuteRead; 1 or less disables retries.
	ReadAttempts int
	ReadBackoff  time.Duration
	Stats        Stats
	Logger       logger.Logger
}

// Policy is shared by every request that calls the same dependency. The
// breaker counters are its only mutable state and gobreaker guards them.
type Policy struct {
	name         string
	timeout      time.Duration
	readAttempts int
	readBackoff  time.Duration
	cb           *gobreaker.CircuitBreaker[any]
	stats        Stats
	rec          *recorder
	log          logger.Logger
}

func NewPolicy(opts Options) *Policy {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	stats := opts.Stats
	if stats == nil {
		stats = NopStats{}
	}
	p := &Policy{
		name:         opts.Name,
		timeout:      opts.Timeout,
		readAttempts: opts.ReadAttempts,
		readBackoff:  opts.ReadBackoff,
		stats:        stats,
		rec:          newRecorder(stats),
		log:          log.With("dependency", opts.Name),
	}

	bs := opts.Breaker
	p.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        opts.Name,
		MaxRequests: uint32(max(bs.HalfOpenCalls, 1)),
		Interval:    bs.Window,
		Timeout:     bs.OpenCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < uint32(max(bs.MinRequests, 1)) {
				return false
			}
			return uint64(counts.TotalFailures)*100 >= uint64(bs.FailureRate)*uint64(counts.Requests)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			p.log.Warn("circuit breaker state changed", "from", from.String(), "to", to.String())
			p.rec.submit(func(ctx context.Context) { p.stats.RecordTransition(ctx, name, from.String(), to.String()) })
		},
		IsSuccessful: isSuccessful,
	})
	return p
}

// isSuccessful keeps caller mistakes from tripping the breaker: an unknown
// product or a bad id says nothing about the dependency's health.
func isSuccessful(err error) bool {
	switch fault.KindOf(err) {
	case fault.InvalidInput, fault.NotFound:
		return true
	}
	return err == nil
}

func (p *Policy) Name() string { return p.name }

// State is "closed", "half-open" or "open".
func (p *Policy) State() string { return p.cb.State().String() }

func (p *Policy) Counts() gobreaker.Counts { return p.cb.Counts() }

// Execute runs call under the dependency timeout and circuit breaker. While
// the breaker rejects calls, call is not invoked and a CircuitOpen fault is
// returned.
func Execute[T any](ctx context.Context, p *Policy, call func(context.Context) (T, error)) (T, error) {
	var zero T
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	v, err := p.cb.Execute(func() (any, error) {
		return call(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			p.record(outcomeRejected)
			return zero, &fault.Error{
				Kind:       fault.CircuitOpen,
				Dependency: p.name,
				Message:    fmt.Sprintf("circuit breaker is %s", p.State()),
				Err:        err,
			}
		}
		if isSuccessful(err) {
			p.record(outcomeIgnored)
		} else {
			p.record(outcomeFailure)
		}
		if fault.KindOf(err) == fault.Unknown && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fault.Wrap(fault.Timeout, p.name, err)
		}
		return zero, err
	}
	p.record(outcomeSuccess)
	t, _ := v.(T)
	return t, nil
}

// ExecuteRead is Execute plus a bounded retry on Timeout and Upstream faults.
// Only idempotent reads may go through it.
func ExecuteRead[T any](ctx context.Context, p *Policy, call func(context.Context) (T, error)) (T, error) {
	attempts := max(p.readAttempts, 1)
	var (
		v   T
		err error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		v, err = Execute(ctx, p, call)
		if err == nil || !retryable(err) || attempt == attempts {
			return v, err
		}
		p.log.Warn("read failed, retrying", "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return v, err
		case <-time.After(p.readBackoff * time.Duration(attempt)):
		}
	}
	return v, err
}

func retryable(err error) bool {
	switch fault.KindOf(err) {
	case fault.Timeout, fault.Upstream:
		return true
	}
	return false
}

// WithFallback replaces a CircuitOpen failure by the value of fallback. Any
// other result passes through untouched. fallback must be cheap and must not
// call remote services.
func WithFallback[T any](v T, err error, fallback func() (T, error)) (T, error) {
	if fallback != nil && fault.Is(err, fault.CircuitOpen) {
		return fallback()
	}
	return v, err
}

func (p *Policy) record(outcome string) {
	if !p.rec.submit(func(ctx context.Context) { p.stats.RecordOutcome(ctx, p.name, outcome) }) {
		p.log.Debug("stats queue full, dropping outcome", "outcome", outcome)
	}
}

// DefaultBreakerSettings trip at a 50% failure rate over at least five calls
// in a ten second window and probe again after ten seconds.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Window:        10 * time.Second,
		FailureRate:   50,
		MinRequests:   5,
		OpenCooldown:  10 * time.Second,
		HalfOpenCalls: 3,
	}
}
