// Package retry runs an operation under a bounded, linearly increasing
// backoff, retrying only the errors a caller classifies as retryable.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy bounds a retry loop.
type Policy struct {
	// MaxAttempts counts the first attempt.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy allows 3 attempts with 2s then 4s between them.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: 2 * time.Second, MaxDelay: 10 * time.Second}
}

// Delay is the wait before retry k (k >= 1): min(BaseDelay*k, MaxDelay).
func (p Policy) Delay(k int) time.Duration {
	if k < 1 {
		return 0
	}
	d := p.BaseDelay * time.Duration(k)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// State is the controller state after an attempt.
type State int

const (
	// StateSuccess: the attempt returned nil.
	StateSuccess State = iota
	// StateRetrying: retryable failure, another attempt follows after Wait.
	StateRetrying
	// StateFailed: non-retryable failure.
	StateFailed
	// StateExhausted: retryable failure on the last permitted attempt.
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateSuccess:
		return "success"
	case StateRetrying:
		return "retrying"
	case StateFailed:
		return "failed"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// AttemptInfo describes one finished attempt.
type AttemptInfo struct {
	Attempt int // 1-based
	Err     error
	Wait    time.Duration // delay before the next attempt, if any
	State   State
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Observer is notified after every attempt.
type Observer func(AttemptInfo)

// ExhaustedError is returned when every permitted attempt failed with a
// retryable error. It unwraps to the last error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Option configures a Controller.
type Option func(*Controller)

// WithSleeper replaces the timer-based wait.
func WithSleeper(s Sleeper) Option {
	return func(c *Controller) {
		if s != nil {
			c.sleep = s
		}
	}
}

// WithObserver registers an attempt observer.
func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observe = o }
}

// Controller is safe for concurrent use; it holds no per-call state.
type Controller struct {
	policy    Policy
	retryable func(error) bool
	sleep     Sleeper
	observe   Observer
}

// New builds a Controller. retryable decides which errors earn another attempt.
func New(policy Policy, retryable func(error) bool, opts ...Option) *Controller {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if retryable == nil {
		retryable = func(error) bool { return false }
	}
	c := &Controller{policy: policy, retryable: retryable, sleep: timerSleep}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Policy returns the controller's policy.
func (c *Controller) Policy() Policy { return c.policy }

// Do runs fn until it succeeds, fails with a non-retryable error, or the
// attempt budget is spent.
func (c *Controller) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		switch {
		case err == nil:
			c.notify(AttemptInfo{Attempt: attempt, State: StateSuccess})
			return nil
		case !c.retryable(err):
			c.notify(AttemptInfo{Attempt: attempt, Err: err, State: StateFailed})
			return err
		case attempt >= c.policy.MaxAttempts:
			c.notify(AttemptInfo{Attempt: attempt, Err: err, State: StateExhausted})
			return &ExhaustedError{Attempts: attempt, Err: err}
		}

		wait := c.policy.Delay(attempt)
		c.notify(AttemptInfo{Attempt: attempt, Err: err, Wait: wait, State: StateRetrying})
		if serr := c.sleep(ctx, wait); serr != nil {
			return serr
		}
	}
}

func (c *Controller) notify(info AttemptInfo) {
	if c.observe != nil {
		c.observe(info)
	}
}

func timerSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
