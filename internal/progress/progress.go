// Package progress throttles progress notifications and carries cooperative
// cancellation for long corpus operations.
//
// A Func receives (current, total) and returns false to ask the driving
// operation to stop before the next unvisited record. Cancellation is
// cooperative and non-transactional: work already committed stays committed.
package progress

import (
	"context"
	"time"
)

// DefaultInterval is the minimum wall-clock gap between throttled notifications
const DefaultInterval = 100 * time.Millisecond

// Func is a progress callback; returning false requests cancellation
type Func func(current, total int) bool

// Reporter wraps a Func for one operation. It is not safe for concurrent use;
// each engine call creates its own.
type Reporter struct {
	fn       Func
	ctx      context.Context
	interval time.Duration
	now      func() time.Time

	last      time.Time
	current   int
	total     int
	cancelled bool
}

// Option configures a Reporter
type Option func(*Reporter)

// WithInterval overrides the throttle window
func WithInterval(d time.Duration) Option {
	return func(r *Reporter) {
		if d >= 0 {
			r.interval = d
		}
	}
}

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(r *Reporter) {
		if now != nil {
			r.now = now
		}
	}
}

// WithContext makes a done context cancel at the next checkpoint, even
// inside the throttle window
func WithContext(ctx context.Context) Option {
	return func(r *Reporter) {
		r.ctx = ctx
	}
}

// New creates a reporter for fn. A nil fn never cancels.
func New(fn Func, opts ...Option) *Reporter {
	r := &Reporter{
		fn:       fn,
		interval: DefaultInterval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start records the start time and notifies (0, total) unconditionally
func (r *Reporter) Start(total int) bool {
	if total < 0 {
		total = 0
	}
	r.total = total
	r.current = 0
	r.last = r.now()
	return r.invoke()
}

// Advance moves one step forward
func (r *Reporter) Advance() bool {
	return r.AdvanceTo(r.current + 1)
}

// AdvanceTo moves to n. current never decreases and never passes total.
// The callback fires only when the throttle window has elapsed; inside the
// window the call reports "continue" unless cancellation is already known.
func (r *Reporter) AdvanceTo(n int) bool {
	if n > r.total {
		n = r.total
	}
	if n > r.current {
		r.current = n
	}

	if r.cancelled {
		return false
	}
	if r.ctx != nil && r.ctx.Err() != nil {
		r.cancelled = true
		return false
	}

	now := r.now()
	if now.Sub(r.last) < r.interval {
		return true
	}
	r.last = now
	return r.invoke()
}

// Finish notifies (total, total), bypassing the throttle
func (r *Reporter) Finish() {
	r.current = r.total
	if r.fn != nil {
		r.fn(r.total, r.total)
	}
}

// Cancelled reports whether the callback or context asked to stop
func (r *Reporter) Cancelled() bool {
	return r.cancelled
}

// Current returns the last recorded position
func (r *Reporter) Current() int {
	return r.current
}

// Total returns the total passed to Start
func (r *Reporter) Total() int {
	return r.total
}

func (r *Reporter) invoke() bool {
	ok := true
	if r.fn != nil {
		ok = r.fn(r.current, r.total)
	}
	if r.ctx != nil && r.ctx.Err() != nil {
		ok = false
	}
	if !ok {
		r.cancelled = true
	}
	return ok
}

// FromContext turns a context into a cancellation token wrapped around fn.
// fn may be nil.
func FromContext(ctx context.Context, fn Func) Func {
	return func(current, total int) bool {
		if ctx.Err() != nil {
			return false
		}
		if fn == nil {
			return true
		}
		return fn(current, total)
	}
}
