package testhelpers

import (
	"sync"
	"time"
)

// ProgressCall is one observed callback invocation
type ProgressCall struct {
	Current int
	Total   int
}

// ProgressScript is a progress callback that answers from a scripted list of
// responses and records every call. When the script runs out it keeps
// answering with the last response (true for an empty script).
type ProgressScript struct {
	mu        sync.Mutex
	responses []bool
	calls     []ProgressCall
}

// NewProgressScript creates a script answering responses in order
func NewProgressScript(responses ...bool) *ProgressScript {
	return &ProgressScript{responses: responses}
}

// CancelAfter answers true n times, then false
func CancelAfter(n int) *ProgressScript {
	responses := make([]bool, n+1)
	for i := 0; i < n; i++ {
		responses[i] = true
	}
	return NewProgressScript(responses...)
}

// Func is the callback to hand to the engine
func (s *ProgressScript) Func(current, total int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, ProgressCall{Current: current, Total: total})
	switch {
	case len(s.responses) == 0:
		return true
	case len(s.calls) <= len(s.responses):
		return s.responses[len(s.calls)-1]
	default:
		return s.responses[len(s.responses)-1]
	}
}

// Calls returns a copy of the recorded calls
func (s *ProgressScript) Calls() []ProgressCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ProgressCall, len(s.calls))
	copy(out, s.calls)
	return out
}

// FakeClock is a manually advanced clock for throttle tests
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock starts at a fixed instant
func NewFakeClock() *FakeClock {
	return &FakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// Now returns the current fake time
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Add moves the clock forward
func (c *FakeClock) Add(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// TickingClock returns a clock function that advances by step on every read,
// so every throttle check sees the window elapsed.
func TickingClock(step time.Duration) func() time.Time {
	c := NewFakeClock()
	return func() time.Time {
		c.Add(step)
		return c.Now()
	}
}
