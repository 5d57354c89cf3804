package testhelpers

import (
	"testing"
	"time"
)

// WaitFor polls condition until it holds or timeout expires
// Usage:
//
//	testhelpers.WaitFor(t, func() bool {
//	    return w.Stats().IsRunning
//	}, 5*time.Second)
func WaitFor(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		if condition() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("Condition not met within %v", timeout)
			return
		}
	}
}
