// Package testutil holds helpers shared by package tests.
package testutil

import (
	"runtime"
	"testing"
	"time"
)

// Goroutines returns the current goroutine count, to be used as the
// baseline for AssertNoGoroutineLeaks.
func Goroutines() int {
	return runtime.NumGoroutine()
}

// AssertNoGoroutineLeaks waits for the goroutine count to fall back to
// within margin of baseline. On failure it logs every live stack.
func AssertNoGoroutineLeaks(t *testing.T, baseline int, margin int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if runtime.NumGoroutine() <= baseline+margin {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	buf := make([]byte, 1<<20)
	n := runtime.Stack(buf, true)
	t.Errorf("goroutine leak: baseline=%d, current=%d, margin=%d\n%s",
		baseline, runtime.NumGoroutine(), margin, buf[:n])
}
