// Package ratelimit provides sliding-window call admission for upstream endpoints
// with a fixed call budget.
package ratelimit

import (
	"sync"
	"time"
)

// Default budget of the market-data endpoint.
const (
	DefaultMaxCalls = 10
	DefaultWindow   = 60 * time.Second
)

// Window admits at most maxCalls within any trailing window. It never blocks or
// fails: callers decide whether to wait, skip or give up.
type Window struct {
	mu       sync.Mutex
	maxCalls int
	window   time.Duration
	calls    []time.Time
	now      func() time.Time
}

// New creates a limiter admitting maxCalls per window.
func New(maxCalls int, window time.Duration) *Window {
	return &Window{
		maxCalls: maxCalls,
		window:   window,
		now:      time.Now,
	}
}

// Default creates a limiter with the market-data budget.
func Default() *Window {
	return New(DefaultMaxCalls, DefaultWindow)
}

// WithClock replaces the time source and returns the limiter.
func (w *Window) WithClock(now func() time.Time) *Window {
	w.now = now
	return w
}

// CanMakeCall reports whether a call would currently be admitted.
func (w *Window) CanMakeCall() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(w.now())
	return len(w.calls) < w.maxCalls
}

// RecordCall registers a call made now. Pair it with a successful CanMakeCall, or
// use TryAcquire when several goroutines share the limiter.
func (w *Window) RecordCall() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, w.now())
}

// TryAcquire admits and records a call in one step.
func (w *Window) TryAcquire() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	w.prune(now)
	if len(w.calls) >= w.maxCalls {
		return false
	}
	w.calls = append(w.calls, now)
	return true
}

// RemainingCalls returns how many calls the current window still admits.
func (w *Window) RemainingCalls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(w.now())
	return max(0, w.maxCalls-len(w.calls))
}

// TimeUntilReset returns how long until the oldest live call expires, or zero when
// no calls are live.
func (w *Window) TimeUntilReset() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	w.prune(now)
	if len(w.calls) == 0 {
		return 0
	}
	return max(0, w.window-now.Sub(w.calls[0]))
}

// prune drops calls outside the window. Calls are kept in insertion order.
func (w *Window) prune(now time.Time) {
	live := 0
	for live < len(w.calls) && now.Sub(w.calls[live]) >= w.window {
		live++
	}
	if live > 0 {
		w.calls = append(w.calls[:0], w.calls[live:]...)
	}
}
