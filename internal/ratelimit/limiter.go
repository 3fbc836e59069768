// Package ratelimit implements per-client fixed-window admission control.
//
// Each operation class (summarize, tagging, auth) gets its own Limiter
// instance so a burst of tagging calls cannot starve summarization, and vice
// versa. Windows live in an in-process map guarded by a mutex, with
// opportunistic garbage collection of expired entries to keep memory bounded.
//
// Notes:
//   - State is process-local and lost on restart; this is accepted scope for
//     a single-process deployment and is pinned down by tests.
//   - The lock is held only for the map/counter operation, never across any
//     I/O, so the limiter cannot serialize the request pipeline.
package ratelimit

import (
	"sync"
	"time"
)

// Decision is the outcome of an admission check for one client key.
type Decision struct {
	// Allowed reports whether the attempt may proceed.
	Allowed bool
	// Remaining is the number of attempts left in the current window after
	// this decision (0 when denied).
	Remaining int
	// ResetSeconds is the number of seconds until the current window ends
	// and the client is admitted again. Always >= 1 for an active window.
	ResetSeconds int
}

// window tracks one client's attempts inside the current fixed window.
type window struct {
	start    time.Time
	attempts int
}

// Limiter admits up to Limit attempts per client key per fixed window.
// The zero value is not usable; construct with New. Safe for concurrent use.
type Limiter struct {
	limit  int
	period time.Duration

	mu      sync.Mutex
	windows map[string]*window
	sweepN  uint64

	// now is the clock; replaced in tests to drive window expiry.
	now func() time.Time
}

// sweepEvery is the number of lookups between opportunistic GC passes over
// expired windows.
const sweepEvery = 5000

// New constructs a Limiter allowing limit attempts per period. A limit <= 0
// is coerced to 1; a period <= 0 is coerced to one minute.
func New(limit int, period time.Duration) *Limiter {
	if limit <= 0 {
		limit = 1
	}
	if period <= 0 {
		period = time.Minute
	}
	return &Limiter{
		limit:   limit,
		period:  period,
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// SetClock replaces the limiter's clock. Intended for tests; not safe to call
// concurrently with Check/Record/Allow.
func (l *Limiter) SetClock(now func() time.Time) { l.now = now }

// Limit returns the configured attempts-per-window cap.
func (l *Limiter) Limit() int { return l.limit }

// Window returns the configured window duration.
func (l *Limiter) Window() time.Duration { return l.period }

// Check reports the admission decision for clientID without consuming quota.
func (l *Limiter) Check(clientID string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.decideLocked(clientID, false)
}

// Record consumes one attempt for clientID in the current window, starting a
// new window if none is active. It is paired with Check for split
// check-then-record call sites; prefer Allow when the two must be atomic.
func (l *Limiter) Record(clientID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.decideLocked(clientID, true)
}

// Allow atomically checks and, when admitted, records one attempt. This is
// the form the request pipeline uses: two goroutines racing on the same
// client key cannot both claim the final slot.
func (l *Limiter) Allow(clientID string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.decideLocked(clientID, true)
}

// decideLocked applies the fixed-window policy. Callers hold l.mu.
// GC runs before the lookup so an expired entry for the requested key is
// replaced rather than refreshed.
func (l *Limiter) decideLocked(clientID string, consume bool) Decision {
	now := l.now()

	l.sweepN++
	if l.sweepN >= sweepEvery {
		for k, w := range l.windows {
			if now.Sub(w.start) >= l.period {
				delete(l.windows, k)
			}
		}
		l.sweepN = 0
	}

	w, ok := l.windows[clientID]
	if !ok || now.Sub(w.start) >= l.period {
		if !consume {
			// A non-consuming check must not grow the map: report a full,
			// fresh window without opening one.
			reset := int((l.period + time.Second - 1) / time.Second)
			if reset < 1 {
				reset = 1
			}
			return Decision{Allowed: true, Remaining: l.limit, ResetSeconds: reset}
		}
		// First attempt for an unseen client, or a fresh window: always allowed.
		w = &window{start: now}
		l.windows[clientID] = w
	}

	reset := int((w.start.Add(l.period).Sub(now) + time.Second - 1) / time.Second)
	if reset < 1 {
		reset = 1
	}

	if w.attempts >= l.limit {
		return Decision{Allowed: false, Remaining: 0, ResetSeconds: reset}
	}
	if consume {
		w.attempts++
	}
	return Decision{Allowed: true, Remaining: l.limit - w.attempts, ResetSeconds: reset}
}
