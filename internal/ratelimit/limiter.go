/**
 * @description
 * Admission control for the API: fixed-window request budgets per subject and
 * operation class. The policy table is fixed at compile time and mirrors the
 * limits the service has always shipped with; it is deliberately not runtime
 * configurable.
 *
 * Budgets are scoped by the caller's network origin for every class. One
 * identity spread across many origins therefore gets a fresh budget per
 * origin, and many identities behind one NAT share a single budget.
 *
 * @dependencies
 * - context, sync, time: Standard Go libraries.
 */

package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Class names a request budget in the policy table.
type Class string

const (
	// ClassGlobal covers every API request from one source.
	ClassGlobal Class = "global"
	// ClassSignup covers account creation attempts.
	ClassSignup Class = "signup"
	// ClassAuthenticated covers authenticated read/write requests.
	ClassAuthenticated Class = "authenticated"
	// ClassTransfer covers transfer submissions.
	ClassTransfer Class = "transfer"
)

// Policy is a fixed window bound by a maximum request count.
type Policy struct {
	Window time.Duration
	Max    int
}

var policies = map[Class]Policy{
	ClassGlobal:        {Window: 15 * time.Minute, Max: 100},
	ClassSignup:        {Window: time.Hour, Max: 5},
	ClassAuthenticated: {Window: time.Minute, Max: 30},
	ClassTransfer:      {Window: time.Minute, Max: 10},
}

// PolicyFor returns the fixed policy for a class.
func PolicyFor(class Class) Policy {
	return policies[class]
}

// Result describes the outcome of a budget check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// Limiter is the admission-control contract. Allow consumes one unit of the
// (subject, class) budget; Snapshot reports the budget without consuming it.
type Limiter interface {
	Allow(ctx context.Context, class Class, subject string) (Result, error)
	Snapshot(ctx context.Context, class Class, subject string) (Result, error)
}

// MemoryLimiter implements fixed-window limiting with in-process counters.
// Budgets do not survive a restart, matching the original deployment.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[windowKey]*window
	stop    chan struct{}

	// now is swappable so tests can step through window boundaries.
	now func() time.Time
}

type windowKey struct {
	class   Class
	subject string
}

type window struct {
	count int
	reset time.Time
}

// NewMemoryLimiter creates an in-memory limiter and starts its janitor
// goroutine. Call Stop when the limiter is no longer needed.
func NewMemoryLimiter() *MemoryLimiter {
	l := &MemoryLimiter{
		windows: make(map[windowKey]*window),
		stop:    make(chan struct{}),
		now:     time.Now,
	}
	go l.evictExpired()
	return l
}

// Allow consumes one unit of the subject's budget for the class. The request
// that overruns the budget is rejected with the window's reset time; the
// counter still advances so sustained abuse never slips through on a
// stale window.
func (l *MemoryLimiter) Allow(ctx context.Context, class Class, subject string) (Result, error) {
	policy := PolicyFor(class)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	key := windowKey{class: class, subject: subject}
	w, ok := l.windows[key]
	if !ok || !now.Before(w.reset) {
		w = &window{reset: now.Add(policy.Window)}
		l.windows[key] = w
	}

	w.count++
	remaining := policy.Max - w.count
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   w.count <= policy.Max,
		Limit:     policy.Max,
		Remaining: remaining,
		Reset:     w.reset,
	}, nil
}

// Snapshot reports the subject's current budget without consuming it. An
// elapsed or absent window reports the full budget with a reset one window
// out, which is what a caller would get if it made a request now.
func (l *MemoryLimiter) Snapshot(ctx context.Context, class Class, subject string) (Result, error) {
	policy := PolicyFor(class)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	key := windowKey{class: class, subject: subject}
	w, ok := l.windows[key]
	if !ok || !now.Before(w.reset) {
		return Result{
			Allowed:   true,
			Limit:     policy.Max,
			Remaining: policy.Max,
			Reset:     now.Add(policy.Window),
		}, nil
	}

	remaining := policy.Max - w.count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   remaining > 0,
		Limit:     policy.Max,
		Remaining: remaining,
		Reset:     w.reset,
	}, nil
}

// Stop shuts down the janitor goroutine.
func (l *MemoryLimiter) Stop() {
	close(l.stop)
}

// evictExpired drops elapsed windows to keep memory bounded.
func (l *MemoryLimiter) evictExpired() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := l.now()
			l.mu.Lock()
			for key, w := range l.windows {
				if !now.Before(w.reset) {
					delete(l.windows, key)
				}
			}
			l.mu.Unlock()
		case <-l.stop:
			return
		}
	}
}
