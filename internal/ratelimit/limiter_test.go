package ratelimit

import (
	"context"
	"testing"
	"time"
)

// newTestLimiter returns a limiter with a controllable clock and no janitor
// goroutine dependency on real time.
func newTestLimiter(start time.Time) (*MemoryLimiter, *time.Time) {
	now := start
	l := NewMemoryLimiter()
	l.now = func() time.Time { return now }
	return l, &now
}

func TestAllow_BudgetExhaustion(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l, _ := newTestLimiter(start)
	defer l.Stop()

	policy := PolicyFor(ClassSignup)
	if policy.Max != 5 || policy.Window != time.Hour {
		t.Fatalf("unexpected signup policy: %+v", policy)
	}

	for i := 1; i <= policy.Max; i++ {
		result, err := l.Allow(context.Background(), ClassSignup, "203.0.113.7")
		if err != nil {
			t.Fatalf("allow failed: %v", err)
		}
		if !result.Allowed {
			t.Fatalf("request %d should be within budget", i)
		}
		if result.Remaining != policy.Max-i {
			t.Fatalf("request %d: expected remaining %d, got %d", i, policy.Max-i, result.Remaining)
		}
	}

	result, err := l.Allow(context.Background(), ClassSignup, "203.0.113.7")
	if err != nil {
		t.Fatalf("allow failed: %v", err)
	}
	if result.Allowed {
		t.Fatal("sixth request inside the window should be rejected")
	}
	if !result.Reset.Equal(start.Add(time.Hour)) {
		t.Fatalf("expected reset at %v, got %v", start.Add(time.Hour), result.Reset)
	}
}

func TestAllow_WindowReset(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l, now := newTestLimiter(start)
	defer l.Stop()

	for i := 0; i < 6; i++ {
		l.Allow(context.Background(), ClassSignup, "203.0.113.7")
	}

	// After the window elapses, the counter starts fresh.
	*now = start.Add(time.Hour)
	result, err := l.Allow(context.Background(), ClassSignup, "203.0.113.7")
	if err != nil {
		t.Fatalf("allow failed: %v", err)
	}
	if !result.Allowed {
		t.Fatal("request after window elapse should be allowed")
	}
	if result.Remaining != PolicyFor(ClassSignup).Max-1 {
		t.Fatalf("expected fresh counter, got remaining %d", result.Remaining)
	}
	if !result.Reset.Equal(start.Add(2 * time.Hour)) {
		t.Fatalf("expected new reset at %v, got %v", start.Add(2*time.Hour), result.Reset)
	}
}

func TestAllow_SubjectsAreIndependent(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l, _ := newTestLimiter(start)
	defer l.Stop()

	for i := 0; i < 6; i++ {
		l.Allow(context.Background(), ClassSignup, "203.0.113.7")
	}

	result, err := l.Allow(context.Background(), ClassSignup, "198.51.100.9")
	if err != nil {
		t.Fatalf("allow failed: %v", err)
	}
	if !result.Allowed {
		t.Fatal("a different subject must have its own budget")
	}
}

func TestAllow_ClassesAreIndependent(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l, _ := newTestLimiter(start)
	defer l.Stop()

	for i := 0; i < 6; i++ {
		l.Allow(context.Background(), ClassSignup, "203.0.113.7")
	}

	result, err := l.Allow(context.Background(), ClassTransfer, "203.0.113.7")
	if err != nil {
		t.Fatalf("allow failed: %v", err)
	}
	if !result.Allowed {
		t.Fatal("exhausting one class must not drain another")
	}
}

func TestSnapshot_DoesNotConsume(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l, _ := newTestLimiter(start)
	defer l.Stop()

	l.Allow(context.Background(), ClassAuthenticated, "203.0.113.7")

	for i := 0; i < 3; i++ {
		snap, err := l.Snapshot(context.Background(), ClassAuthenticated, "203.0.113.7")
		if err != nil {
			t.Fatalf("snapshot failed: %v", err)
		}
		if want := PolicyFor(ClassAuthenticated).Max - 1; snap.Remaining != want {
			t.Fatalf("expected remaining %d, got %d", want, snap.Remaining)
		}
	}
}

func TestSnapshot_FreshSubject(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l, _ := newTestLimiter(start)
	defer l.Stop()

	snap, err := l.Snapshot(context.Background(), ClassAuthenticated, "203.0.113.7")
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	policy := PolicyFor(ClassAuthenticated)
	if snap.Remaining != policy.Max || !snap.Allowed {
		t.Fatalf("expected full budget for fresh subject, got %+v", snap)
	}
	if !snap.Reset.Equal(start.Add(policy.Window)) {
		t.Fatalf("expected descriptive reset one window out, got %v", snap.Reset)
	}
}
