package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/druidalabs/be/internal/domain"
	"github.com/druidalabs/be/internal/ratelimit"
	"github.com/druidalabs/be/internal/store"
	"github.com/druidalabs/be/pkg/rabbitmq"
)

// newTestService wires a service against the in-memory store with a fast
// settlement delay so the suite does not sleep for the production interval.
func newTestService(t *testing.T, delay time.Duration) (*Service, *store.MemoryRepository) {
	t.Helper()

	repo := store.NewMemoryRepository()
	limiter := ratelimit.NewMemoryLimiter()
	settler := NewSettler(repo, &rabbitmq.NopProducer{}, delay)
	t.Cleanup(func() {
		settler.Stop()
		limiter.Stop()
	})

	return NewService(repo, settler, limiter, &rabbitmq.NopProducer{}), repo
}

// waitForStatus polls the ledger until the transaction reaches the wanted
// status or the deadline passes.
func waitForStatus(t *testing.T, repo store.Repository, tx *domain.Transaction, want string, deadline time.Duration) *domain.Transaction {
	t.Helper()

	stop := time.Now().Add(deadline)
	for time.Now().Before(stop) {
		current, err := repo.FindTransactionByID(context.Background(), tx.ID)
		if err != nil {
			t.Fatalf("find transaction failed: %v", err)
		}
		if current.Status == want {
			return current
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("transaction %s did not reach status %q within %v", tx.ID, want, deadline)
	return nil
}

func TestSubmitTransfer_EndToEnd(t *testing.T) {
	service, repo := newTestService(t, 20*time.Millisecond)

	account, err := service.Signup(context.Background(), "alice", "alice@x.io")
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	if account.Balance != 1_000_000 {
		t.Fatalf("expected initial balance 1000000, got %d", account.Balance)
	}

	tx, err := service.SubmitTransfer(context.Background(), account, 100,
		"bc1qxy2kgdygjrsqtzq2n0yrf2493p83kkfjhx0wlh", "test")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if tx.Status != domain.StatusPending {
		t.Fatalf("expected pending status on submission, got %q", tx.Status)
	}

	// The debit lands immediately, before completion.
	current, err := repo.FindAccountByID(context.Background(), account.ID)
	if err != nil {
		t.Fatalf("find account failed: %v", err)
	}
	if current.Balance != 999_900 {
		t.Fatalf("expected balance 999900 after submission, got %d", current.Balance)
	}

	waitForStatus(t, repo, tx, domain.StatusCompleted, 2*time.Second)

	// Completion is a ledger transition only; the balance does not move again.
	current, err = repo.FindAccountByID(context.Background(), account.ID)
	if err != nil {
		t.Fatalf("find account failed: %v", err)
	}
	if current.Balance != 999_900 {
		t.Fatalf("expected balance unchanged at 999900 after completion, got %d", current.Balance)
	}
}

func TestSubmitTransfer_InsufficientBalance(t *testing.T) {
	service, repo := newTestService(t, time.Millisecond)

	account, err := service.Signup(context.Background(), "alice", "alice@x.io")
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}

	_, err = service.SubmitTransfer(context.Background(), account, domain.InitialBalance+1,
		"bc1qxy2kgdygjrsqtzq2n0yrf2493p83kkfjhx0wlh", "")
	var insufficient *InsufficientBalanceError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientBalanceError, got %v", err)
	}
	if insufficient.Available != domain.InitialBalance {
		t.Fatalf("expected available %d in error, got %d", domain.InitialBalance, insufficient.Available)
	}
	if !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatal("expected the error to unwrap to store.ErrInsufficientFunds")
	}

	current, err := repo.FindAccountByID(context.Background(), account.ID)
	if err != nil {
		t.Fatalf("find account failed: %v", err)
	}
	if current.Balance != domain.InitialBalance {
		t.Fatalf("expected balance untouched, got %d", current.Balance)
	}
}

func TestSubmitTransfer_ConcurrentNoLostUpdate(t *testing.T) {
	service, repo := newTestService(t, time.Millisecond)

	account, err := service.Signup(context.Background(), "alice", "alice@x.io")
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}

	const (
		workers = 12
		amount  = 400_000 // floor(1,000,000 / 400,000) = 2 can succeed
	)

	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.SubmitTransfer(context.Background(), account, amount,
				"bc1qxy2kgdygjrsqtzq2n0yrf2493p83kkfjhx0wlh", "")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, store.ErrInsufficientFunds):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if successes != 2 {
		t.Fatalf("expected exactly 2 successful transfers, got %d", successes)
	}

	current, err := repo.FindAccountByID(context.Background(), account.ID)
	if err != nil {
		t.Fatalf("find account failed: %v", err)
	}
	if want := int64(1_000_000 - 2*amount); current.Balance != want {
		t.Fatalf("expected final balance %d, got %d", want, current.Balance)
	}
}

func TestSignup_DuplicateIdentity(t *testing.T) {
	service, _ := newTestService(t, time.Millisecond)

	if _, err := service.Signup(context.Background(), "alice", "alice@x.io"); err != nil {
		t.Fatalf("first signup failed: %v", err)
	}
	if _, err := service.Signup(context.Background(), "alice", "second@x.io"); !errors.Is(err, store.ErrDuplicateIdentity) {
		t.Fatalf("expected ErrDuplicateIdentity, got %v", err)
	}
}

func TestStatus_Snapshot(t *testing.T) {
	service, _ := newTestService(t, time.Millisecond)

	account, err := service.Signup(context.Background(), "alice", "alice@x.io")
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}

	snapshot, err := service.Status(context.Background(), account, "203.0.113.7")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !snapshot.TokenValid {
		t.Fatal("a fresh account should report a valid token window")
	}
	if !snapshot.ExpiresAt.Equal(account.ExpiresAt) {
		t.Fatalf("expected deadline %v, got %v", account.ExpiresAt, snapshot.ExpiresAt)
	}
	policy := ratelimit.PolicyFor(ratelimit.ClassAuthenticated)
	if snapshot.RateLimit.Limit != policy.Max {
		t.Fatalf("expected limit %d, got %d", policy.Max, snapshot.RateLimit.Limit)
	}
	if snapshot.RateLimit.Remaining != policy.Max {
		t.Fatalf("status must not consume the budget; remaining = %d", snapshot.RateLimit.Remaining)
	}
}

func TestTransactionStatus_OwnershipEnforced(t *testing.T) {
	service, _ := newTestService(t, time.Millisecond)

	alice, err := service.Signup(context.Background(), "alice", "alice@x.io")
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	bob, err := service.Signup(context.Background(), "bob", "bob@x.io")
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}

	tx, err := service.SubmitTransfer(context.Background(), alice, 100,
		"bc1qxy2kgdygjrsqtzq2n0yrf2493p83kkfjhx0wlh", "")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	if _, err := service.TransactionStatus(context.Background(), alice, tx.ID); err != nil {
		t.Fatalf("owner lookup failed: %v", err)
	}
	if _, err := service.TransactionStatus(context.Background(), bob, tx.ID); !errors.Is(err, store.ErrTransactionNotFound) {
		t.Fatalf("expected not-found for foreign transaction, got %v", err)
	}
}
