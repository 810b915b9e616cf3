package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/druidalabs/be/internal/domain"
)

func TestCreateAccount_InitialState(t *testing.T) {
	repo := NewMemoryRepository()

	account, err := repo.CreateAccount(context.Background(), "alice", "alice@x.io")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if account.Balance != domain.InitialBalance {
		t.Fatalf("expected initial balance %d, got %d", domain.InitialBalance, account.Balance)
	}
	if !account.ExpiresAt.Equal(account.CreatedAt.Add(domain.AccountValidity)) {
		t.Fatalf("expected validity deadline %v after creation, got %v", domain.AccountValidity, account.ExpiresAt.Sub(account.CreatedAt))
	}
}

func TestCreateAccount_DuplicateIdentity(t *testing.T) {
	cases := []struct {
		name           string
		handle, contact string
	}{
		{name: "same handle", handle: "alice", contact: "other@x.io"},
		{name: "same contact", handle: "other", contact: "alice@x.io"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := NewMemoryRepository()
			if _, err := repo.CreateAccount(context.Background(), "alice", "alice@x.io"); err != nil {
				t.Fatalf("first create failed: %v", err)
			}
			if _, err := repo.CreateAccount(context.Background(), tc.handle, tc.contact); !errors.Is(err, ErrDuplicateIdentity) {
				t.Fatalf("expected ErrDuplicateIdentity, got %v", err)
			}
		})
	}
}

func TestDebitAccount_RejectsOverdraft(t *testing.T) {
	repo := NewMemoryRepository()
	account, err := repo.CreateAccount(context.Background(), "alice", "alice@x.io")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := repo.DebitAccount(context.Background(), account.ID, domain.InitialBalance+1); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	current, err := repo.FindAccountByID(context.Background(), account.ID)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if current.Balance != domain.InitialBalance {
		t.Fatalf("expected balance unchanged at %d, got %d", domain.InitialBalance, current.Balance)
	}
}

func TestDebitAccount_ConcurrentNoLostUpdate(t *testing.T) {
	repo := NewMemoryRepository()
	account, err := repo.CreateAccount(context.Background(), "alice", "alice@x.io")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	const (
		workers = 10
		amount  = 300_000 // floor(1,000,000 / 300,000) = 3 can succeed
	)

	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.DebitAccount(context.Background(), account.ID, amount)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes, rejections int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrInsufficientFunds):
			rejections++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if successes != 3 {
		t.Fatalf("expected exactly 3 successful debits, got %d", successes)
	}
	if rejections != workers-3 {
		t.Fatalf("expected %d rejections, got %d", workers-3, rejections)
	}

	current, err := repo.FindAccountByID(context.Background(), account.ID)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if want := domain.InitialBalance - 3*amount; current.Balance != want {
		t.Fatalf("expected final balance %d, got %d", want, current.Balance)
	}
}

func TestTouchActivity_MissingAccountIsNoOp(t *testing.T) {
	repo := NewMemoryRepository()
	if err := repo.TouchActivity(context.Background(), uuid.New()); err != nil {
		t.Fatalf("expected nil error for missing account, got %v", err)
	}
}

func TestCompleteTransaction_Idempotent(t *testing.T) {
	repo := NewMemoryRepository()
	account, err := repo.CreateAccount(context.Background(), "alice", "alice@x.io")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	tx := &domain.Transaction{
		ID:        uuid.New(),
		AccountID: account.ID,
		Amount:    100,
		ToAddress: "bc1qxy2kgdygjrsqtzq2n0yrf2493p83kkfjhx0wlh",
		Status:    domain.StatusPending,
	}
	if err := repo.CreateTransaction(context.Background(), tx); err != nil {
		t.Fatalf("create transaction failed: %v", err)
	}

	if err := repo.CompleteTransaction(context.Background(), tx.ID); err != nil {
		t.Fatalf("first complete failed: %v", err)
	}
	if err := repo.CompleteTransaction(context.Background(), tx.ID); err != nil {
		t.Fatalf("second complete should be a no-op, got %v", err)
	}

	current, err := repo.FindTransactionByID(context.Background(), tx.ID)
	if err != nil {
		t.Fatalf("find transaction failed: %v", err)
	}
	if current.Status != domain.StatusCompleted {
		t.Fatalf("expected status %q, got %q", domain.StatusCompleted, current.Status)
	}
}

func TestCompleteTransaction_UnknownID(t *testing.T) {
	repo := NewMemoryRepository()
	if err := repo.CompleteTransaction(context.Background(), uuid.New()); !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("expected ErrTransactionNotFound, got %v", err)
	}
}

func TestFindAccountByID_ReturnsSnapshot(t *testing.T) {
	repo := NewMemoryRepository()
	account, err := repo.CreateAccount(context.Background(), "alice", "alice@x.io")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	snapshot, err := repo.FindAccountByID(context.Background(), account.ID)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	snapshot.Balance = 0

	current, err := repo.FindAccountByID(context.Background(), account.ID)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if current.Balance != domain.InitialBalance {
		t.Fatal("mutating a returned snapshot must not affect the stored account")
	}
}
