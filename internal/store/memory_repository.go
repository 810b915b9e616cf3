/**
 * @description
 * In-memory implementation of the store.Repository interface. This is the
 * default backend when no DATABASE_URL is configured and the backend used by
 * the test suite. State is held in lock-guarded tables keyed by identity;
 * balance mutations take the account's own lock so the balance check and the
 * decrement are one atomic step.
 *
 * @notes
 * - Nothing here survives a process restart. Pending transactions past their
 *   completion horizon after a crash are left for reconciliation.
 */

package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/druidalabs/be/internal/domain"
)

// MemoryRepository keeps accounts and ledger entries in process memory.
type MemoryRepository struct {
	mu           sync.RWMutex
	accounts     map[uuid.UUID]*accountEntry
	byHandle     map[string]uuid.UUID
	byContact    map[string]uuid.UUID
	transactions map[uuid.UUID]*transactionEntry

	// now is swappable so tests can pin the clock.
	now func() time.Time
}

// accountEntry pairs an account record with its own mutex so balance updates
// on one account never contend with another.
type accountEntry struct {
	mu      sync.Mutex
	account domain.Account
}

type transactionEntry struct {
	mu sync.Mutex
	tx domain.Transaction
}

// NewMemoryRepository creates an empty in-memory store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		accounts:     make(map[uuid.UUID]*accountEntry),
		byHandle:     make(map[string]uuid.UUID),
		byContact:    make(map[string]uuid.UUID),
		transactions: make(map[uuid.UUID]*transactionEntry),
		now:          time.Now,
	}
}

// CreateAccount provisions a new account with the initial grant. The handle
// and contact indexes are checked and claimed under the table lock, so two
// concurrent signups with the same handle cannot both succeed.
func (r *MemoryRepository) CreateAccount(ctx context.Context, handle, contact string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byHandle[handle]; taken {
		return nil, ErrDuplicateIdentity
	}
	if _, taken := r.byContact[contact]; taken {
		return nil, ErrDuplicateIdentity
	}

	now := r.now().UTC()
	entry := &accountEntry{
		account: domain.Account{
			ID:         uuid.New(),
			Handle:     handle,
			Contact:    contact,
			Balance:    domain.InitialBalance,
			ExpiresAt:  now.Add(domain.AccountValidity),
			LastUsedAt: now,
			CreatedAt:  now,
		},
	}
	r.accounts[entry.account.ID] = entry
	r.byHandle[handle] = entry.account.ID
	r.byContact[contact] = entry.account.ID

	snapshot := entry.account
	return &snapshot, nil
}

// FindAccountByID returns a snapshot of the account, never a live reference.
func (r *MemoryRepository) FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	entry, err := r.lookupAccount(accountID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	snapshot := entry.account
	entry.mu.Unlock()
	return &snapshot, nil
}

// TouchActivity updates the last-used timestamp. Missing accounts are a no-op.
func (r *MemoryRepository) TouchActivity(ctx context.Context, accountID uuid.UUID) error {
	entry, err := r.lookupAccount(accountID)
	if err != nil {
		return nil
	}

	entry.mu.Lock()
	entry.account.LastUsedAt = r.now().UTC()
	entry.mu.Unlock()
	return nil
}

// DebitAccount atomically checks and decrements the balance under the
// account's own lock. A debit that would drive the balance negative is
// rejected and leaves the balance unchanged.
func (r *MemoryRepository) DebitAccount(ctx context.Context, accountID uuid.UUID, amount int64) (*domain.Account, error) {
	entry, err := r.lookupAccount(accountID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.account.Balance < amount {
		return nil, ErrInsufficientFunds
	}
	entry.account.Balance -= amount

	snapshot := entry.account
	return &snapshot, nil
}

// CreateTransaction records a new pending ledger entry.
func (r *MemoryRepository) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.transactions[tx.ID] = &transactionEntry{tx: *tx}
	return nil
}

// CompleteTransaction transitions pending -> completed. Re-completing an
// already-completed transaction is a no-op.
func (r *MemoryRepository) CompleteTransaction(ctx context.Context, transactionID uuid.UUID) error {
	r.mu.RLock()
	entry, ok := r.transactions[transactionID]
	r.mu.RUnlock()
	if !ok {
		return ErrTransactionNotFound
	}

	entry.mu.Lock()
	entry.tx.Status = domain.StatusCompleted
	entry.mu.Unlock()
	return nil
}

// FindTransactionByID returns a snapshot of the ledger entry.
func (r *MemoryRepository) FindTransactionByID(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error) {
	r.mu.RLock()
	entry, ok := r.transactions[transactionID]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrTransactionNotFound
	}

	entry.mu.Lock()
	snapshot := entry.tx
	entry.mu.Unlock()
	return &snapshot, nil
}

func (r *MemoryRepository) lookupAccount(accountID uuid.UUID) (*accountEntry, error) {
	r.mu.RLock()
	entry, ok := r.accounts[accountID]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrAccountNotFound
	}
	return entry, nil
}
