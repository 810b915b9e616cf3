/**
 * @description
 * This file contains the core business logic for the Bitcoin Efectivo API.
 * The `Service` struct orchestrates transfers: it validates the balance,
 * records the pending ledger entry, applies the atomic debit, and hands the
 * transaction to the settlement worker. It also serves the balance and status
 * snapshots read by the authenticated endpoints.
 *
 * Key invariants:
 * - The ledger record is created strictly before the debit is applied. A
 *   crash between the two leaves an orphaned pending entry, which is
 *   recoverable by reconciliation; the reverse order could lose money.
 * - The debit itself is atomic in the store, so concurrent submissions
 *   against one account can never both pass the check on a stale balance.
 *
 * @dependencies
 * - context, errors, fmt, log, time: Standard Go libraries.
 * - github.com/google/uuid: For transaction identifiers.
 * - internal/domain, internal/store, internal/ratelimit: Domain models,
 *   data access, and admission budgets.
 * - pkg/rabbitmq: Lifecycle event publishing.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/druidalabs/be/internal/domain"
	"github.com/druidalabs/be/internal/ratelimit"
	"github.com/druidalabs/be/internal/store"
	"github.com/druidalabs/be/pkg/rabbitmq"
)

// InsufficientBalanceError is returned when a transfer requests more than the
// account holds. It carries both figures so the caller can report the
// available balance.
type InsufficientBalanceError struct {
	Requested int64
	Available int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: requested %d, available %d satoshis", e.Requested, e.Available)
}

func (e *InsufficientBalanceError) Unwrap() error { return store.ErrInsufficientFunds }

// BalanceSnapshot is the result of a balance query.
type BalanceSnapshot struct {
	AccountID uuid.UUID
	Balance   int64
	Timestamp time.Time
}

// StatusSnapshot is the result of a status query.
type StatusSnapshot struct {
	AccountID  uuid.UUID
	TokenValid bool
	ExpiresAt  time.Time
	RateLimit  ratelimit.Result
	ServerTime time.Time
}

// Service provides the core business logic for accounts and transfers.
type Service struct {
	repo     store.Repository
	settler  *Settler
	limiter  ratelimit.Limiter
	producer rabbitmq.Publisher

	now func() time.Time
}

// NewService creates a new service instance. The producer may be a fallback;
// event publishing is best effort and never fails a transfer.
func NewService(repo store.Repository, settler *Settler, limiter ratelimit.Limiter, producer rabbitmq.Publisher) *Service {
	return &Service{
		repo:     repo,
		settler:  settler,
		limiter:  limiter,
		producer: producer,
		now:      time.Now,
	}
}

// Signup provisions a new account with the initial grant. Duplicate handles
// or contacts surface as store.ErrDuplicateIdentity.
func (s *Service) Signup(ctx context.Context, handle, contact string) (*domain.Account, error) {
	account, err := s.repo.CreateAccount(ctx, handle, contact)
	if err != nil {
		return nil, err
	}

	if pubErr := s.producer.Publish(ctx, "account_events", "account.created", account); pubErr != nil {
		log.Printf("level=warn component=service msg=\"account.created publish failed\" account_id=%s err=%v", account.ID, pubErr)
	}
	return account, nil
}

// SubmitTransfer validates the balance, records a pending ledger entry,
// debits the account, and schedules asynchronous completion.
func (s *Service) SubmitTransfer(ctx context.Context, account *domain.Account, amount int64, toAddress, message string) (*domain.Transaction, error) {
	// Read the current balance for the fast rejection path. The atomic debit
	// below is the authoritative check; this read only shapes the error.
	current, err := s.repo.FindAccountByID(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to read account: %w", err)
	}
	if current.Balance < amount {
		return nil, &InsufficientBalanceError{Requested: amount, Available: current.Balance}
	}

	txRecord := &domain.Transaction{
		ID:        uuid.New(),
		AccountID: account.ID,
		Amount:    amount,
		ToAddress: toAddress,
		Message:   message,
		Status:    domain.StatusPending,
		CreatedAt: s.now().UTC(),
	}

	// Ledger record strictly before the debit. A crash in between leaves an
	// orphaned pending entry rather than an unrecorded balance change.
	if err := s.repo.CreateTransaction(ctx, txRecord); err != nil {
		return nil, fmt.Errorf("failed to create transaction record: %w", err)
	}

	debited, err := s.repo.DebitAccount(ctx, account.ID, amount)
	if err != nil {
		if errors.Is(err, store.ErrInsufficientFunds) {
			// A concurrent submission won the race for the remaining balance.
			available := current.Balance
			if fresh, readErr := s.repo.FindAccountByID(ctx, account.ID); readErr == nil {
				available = fresh.Balance
			}
			return nil, &InsufficientBalanceError{Requested: amount, Available: available}
		}
		return nil, fmt.Errorf("failed to debit account: %w", err)
	}

	if err := s.repo.TouchActivity(ctx, account.ID); err != nil {
		log.Printf("level=warn component=service msg=\"activity touch failed\" account_id=%s err=%v", account.ID, err)
	}

	s.settler.Schedule(*txRecord)

	if pubErr := s.producer.Publish(ctx, "transfer_events", "transfer.submitted", domain.TransferEvent{
		TransactionID: txRecord.ID,
		AccountID:     account.ID,
		Amount:        amount,
		ToAddress:     toAddress,
		Status:        txRecord.Status,
		Timestamp:     txRecord.CreatedAt,
	}); pubErr != nil {
		log.Printf("level=warn component=service msg=\"transfer.submitted publish failed\" transaction_id=%s err=%v", txRecord.ID, pubErr)
	}

	log.Printf("level=info component=service msg=\"transfer submitted\" transaction_id=%s account_id=%s amount=%d balance=%d",
		txRecord.ID, account.ID, amount, debited.Balance)
	return txRecord, nil
}

// Balance reads the account's current balance and records the activity.
func (s *Service) Balance(ctx context.Context, account *domain.Account) (*BalanceSnapshot, error) {
	if err := s.repo.TouchActivity(ctx, account.ID); err != nil {
		log.Printf("level=warn component=service msg=\"activity touch failed\" account_id=%s err=%v", account.ID, err)
	}

	current, err := s.repo.FindAccountByID(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to read account: %w", err)
	}

	return &BalanceSnapshot{
		AccountID: current.ID,
		Balance:   current.Balance,
		Timestamp: s.now().UTC(),
	}, nil
}

// Status reports token validity, the account's deadline, and a descriptive
// view of the authenticated-request budget for the caller's origin.
func (s *Service) Status(ctx context.Context, account *domain.Account, subject string) (*StatusSnapshot, error) {
	if err := s.repo.TouchActivity(ctx, account.ID); err != nil {
		log.Printf("level=warn component=service msg=\"activity touch failed\" account_id=%s err=%v", account.ID, err)
	}

	now := s.now().UTC()
	budget, err := s.limiter.Snapshot(ctx, ratelimit.ClassAuthenticated, subject)
	if err != nil {
		log.Printf("level=warn component=service msg=\"rate budget snapshot failed\" subject=%s err=%v", subject, err)
		policy := ratelimit.PolicyFor(ratelimit.ClassAuthenticated)
		budget = ratelimit.Result{Allowed: true, Limit: policy.Max, Remaining: policy.Max, Reset: now.Add(policy.Window)}
	}

	return &StatusSnapshot{
		AccountID:  account.ID,
		TokenValid: now.Before(account.ExpiresAt),
		ExpiresAt:  account.ExpiresAt,
		RateLimit:  budget,
		ServerTime: now,
	}, nil
}

// TransactionStatus looks up a ledger entry owned by the given account.
func (s *Service) TransactionStatus(ctx context.Context, account *domain.Account, transactionID uuid.UUID) (*domain.Transaction, error) {
	txRecord, err := s.repo.FindTransactionByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if txRecord.AccountID != account.ID {
		return nil, store.ErrTransactionNotFound
	}
	return txRecord, nil
}
