/**
 * @description
 * This file defines the `Repository` interface, the contract for all account
 * and ledger data access in the service. Business logic depends on this
 * interface rather than a concrete backend, so the same orchestration code
 * runs against the in-memory store (default, matching the original demo
 * deployment) or Postgres.
 *
 * @dependencies
 * - context, errors: Standard Go libraries.
 * - github.com/google/uuid: For entity identifiers.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/druidalabs/be/internal/domain"
)

var (
	ErrDuplicateIdentity   = errors.New("handle or contact already exists")
	ErrAccountNotFound     = errors.New("account not found")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrTransactionNotFound = errors.New("transaction not found")
)

// Repository defines the set of methods for interacting with accounts and the
// transaction ledger.
type Repository interface {
	// Account methods.
	// CreateAccount provisions a new account with the initial satoshi grant
	// and a fixed validity deadline. Handle and contact must be unique
	// (case-sensitive exact match); a collision on either yields
	// ErrDuplicateIdentity.
	CreateAccount(ctx context.Context, handle, contact string) (*domain.Account, error)
	FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error)
	// TouchActivity updates the account's last-used timestamp. A missing
	// account is a no-op, never an error.
	TouchActivity(ctx context.Context, accountID uuid.UUID) error
	// DebitAccount decreases the balance by amount only if the balance
	// covers it. The check and the decrement are a single atomic step per
	// account; concurrent debits must not observe a stale balance. Returns
	// the post-debit account, or ErrInsufficientFunds with the balance
	// untouched.
	DebitAccount(ctx context.Context, accountID uuid.UUID, amount int64) (*domain.Account, error)

	// Ledger methods.
	// CreateTransaction records a new ledger entry in pending state.
	CreateTransaction(ctx context.Context, tx *domain.Transaction) error
	// CompleteTransaction transitions pending -> completed. Completing an
	// already-completed transaction is an idempotent no-op; an unknown id
	// yields ErrTransactionNotFound.
	CompleteTransaction(ctx context.Context, transactionID uuid.UUID) error
	FindTransactionByID(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error)
}
