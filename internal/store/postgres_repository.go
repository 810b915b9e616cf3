/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. It contains the SQL for the accounts table and the transaction
 * ledger, including the row-locked debit that keeps concurrent transfers from
 * observing a stale balance.
 *
 * @dependencies
 * - context, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/druidalabs/be/internal/domain"
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// EnsureSchema creates the accounts and transactions tables when they do not
// exist yet, so a fresh database is usable without an external migration step.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS accounts (
			id UUID PRIMARY KEY,
			handle TEXT NOT NULL UNIQUE,
			contact TEXT NOT NULL UNIQUE,
			balance BIGINT NOT NULL CHECK (balance >= 0),
			expires_at TIMESTAMPTZ NOT NULL,
			last_used_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS transactions (
			id UUID PRIMARY KEY,
			account_id UUID NOT NULL REFERENCES accounts(id),
			amount BIGINT NOT NULL CHECK (amount > 0),
			to_address TEXT NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`)
	return err
}

// CreateAccount inserts a new account with the initial grant. Unique-violation
// errors from the handle/contact constraints surface as ErrDuplicateIdentity.
func (r *PostgresRepository) CreateAccount(ctx context.Context, handle, contact string) (*domain.Account, error) {
	var account domain.Account
	query := `
		INSERT INTO accounts (id, handle, contact, balance, expires_at, last_used_at, created_at)
		VALUES ($1, $2, $3, $4, NOW() + make_interval(secs => $5), NOW(), NOW())
		RETURNING id, handle, contact, balance, expires_at, last_used_at, created_at`
	err := r.db.QueryRow(ctx, query,
		uuid.New(), handle, contact, domain.InitialBalance, domain.AccountValidity.Seconds(),
	).Scan(&account.ID, &account.Handle, &account.Contact, &account.Balance,
		&account.ExpiresAt, &account.LastUsedAt, &account.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateIdentity
		}
		return nil, err
	}
	return &account, nil
}

// FindAccountByID retrieves an account by its identifier.
func (r *PostgresRepository) FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	var account domain.Account
	query := `SELECT id, handle, contact, balance, expires_at, last_used_at, created_at FROM accounts WHERE id = $1`
	err := r.db.QueryRow(ctx, query, accountID).Scan(&account.ID, &account.Handle,
		&account.Contact, &account.Balance, &account.ExpiresAt, &account.LastUsedAt, &account.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// TouchActivity updates the last-used timestamp. A missing row is a no-op.
func (r *PostgresRepository) TouchActivity(ctx context.Context, accountID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `UPDATE accounts SET last_used_at = NOW() WHERE id = $1`, accountID)
	return err
}

// DebitAccount performs an atomic debit on an account's balance.
func (r *PostgresRepository) DebitAccount(ctx context.Context, accountID uuid.UUID, amount int64) (*domain.Account, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var balance int64
	// Use FOR UPDATE to lock the row, preventing race conditions.
	err = tx.QueryRow(ctx, `SELECT balance FROM accounts WHERE id = $1 FOR UPDATE`, accountID).Scan(&balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	if balance < amount {
		return nil, ErrInsufficientFunds
	}

	var account domain.Account
	err = tx.QueryRow(ctx, `
		UPDATE accounts SET balance = balance - $1 WHERE id = $2
		RETURNING id, handle, contact, balance, expires_at, last_used_at, created_at`, amount, accountID,
	).Scan(&account.ID, &account.Handle, &account.Contact, &account.Balance,
		&account.ExpiresAt, &account.LastUsedAt, &account.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &account, nil
}

// CreateTransaction inserts a new pending ledger record.
func (r *PostgresRepository) CreateTransaction(ctx context.Context, txRecord *domain.Transaction) error {
	query := `
		INSERT INTO transactions (id, account_id, amount, to_address, message, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.Exec(ctx, query, txRecord.ID, txRecord.AccountID, txRecord.Amount,
		txRecord.ToAddress, txRecord.Message, txRecord.Status, txRecord.CreatedAt)
	return err
}

// CompleteTransaction transitions a transaction to completed. Re-running the
// update on an already-completed row changes nothing, which keeps the
// settlement worker safe to retry.
func (r *PostgresRepository) CompleteTransaction(ctx context.Context, transactionID uuid.UUID) error {
	result, err := r.db.Exec(ctx, `UPDATE transactions SET status = $1 WHERE id = $2`,
		domain.StatusCompleted, transactionID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

// FindTransactionByID retrieves a ledger record by its identifier.
func (r *PostgresRepository) FindTransactionByID(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error) {
	var txRecord domain.Transaction
	query := `SELECT id, account_id, amount, to_address, message, status, created_at FROM transactions WHERE id = $1`
	err := r.db.QueryRow(ctx, query, transactionID).Scan(&txRecord.ID, &txRecord.AccountID,
		&txRecord.Amount, &txRecord.ToAddress, &txRecord.Message, &txRecord.Status, &txRecord.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &txRecord, nil
}
