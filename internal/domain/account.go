/**
 * @description
 * This file defines the Account domain model for the Bitcoin Efectivo API.
 * An account is created once at signup, funded with a fixed satoshi grant,
 * and carries its own validity deadline that bounds every credential issued
 * for it.
 *
 * @notes
 * - Balances are stored as `int64` satoshis (the smallest currency unit),
 *   which avoids floating-point inaccuracies with monetary amounts.
 * - The validity deadline is fixed at creation; later logins do not renew it.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	// InitialBalance is the satoshi grant credited to every new account.
	InitialBalance int64 = 1_000_000

	// AccountValidity bounds how long an account (and any credential bound
	// to it) remains usable after signup.
	AccountValidity = 30 * 24 * time.Hour
)

// Account represents a funded identity on the network. This struct maps
// directly to the `accounts` table when the Postgres store is in use.
type Account struct {
	ID         uuid.UUID `json:"id"`
	Handle     string    `json:"handle"`
	Contact    string    `json:"contact"`
	Balance    int64     `json:"balance"` // in satoshis
	ExpiresAt  time.Time `json:"expires_at"`
	LastUsedAt time.Time `json:"last_used_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// Expired reports whether the account's validity deadline has passed at the
// given instant. The deadline itself counts as expired.
func (a *Account) Expired(now time.Time) bool {
	return !now.Before(a.ExpiresAt)
}
