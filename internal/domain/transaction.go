/**
 * @description
 * This file defines the Transaction ledger record and its lifecycle events.
 * A transaction is created in `pending` state at submission time and moves to
 * `completed` exactly once when the settlement worker fires; `completed` is
 * terminal and there is no failure state in this design.
 *
 * @notes
 * - Amount, destination and owner are immutable once the record exists; only
 *   the status field ever changes.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Transaction statuses. The only legal transition is pending -> completed.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

// Transaction is the central ledger record for a submitted transfer.
type Transaction struct {
	ID        uuid.UUID `json:"id"`
	AccountID uuid.UUID `json:"account_id"`
	Amount    int64     `json:"amount"` // in satoshis
	ToAddress string    `json:"to_address"`
	Message   string    `json:"message,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// TransferEvent is the payload published to the message broker when a
// transaction changes state. Downstream consumers (notification pipelines,
// reconciliation jobs) key off the routing key plus this body.
type TransferEvent struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	AccountID     uuid.UUID `json:"account_id"`
	Amount        int64     `json:"amount"`
	ToAddress     string    `json:"to_address"`
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
}
