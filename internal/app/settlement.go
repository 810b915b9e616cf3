/**
 * @description
 * Settlement worker for submitted transfers. Every submission enqueues a job
 * due a fixed delay later; a dedicated goroutine consumes the queue in order,
 * waits out each job's due time, and transitions the transaction to
 * completed. Completion is idempotent at the store level, so re-running a job
 * is harmless.
 *
 * @notes
 * - Jobs share one fixed delay, so queue order and due order coincide and a
 *   single worker draining a FIFO channel is sufficient.
 * - The queue lives in process memory. Transactions still pending past their
 *   completion horizon after a restart are left for reconciliation.
 *
 * @dependencies
 * - context, log, time: Standard Go libraries.
 * - internal/domain, internal/store: Ledger models and data access.
 * - pkg/rabbitmq: Publishes transfer.completed events.
 */

package app

import (
	"context"
	"log"
	"time"

	"github.com/druidalabs/be/internal/domain"
	"github.com/druidalabs/be/internal/store"
	"github.com/druidalabs/be/pkg/rabbitmq"
)

// SettlementDelay is the fixed interval between submission and completion.
const SettlementDelay = 2 * time.Second

// Settler completes pending transactions after a fixed delay.
type Settler struct {
	repo     store.Repository
	producer rabbitmq.Publisher
	delay    time.Duration

	jobs chan settlementJob
	stop chan struct{}
	done chan struct{}
}

type settlementJob struct {
	tx    domain.Transaction
	dueAt time.Time
}

// NewSettler creates a settler and starts its worker goroutine. A
// non-positive delay falls back to the fixed default; tests pass a short
// delay to keep the suite fast.
func NewSettler(repo store.Repository, producer rabbitmq.Publisher, delay time.Duration) *Settler {
	if delay <= 0 {
		delay = SettlementDelay
	}
	s := &Settler{
		repo:     repo,
		producer: producer,
		delay:    delay,
		jobs:     make(chan settlementJob, 1024),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go s.run()
	return s
}

// Schedule enqueues a completion job for the transaction, due one delay from
// now. Safe to call concurrently with any other operation on the same
// account or transaction.
func (s *Settler) Schedule(tx domain.Transaction) {
	select {
	case s.jobs <- settlementJob{tx: tx, dueAt: time.Now().Add(s.delay)}:
	case <-s.stop:
		log.Printf("level=warn component=settler msg=\"settler stopped; completion job dropped\" transaction_id=%s", tx.ID)
	}
}

// Stop shuts the worker down. Jobs not yet settled stay pending and are left
// for reconciliation on the next start.
func (s *Settler) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Settler) run() {
	defer close(s.done)

	for {
		select {
		case <-s.stop:
			return
		case job := <-s.jobs:
			if wait := time.Until(job.dueAt); wait > 0 {
				timer := time.NewTimer(wait)
				select {
				case <-s.stop:
					timer.Stop()
					return
				case <-timer.C:
				}
			}
			s.settle(job.tx)
		}
	}
}

func (s *Settler) settle(tx domain.Transaction) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.repo.CompleteTransaction(ctx, tx.ID); err != nil {
		log.Printf("level=error component=settler msg=\"completion failed\" transaction_id=%s err=%v", tx.ID, err)
		return
	}

	if err := s.producer.Publish(ctx, "transfer_events", "transfer.completed", domain.TransferEvent{
		TransactionID: tx.ID,
		AccountID:     tx.AccountID,
		Amount:        tx.Amount,
		ToAddress:     tx.ToAddress,
		Status:        domain.StatusCompleted,
		Timestamp:     time.Now().UTC(),
	}); err != nil {
		log.Printf("level=warn component=settler msg=\"transfer.completed publish failed\" transaction_id=%s err=%v", tx.ID, err)
	}

	log.Printf("level=info component=settler msg=\"transfer completed\" transaction_id=%s", tx.ID)
}
