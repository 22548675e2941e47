package domain

import (
	"context"
	"time"
)

// Mutator changes a loaded record in place and reports the aggregate delta
// to apply with it. Returning an error aborts the update.
type Mutator func(tx *Transaction) (AggregateDelta, error)

type Repository interface {
	// Transaction records
	InsertIfAbsent(ctx context.Context, tx *Transaction) (bool, error)
	Get(ctx context.Context, id string) (*Transaction, error)
	GetByStatus(ctx context.Context, status TransactionStatus, limit int) ([]Transaction, error)
	Update(ctx context.Context, id string, mutate Mutator) (*Transaction, error)
	UpdateByStatus(ctx context.Context, status TransactionStatus, mutate Mutator) (int, error)
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error)

	// Daily aggregate
	DailyTotals(ctx context.Context, limit int) ([]DailyTotal, error)
	DailyTotal(ctx context.Context, date string) (int64, error)

	// Audit trail
	AppendAudit(ctx context.Context, entry AuditEntry) error
	ListAudit(ctx context.Context, transactionID string) ([]AuditEntry, error)

	// Idempotency tracking
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID string) error
}
