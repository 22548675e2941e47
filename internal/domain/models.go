package domain

import "time"

type TransactionStatus string

const (
	TransactionStatusNew       TransactionStatus = "new"
	TransactionStatusApproved  TransactionStatus = "approved"
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

func (s TransactionStatus) Valid() bool {
	switch s {
	case TransactionStatusNew, TransactionStatusApproved, TransactionStatusCancelled:
		return true
	}
	return false
}

// Transaction is a wallet notification as stored. Amount is in minor units.
type Transaction struct {
	ID      string `json:"id"`
	Event   string `json:"event"`
	Amount  int64  `json:"amount"`
	Name    string `json:"name"`
	Contact string `json:"contact"`
	Bank    string `json:"bank"`

	Status TransactionStatus `json:"status"`

	// ReceivedAt is the provider's timestamp, or ingestion time when absent.
	ReceivedAt time.Time `json:"received_at"`
	// BusinessDate is the YYYY-MM-DD of ReceivedAt in the display zone and
	// names the daily aggregate bucket this record contributes to.
	BusinessDate string    `json:"business_date"`
	CreatedAt    time.Time `json:"created_at"`

	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
	ApproverName string     `json:"approver_name,omitempty"`
	CustomerUser string     `json:"customer_user,omitempty"`

	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CancelerName string     `json:"canceler_name,omitempty"`

	SlipRef string `json:"slip_ref,omitempty"`
}

type DailyTotal struct {
	Date  string `json:"date"`
	Total int64  `json:"total"`
}

// AggregateDelta is the change a lifecycle step makes to one daily bucket.
type AggregateDelta struct {
	Date   string
	Amount int64
}

func (d AggregateDelta) IsZero() bool {
	return d.Amount == 0
}

type AuditAction string

const (
	AuditActionIngested  AuditAction = "ingested"
	AuditActionApproved  AuditAction = "approved"
	AuditActionCancelled AuditAction = "cancelled"
	AuditActionRestored  AuditAction = "restored"
	AuditActionSlip      AuditAction = "slip_attached"
)

type AuditEntry struct {
	ID            string      `json:"id"`
	TransactionID string      `json:"transaction_id"`
	Action        AuditAction `json:"action"`
	Actor         string      `json:"actor"`
	Amount        int64       `json:"amount"`
	At            time.Time   `json:"at"`
}

// Clone returns a copy that shares no pointers with t.
func (t Transaction) Clone() Transaction {
	c := t
	if t.ApprovedAt != nil {
		at := *t.ApprovedAt
		c.ApprovedAt = &at
	}
	if t.CancelledAt != nil {
		at := *t.CancelledAt
		c.CancelledAt = &at
	}
	return c
}

// ActionTime is the time the record entered its current status.
func (t Transaction) ActionTime() time.Time {
	switch t.Status {
	case TransactionStatusApproved:
		if t.ApprovedAt != nil {
			return *t.ApprovedAt
		}
	case TransactionStatusCancelled:
		if t.CancelledAt != nil {
			return *t.CancelledAt
		}
	}
	return t.CreatedAt
}
