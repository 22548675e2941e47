package storage

import (
	"time"

	"github.com/grachmannico95/wallet-webhook/internal/domain"
)

type transactionRow struct {
	ID           string     `gorm:"column:id;primaryKey;size:100"`
	Event        string     `gorm:"column:event;size:50"`
	Amount       int64      `gorm:"column:amount;not null"`
	Name         string     `gorm:"column:name;size:255"`
	Contact      string     `gorm:"column:contact;size:50"`
	Bank         string     `gorm:"column:bank;size:50"`
	Status       string     `gorm:"column:status;size:20;not null;default:new;index:idx_tx_status"`
	ReceivedAt   time.Time  `gorm:"column:received_at"`
	BusinessDate string     `gorm:"column:business_date;size:10;index"`
	CreatedAt    time.Time  `gorm:"column:created_at;index"`
	ApprovedAt   *time.Time `gorm:"column:approved_at"`
	ApproverName string     `gorm:"column:approver_name;size:100"`
	CustomerUser string     `gorm:"column:customer_user;size:100"`
	CancelledAt  *time.Time `gorm:"column:cancelled_at"`
	CancelerName string     `gorm:"column:canceler_name;size:100"`
	SlipRef      string     `gorm:"column:slip_ref;size:255"`
}

func (transactionRow) TableName() string {
	return "transactions"
}

type dailyTotalRow struct {
	Date      string    `gorm:"column:date;primaryKey;size:10"`
	Total     int64     `gorm:"column:total;not null;default:0"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (dailyTotalRow) TableName() string {
	return "daily_totals"
}

type auditRow struct {
	ID            string    `gorm:"column:id;primaryKey;size:64"`
	TransactionID string    `gorm:"column:transaction_id;size:100;index"`
	Action        string    `gorm:"column:action;size:30"`
	Actor         string    `gorm:"column:actor;size:100"`
	Amount        int64     `gorm:"column:amount"`
	At            time.Time `gorm:"column:at"`
}

func (auditRow) TableName() string {
	return "transaction_audits"
}

type processedEventRow struct {
	EventID   string    `gorm:"column:event_id;primaryKey;size:64"`
	CreatedAt time.Time `gorm:"column:created_at;index"`
}

func (processedEventRow) TableName() string {
	return "processed_events"
}

func toRow(tx domain.Transaction) transactionRow {
	return transactionRow{
		ID:           tx.ID,
		Event:        tx.Event,
		Amount:       tx.Amount,
		Name:         tx.Name,
		Contact:      tx.Contact,
		Bank:         tx.Bank,
		Status:       string(tx.Status),
		ReceivedAt:   tx.ReceivedAt.UTC(),
		BusinessDate: tx.BusinessDate,
		CreatedAt:    tx.CreatedAt.UTC(),
		ApprovedAt:   utcPtr(tx.ApprovedAt),
		ApproverName: tx.ApproverName,
		CustomerUser: tx.CustomerUser,
		CancelledAt:  utcPtr(tx.CancelledAt),
		CancelerName: tx.CancelerName,
		SlipRef:      tx.SlipRef,
	}
}

func (r transactionRow) toDomain() domain.Transaction {
	return domain.Transaction{
		ID:           r.ID,
		Event:        r.Event,
		Amount:       r.Amount,
		Name:         r.Name,
		Contact:      r.Contact,
		Bank:         r.Bank,
		Status:       domain.TransactionStatus(r.Status),
		ReceivedAt:   r.ReceivedAt,
		BusinessDate: r.BusinessDate,
		CreatedAt:    r.CreatedAt,
		ApprovedAt:   r.ApprovedAt,
		ApproverName: r.ApproverName,
		CustomerUser: r.CustomerUser,
		CancelledAt:  r.CancelledAt,
		CancelerName: r.CancelerName,
		SlipRef:      r.SlipRef,
	}
}

// Times are stored in UTC so SQLite's text comparison orders them correctly.
func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
