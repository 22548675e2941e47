package service

import (
	"time"

	"github.com/grachmannico95/wallet-webhook/internal/domain"
	"github.com/grachmannico95/wallet-webhook/internal/ingest"
	"github.com/shopspring/decimal"
)

const displayTimeLayout = "02-01-2006 15:04:05"

// TransactionView is a record as shown to operators.
type TransactionView struct {
	ID           string                   `json:"id"`
	Event        string                   `json:"event"`
	EventLabel   string                   `json:"event_label"`
	Amount       int64                    `json:"amount"`
	AmountStr    string                   `json:"amount_str"`
	Name         string                   `json:"name"`
	Contact      string                   `json:"contact"`
	Bank         string                   `json:"bank"`
	BankLabel    string                   `json:"bank_label"`
	Status       domain.TransactionStatus `json:"status"`
	Time         string                   `json:"time"`
	CreatedAt    string                   `json:"created_at"`
	ApprovedAt   string                   `json:"approved_at,omitempty"`
	ApproverName string                   `json:"approver_name,omitempty"`
	CustomerUser string                   `json:"customer_user,omitempty"`
	CancelledAt  string                   `json:"cancelled_at,omitempty"`
	CancelerName string                   `json:"canceler_name,omitempty"`
	HasSlip      bool                     `json:"has_slip"`
}

type DailyView struct {
	Date       string `json:"date"`
	Total      string `json:"total"`
	TotalMinor int64  `json:"total_minor"`
}

type Summary struct {
	NewOrders        []TransactionView `json:"new_orders"`
	ApprovedOrders   []TransactionView `json:"approved_orders"`
	CancelledOrders  []TransactionView `json:"cancelled_orders"`
	DailySummary     []DailyView       `json:"daily_summary"`
	WalletDailyTotal string            `json:"wallet_daily_total"`
}

// FormatAmount renders minor units with two decimals, e.g. 10000 -> "100.00".
func FormatAmount(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}

func newTransactionView(tx domain.Transaction, loc *time.Location) TransactionView {
	return TransactionView{
		ID:           tx.ID,
		Event:        tx.Event,
		EventLabel:   ingest.EventLabel(tx.Event),
		Amount:       tx.Amount,
		AmountStr:    FormatAmount(tx.Amount),
		Name:         tx.Name,
		Contact:      tx.Contact,
		Bank:         tx.Bank,
		BankLabel:    ingest.BankLabel(tx.Bank),
		Status:       tx.Status,
		Time:         formatTime(&tx.ReceivedAt, loc),
		CreatedAt:    formatTime(&tx.CreatedAt, loc),
		ApprovedAt:   formatTime(tx.ApprovedAt, loc),
		ApproverName: tx.ApproverName,
		CustomerUser: tx.CustomerUser,
		CancelledAt:  formatTime(tx.CancelledAt, loc),
		CancelerName: tx.CancelerName,
		HasSlip:      tx.SlipRef != "",
	}
}

func newTransactionViews(txs []domain.Transaction, loc *time.Location) []TransactionView {
	views := make([]TransactionView, 0, len(txs))
	for _, tx := range txs {
		views = append(views, newTransactionView(tx, loc))
	}
	return views
}

func formatTime(t *time.Time, loc *time.Location) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.In(loc).Format(displayTimeLayout)
}
