package eventbus

import (
	"time"

	"github.com/grachmannico95/wallet-webhook/internal/domain"
)

type EventType string

const (
	EventTypeTransaction EventType = "transaction"
)

type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
	// Attempt is set by the bus before each delivery, starting at 1.
	Attempt int `json:"attempt"`
}

// TransactionEvent describes one lifecycle action on a stored transaction.
type TransactionEvent struct {
	TransactionID string             `json:"transaction_id"`
	Action        domain.AuditAction `json:"action"`
	Actor         string             `json:"actor"`
	Amount        int64              `json:"amount"`
	At            time.Time          `json:"at"`
}
