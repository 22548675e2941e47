package domain

import (
	"fmt"
	"time"
)

// Approve moves a new transaction to approved and credits its day.
func Approve(tx *Transaction, actor, customerUser string, at time.Time) (AggregateDelta, error) {
	if tx.Status != TransactionStatusNew {
		return AggregateDelta{}, transitionError(tx, TransactionStatusApproved)
	}

	tx.Status = TransactionStatusApproved
	tx.ApprovedAt = &at
	tx.ApproverName = actor
	tx.CustomerUser = customerUser

	return AggregateDelta{Date: tx.BusinessDate, Amount: tx.Amount}, nil
}

// Cancel moves a new transaction to cancelled. Totals are untouched.
func Cancel(tx *Transaction, actor string, at time.Time) (AggregateDelta, error) {
	if tx.Status != TransactionStatusNew {
		return AggregateDelta{}, transitionError(tx, TransactionStatusCancelled)
	}

	tx.Status = TransactionStatusCancelled
	tx.CancelledAt = &at
	tx.CancelerName = actor

	return AggregateDelta{Date: tx.BusinessDate}, nil
}

// Restore returns an approved or cancelled transaction to new, clearing the
// audit fields of the reversed action. Reversing an approval debits the day.
func Restore(tx *Transaction) (AggregateDelta, error) {
	switch tx.Status {
	case TransactionStatusApproved:
		tx.Status = TransactionStatusNew
		tx.ApprovedAt = nil
		tx.ApproverName = ""
		tx.CustomerUser = ""
		return AggregateDelta{Date: tx.BusinessDate, Amount: -tx.Amount}, nil
	case TransactionStatusCancelled:
		tx.Status = TransactionStatusNew
		tx.CancelledAt = nil
		tx.CancelerName = ""
		return AggregateDelta{Date: tx.BusinessDate}, nil
	default:
		return AggregateDelta{}, transitionError(tx, TransactionStatusNew)
	}
}

func transitionError(tx *Transaction, to TransactionStatus) error {
	return fmt.Errorf("%w: %s is %s, cannot become %s", ErrInvalidTransition, tx.ID, tx.Status, to)
}
