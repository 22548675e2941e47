package domain

import "errors"

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrInvalidPayload      = errors.New("invalid payload")
	ErrInvalidSignature    = errors.New("invalid signature")
	ErrInvalidStatus       = errors.New("invalid status")
	ErrSlipNotFound        = errors.New("slip not found")
	ErrInvalidSlip         = errors.New("invalid slip")
)
