package eventbus

import (
	"context"
	"fmt"

	"github.com/grachmannico95/wallet-webhook/internal/domain"
	"github.com/grachmannico95/wallet-webhook/pkg/logger"
	"github.com/grachmannico95/wallet-webhook/pkg/retry"
)

// AuditConsumer turns transaction events into history entries.
type AuditConsumer struct {
	repo        domain.Repository
	logger      *logger.Logger
	workerCount int
}

func NewAuditConsumer(repo domain.Repository, log *logger.Logger, workerCount int) *AuditConsumer {
	if workerCount < 1 {
		workerCount = 1
	}

	return &AuditConsumer{
		repo:        repo,
		logger:      log,
		workerCount: workerCount,
	}
}

func (ac *AuditConsumer) Consume(ctx context.Context, event Event) error {
	processed, err := ac.repo.IsEventProcessed(ctx, event.ID)
	if err != nil {
		ac.logger.Error(ctx, "Failed to check event processed status",
			"event_id", event.ID,
			"error", err,
		)
		return err
	}

	if processed {
		ac.logger.Debug(ctx, "Event already processed, skipping",
			"event_id", event.ID,
		)
		return nil
	}

	payload, ok := event.Payload.(TransactionEvent)
	if !ok {
		ac.logger.Error(ctx, "Invalid payload type for transaction event",
			"event_id", event.ID,
		)
		return retry.Permanent(fmt.Errorf("invalid payload type %T", event.Payload))
	}

	entry := domain.AuditEntry{
		ID:            event.ID,
		TransactionID: payload.TransactionID,
		Action:        payload.Action,
		Actor:         payload.Actor,
		Amount:        payload.Amount,
		At:            payload.At,
	}

	if err := ac.repo.AppendAudit(ctx, entry); err != nil {
		ac.logger.Error(ctx, "Failed to append audit entry",
			"event_id", event.ID,
			"error", err,
		)
		return err
	}

	if err := ac.repo.MarkEventProcessed(ctx, event.ID); err != nil {
		ac.logger.Error(ctx, "Failed to mark event as processed",
			"event_id", event.ID,
			"error", err,
		)
		return err
	}

	ac.logger.Debug(ctx, "Audit entry recorded",
		"event_id", event.ID,
		"action", payload.Action,
		"attempt", event.Attempt,
	)

	return nil
}

func (ac *AuditConsumer) Name() string {
	return "audit"
}

func (ac *AuditConsumer) GetWorkerCount() int {
	return ac.workerCount
}
