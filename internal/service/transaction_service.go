package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/grachmannico95/wallet-webhook/internal/domain"
	"github.com/grachmannico95/wallet-webhook/internal/eventbus"
	"github.com/grachmannico95/wallet-webhook/internal/ingest"
	"github.com/grachmannico95/wallet-webhook/internal/slipstore"
	"github.com/grachmannico95/wallet-webhook/pkg/logger"
)

const webhookActor = "webhook"

type TransactionService interface {
	Ingest(ctx context.Context, body []byte) (IngestResult, error)
	Approve(ctx context.Context, id, customerUser string) (*domain.Transaction, error)
	Cancel(ctx context.Context, id string) (*domain.Transaction, error)
	Restore(ctx context.Context, id string) (*domain.Transaction, error)
	ResetApproved(ctx context.Context) (int, error)
	ResetCancelled(ctx context.Context) (int, error)
	Summary(ctx context.Context, query SummaryQuery) (*Summary, error)
	History(ctx context.Context, id string) ([]domain.AuditEntry, error)
	AttachSlip(ctx context.Context, id string, r io.Reader) (*domain.Transaction, error)
	OpenSlip(ctx context.Context, id string) (io.ReadCloser, string, error)
	Purge(ctx context.Context, maxAge time.Duration) (int, error)
}

type IngestResult struct {
	ID        string `json:"id"`
	Duplicate bool   `json:"duplicate"`
}

type SummaryQuery struct {
	Limit int
	// Status restricts which lists are filled. Empty means all of them.
	Status domain.TransactionStatus
}

type Options struct {
	Repo       domain.Repository
	Decoder    *ingest.Decoder
	Normalizer *ingest.Normalizer
	// Bus carries audit events. Without one, history is written inline.
	Bus   eventbus.EventBus
	Slips slipstore.Store

	Location     *time.Location
	DefaultLimit int
	MaxLimit     int
	SummaryDays  int
	DefaultActor string

	Clock  func() time.Time
	Logger *logger.Logger
}

type transactionService struct {
	repo       domain.Repository
	decoder    *ingest.Decoder
	normalizer *ingest.Normalizer
	bus        eventbus.EventBus
	slips      slipstore.Store

	loc          *time.Location
	defaultLimit int
	maxLimit     int
	summaryDays  int
	defaultActor string

	locks  *keyedMutex
	now    func() time.Time
	logger *logger.Logger
}

func NewTransactionService(opts Options) TransactionService {
	s := &transactionService{
		repo:         opts.Repo,
		decoder:      opts.Decoder,
		normalizer:   opts.Normalizer,
		bus:          opts.Bus,
		slips:        opts.Slips,
		loc:          opts.Location,
		defaultLimit: opts.DefaultLimit,
		maxLimit:     opts.MaxLimit,
		summaryDays:  opts.SummaryDays,
		defaultActor: opts.DefaultActor,
		locks:        newKeyedMutex(),
		now:          opts.Clock,
		logger:       opts.Logger,
	}

	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.defaultLimit <= 0 {
		s.defaultLimit = 20
	}
	if s.maxLimit < s.defaultLimit {
		s.maxLimit = s.defaultLimit
	}
	if s.summaryDays <= 0 {
		s.summaryDays = 30
	}
	if s.defaultActor == "" {
		s.defaultActor = "admin"
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = logger.NewNop()
	}

	return s
}

func (s *transactionService) Ingest(ctx context.Context, body []byte) (IngestResult, error) {
	if s.decoder == nil || s.normalizer == nil {
		return IngestResult{}, errors.New("ingestion is not configured")
	}

	payload, err := s.decoder.Decode(body)
	if err != nil {
		s.logger.Warn(ctx, "Rejected webhook payload",
			"error", err,
		)
		return IngestResult{}, err
	}

	now := s.now()
	tx, err := s.normalizer.Normalize(payload, now)
	if err != nil {
		s.logger.Warn(ctx, "Failed to normalize webhook payload",
			"error", err,
		)
		return IngestResult{}, err
	}

	ctx = logger.WithTransactionID(ctx, tx.ID)

	inserted, err := s.repo.InsertIfAbsent(ctx, &tx)
	if err != nil {
		s.logger.Error(ctx, "Failed to store transaction",
			"error", err,
		)
		return IngestResult{}, err
	}

	if !inserted {
		s.logger.Info(ctx, "Duplicate webhook ignored")
		return IngestResult{ID: tx.ID, Duplicate: true}, nil
	}

	s.logger.Info(ctx, "Transaction ingested",
		"event", tx.Event,
		"amount", tx.Amount,
		"bank", tx.Bank,
		"business_date", tx.BusinessDate,
	)

	s.record(ctx, tx.ID, domain.AuditActionIngested, webhookActor, tx.Amount, now)

	return IngestResult{ID: tx.ID}, nil
}

func (s *transactionService) Approve(ctx context.Context, id, customerUser string) (*domain.Transaction, error) {
	actor := s.actor(ctx)
	at := s.now()

	tx, err := s.transition(ctx, id, "approve", func(tx *domain.Transaction) (domain.AggregateDelta, error) {
		return domain.Approve(tx, actor, customerUser, at)
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, id, domain.AuditActionApproved, actor, tx.Amount, at)
	return tx, nil
}

func (s *transactionService) Cancel(ctx context.Context, id string) (*domain.Transaction, error) {
	actor := s.actor(ctx)
	at := s.now()

	tx, err := s.transition(ctx, id, "cancel", func(tx *domain.Transaction) (domain.AggregateDelta, error) {
		return domain.Cancel(tx, actor, at)
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, id, domain.AuditActionCancelled, actor, tx.Amount, at)
	return tx, nil
}

func (s *transactionService) Restore(ctx context.Context, id string) (*domain.Transaction, error) {
	actor := s.actor(ctx)

	tx, err := s.transition(ctx, id, "restore", domain.Restore)
	if err != nil {
		return nil, err
	}

	s.record(ctx, id, domain.AuditActionRestored, actor, tx.Amount, s.now())
	return tx, nil
}

// transition runs one lifecycle step while holding the record's lock.
func (s *transactionService) transition(ctx context.Context, id, action string, mutate domain.Mutator) (*domain.Transaction, error) {
	ctx = logger.WithTransactionID(ctx, id)

	if id == "" {
		return nil, fmt.Errorf("%w: id is required", domain.ErrInvalidPayload)
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	tx, err := s.repo.Update(ctx, id, mutate)
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) || errors.Is(err, domain.ErrInvalidTransition) {
			s.logger.Warn(ctx, "Transition rejected",
				"action", action,
				"error", err,
			)
		} else {
			s.logger.Error(ctx, "Failed to update transaction",
				"action", action,
				"error", err,
			)
		}
		return nil, err
	}

	s.logger.Info(ctx, "Transaction updated",
		"action", action,
		"status", tx.Status,
		"amount", tx.Amount,
	)

	return tx, nil
}

func (s *transactionService) ResetApproved(ctx context.Context) (int, error) {
	return s.reset(ctx, domain.TransactionStatusApproved)
}

func (s *transactionService) ResetCancelled(ctx context.Context) (int, error) {
	return s.reset(ctx, domain.TransactionStatusCancelled)
}

func (s *transactionService) reset(ctx context.Context, status domain.TransactionStatus) (int, error) {
	actor := s.actor(ctx)

	var restored []domain.Transaction
	count, err := s.repo.UpdateByStatus(ctx, status, func(tx *domain.Transaction) (domain.AggregateDelta, error) {
		delta, err := domain.Restore(tx)
		if err != nil {
			return delta, err
		}
		restored = append(restored, *tx)
		return delta, nil
	})
	if err != nil {
		s.logger.Error(ctx, "Failed to reset transactions",
			"status", status,
			"error", err,
		)
		return 0, err
	}

	at := s.now()
	for _, tx := range restored {
		s.record(logger.WithTransactionID(ctx, tx.ID), tx.ID, domain.AuditActionRestored, actor, tx.Amount, at)
	}

	s.logger.Info(ctx, "Transactions reset",
		"status", status,
		"count", count,
	)

	return count, nil
}

func (s *transactionService) Summary(ctx context.Context, query SummaryQuery) (*Summary, error) {
	if query.Status != "" && !query.Status.Valid() {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidStatus, query.Status)
	}

	limit := s.clampLimit(query.Limit)

	summary := &Summary{
		NewOrders:       []TransactionView{},
		ApprovedOrders:  []TransactionView{},
		CancelledOrders: []TransactionView{},
		DailySummary:    []DailyView{},
	}

	lists := []struct {
		status domain.TransactionStatus
		target *[]TransactionView
	}{
		{domain.TransactionStatusNew, &summary.NewOrders},
		{domain.TransactionStatusApproved, &summary.ApprovedOrders},
		{domain.TransactionStatusCancelled, &summary.CancelledOrders},
	}

	for _, list := range lists {
		if query.Status != "" && query.Status != list.status {
			continue
		}

		txs, err := s.repo.GetByStatus(ctx, list.status, limit)
		if err != nil {
			s.logger.Error(ctx, "Failed to list transactions",
				"status", list.status,
				"error", err,
			)
			return nil, err
		}
		*list.target = newTransactionViews(txs, s.loc)
	}

	totals, err := s.repo.DailyTotals(ctx, s.summaryDays)
	if err != nil {
		s.logger.Error(ctx, "Failed to read daily totals",
			"error", err,
		)
		return nil, err
	}
	for _, total := range totals {
		summary.DailySummary = append(summary.DailySummary, DailyView{
			Date:       total.Date,
			Total:      FormatAmount(total.Total),
			TotalMinor: total.Total,
		})
	}

	today, err := s.repo.DailyTotal(ctx, s.now().In(s.loc).Format("2006-01-02"))
	if err != nil {
		s.logger.Error(ctx, "Failed to read today's total",
			"error", err,
		)
		return nil, err
	}
	summary.WalletDailyTotal = FormatAmount(today)

	s.logger.Debug(ctx, "Summary built",
		"limit", limit,
		"status", query.Status,
		"new", len(summary.NewOrders),
		"approved", len(summary.ApprovedOrders),
		"cancelled", len(summary.CancelledOrders),
	)

	return summary, nil
}

func (s *transactionService) History(ctx context.Context, id string) ([]domain.AuditEntry, error) {
	ctx = logger.WithTransactionID(ctx, id)

	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}

	entries, err := s.repo.ListAudit(ctx, id)
	if err != nil {
		s.logger.Error(ctx, "Failed to read history",
			"error", err,
		)
		return nil, err
	}

	return entries, nil
}

func (s *transactionService) AttachSlip(ctx context.Context, id string, r io.Reader) (*domain.Transaction, error) {
	ctx = logger.WithTransactionID(ctx, id)

	if s.slips == nil {
		return nil, errors.New("slip storage is not configured")
	}

	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}

	ref, err := s.slips.Put(ctx, id, r)
	if err != nil {
		s.logger.Warn(ctx, "Failed to store slip",
			"error", err,
		)
		return nil, err
	}

	tx, err := s.repo.Update(ctx, id, func(tx *domain.Transaction) (domain.AggregateDelta, error) {
		tx.SlipRef = ref
		return domain.AggregateDelta{}, nil
	})
	if err != nil {
		s.logger.Error(ctx, "Failed to link slip",
			"slip_ref", ref,
			"error", err,
		)
		return nil, err
	}

	s.logger.Info(ctx, "Slip attached",
		"slip_ref", ref,
	)
	s.record(ctx, id, domain.AuditActionSlip, s.actor(ctx), tx.Amount, s.now())

	return tx, nil
}

func (s *transactionService) OpenSlip(ctx context.Context, id string) (io.ReadCloser, string, error) {
	ctx = logger.WithTransactionID(ctx, id)

	if s.slips == nil {
		return nil, "", domain.ErrSlipNotFound
	}

	tx, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if tx.SlipRef == "" {
		return nil, "", domain.ErrSlipNotFound
	}

	return s.slips.Open(ctx, tx.SlipRef)
}

func (s *transactionService) Purge(ctx context.Context, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, fmt.Errorf("retention age must be positive, got %s", maxAge)
	}

	cutoff := s.now().Add(-maxAge)

	purged, err := s.repo.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Error(ctx, "Failed to purge transactions",
			"cutoff", cutoff,
			"error", err,
		)
		return 0, err
	}

	s.logger.Info(ctx, "Old transactions purged",
		"cutoff", cutoff,
		"count", purged,
	)

	return purged, nil
}

func (s *transactionService) actor(ctx context.Context) string {
	if operator := logger.GetOperator(ctx); operator != "" {
		return operator
	}
	return s.defaultActor
}

func (s *transactionService) clampLimit(limit int) int {
	if limit <= 0 {
		return s.defaultLimit
	}
	if limit > s.maxLimit {
		return s.maxLimit
	}
	return limit
}

// record appends a history line, through the bus when one is wired.
func (s *transactionService) record(ctx context.Context, id string, action domain.AuditAction, actor string, amount int64, at time.Time) {
	eventID := uuid.New().String()

	if s.bus == nil {
		err := s.repo.AppendAudit(ctx, domain.AuditEntry{
			ID:            eventID,
			TransactionID: id,
			Action:        action,
			Actor:         actor,
			Amount:        amount,
			At:            at,
		})
		if err != nil {
			s.logger.Error(ctx, "Failed to append audit entry",
				"action", action,
				"error", err,
			)
		}
		return
	}

	event := eventbus.Event{
		ID:   eventID,
		Type: eventbus.EventTypeTransaction,
		Payload: eventbus.TransactionEvent{
			TransactionID: id,
			Action:        action,
			Actor:         actor,
			Amount:        amount,
			At:            at,
		},
		Timestamp: at,
	}

	if err := s.bus.Publish(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Error(ctx, "Failed to publish transaction event",
			"event_id", eventID,
			"action", action,
			"error", err,
		)
	}
}
