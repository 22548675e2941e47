package service

import (
	"context"
	"time"

	"github.com/grachmannico95/wallet-webhook/internal/domain"
	"github.com/stretchr/testify/mock"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) InsertIfAbsent(ctx context.Context, tx *domain.Transaction) (bool, error) {
	args := m.Called(ctx, tx)
	return args.Bool(0), args.Error(1)
}

func (m *mockRepository) Get(ctx context.Context, id string) (*domain.Transaction, error) {
	args := m.Called(ctx, id)
	tx, _ := args.Get(0).(*domain.Transaction)
	return tx, args.Error(1)
}

func (m *mockRepository) GetByStatus(ctx context.Context, status domain.TransactionStatus, limit int) ([]domain.Transaction, error) {
	args := m.Called(ctx, status, limit)
	txs, _ := args.Get(0).([]domain.Transaction)
	return txs, args.Error(1)
}

func (m *mockRepository) Update(ctx context.Context, id string, mutate domain.Mutator) (*domain.Transaction, error) {
	args := m.Called(ctx, id, mutate)
	tx, _ := args.Get(0).(*domain.Transaction)
	return tx, args.Error(1)
}

func (m *mockRepository) UpdateByStatus(ctx context.Context, status domain.TransactionStatus, mutate domain.Mutator) (int, error) {
	args := m.Called(ctx, status, mutate)
	return args.Int(0), args.Error(1)
}

func (m *mockRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	args := m.Called(ctx, cutoff)
	return args.Int(0), args.Error(1)
}

func (m *mockRepository) DailyTotals(ctx context.Context, limit int) ([]domain.DailyTotal, error) {
	args := m.Called(ctx, limit)
	totals, _ := args.Get(0).([]domain.DailyTotal)
	return totals, args.Error(1)
}

func (m *mockRepository) DailyTotal(ctx context.Context, date string) (int64, error) {
	args := m.Called(ctx, date)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRepository) AppendAudit(ctx context.Context, entry domain.AuditEntry) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *mockRepository) ListAudit(ctx context.Context, transactionID string) ([]domain.AuditEntry, error) {
	args := m.Called(ctx, transactionID)
	entries, _ := args.Get(0).([]domain.AuditEntry)
	return entries, args.Error(1)
}

func (m *mockRepository) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *mockRepository) MarkEventProcessed(ctx context.Context, eventID string) error {
	return m.Called(ctx, eventID).Error(0)
}
