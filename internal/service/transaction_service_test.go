package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/grachmannico95/wallet-webhook/internal/domain"
	"github.com/grachmannico95/wallet-webhook/internal/eventbus"
	"github.com/grachmannico95/wallet-webhook/internal/ingest"
	"github.com/grachmannico95/wallet-webhook/internal/slipstore"
	"github.com/grachmannico95/wallet-webhook/internal/storage"
	"github.com/grachmannico95/wallet-webhook/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSecret = "wallet-secret"

var (
	bangkok  = time.FixedZone("UTC+7", 7*3600)
	fixedNow = time.Date(2024, 1, 1, 5, 0, 0, 0, time.UTC)
)

func newTestService(repo domain.Repository, opts ...func(*Options)) TransactionService {
	o := Options{
		Repo:       repo,
		Decoder:    ingest.NewDecoder(ingest.DecoderConfig{Secret: testSecret}),
		Normalizer: ingest.NewNormalizer(ingest.NormalizerConfig{ProviderLocation: bangkok, DisplayLocation: bangkok}),
		Location:   bangkok,
		Clock:      func() time.Time { return fixedNow },
		Logger:     logger.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return NewTransactionService(o)
}

func eachRepo(t *testing.T, fn func(t *testing.T, repo storage.Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, storage.NewMemoryStore())
	})

	t.Run("sqlite", func(t *testing.T) {
		dsn := filepath.Join(t.TempDir(), "wallet.db")
		repo, err := storage.Open(context.Background(), storage.Options{Driver: storage.DriverSQLite, DSN: dsn})
		require.NoError(t, err)
		t.Cleanup(func() { _ = repo.Close() })
		fn(t, repo)
	})
}

func plainBody(t *testing.T, fields map[string]interface{}) []byte {
	t.Helper()
	body, err := json.Marshal(fields)
	require.NoError(t, err)
	return body
}

func signedBody(t *testing.T, claims jwt.MapClaims) []byte {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return plainBody(t, map[string]interface{}{"message": token})
}

func ingestTx(t *testing.T, svc TransactionService, id string, amount int64) {
	t.Helper()
	_, err := svc.Ingest(context.Background(), plainBody(t, map[string]interface{}{
		"transaction_id": id,
		"amount":         amount,
		"channel":        "SCB",
		"received_time":  "2024-01-01T10:00:00+0700",
	}))
	require.NoError(t, err)
}

func TestNewTransactionService(t *testing.T) {
	svc := NewTransactionService(Options{Repo: storage.NewMemoryStore()})

	assert.NotNil(t, svc)
	assert.Implements(t, (*TransactionService)(nil), svc)
}

func TestExampleScenario(t *testing.T) {
	eachRepo(t, func(t *testing.T, repo storage.Store) {
		svc := newTestService(repo)
		ctx := context.Background()

		result, err := svc.Ingest(ctx, signedBody(t, jwt.MapClaims{
			"transaction_id": "TX1",
			"event_type":     "P2P",
			"amount":         10000,
			"sender_name":    "Somchai",
			"sender_mobile":  "0812345678",
			"channel":        "SCB",
			"received_time":  "2024-01-01T10:00:00+0700",
		}))
		require.NoError(t, err)
		assert.Equal(t, IngestResult{ID: "TX1"}, result)

		summary, err := svc.Summary(ctx, SummaryQuery{})
		require.NoError(t, err)
		require.Len(t, summary.NewOrders, 1)
		view := summary.NewOrders[0]
		assert.Equal(t, "TX1", view.ID)
		assert.Equal(t, "100.00", view.AmountStr)
		assert.Equal(t, "ไทยพาณิชย์", view.BankLabel)
		assert.Equal(t, "01-01-2024 10:00:00", view.Time)
		assert.Equal(t, "0.00", summary.WalletDailyTotal)

		approved, err := svc.Approve(logger.WithOperator(ctx, "alice"), "TX1", "customer-42")
		require.NoError(t, err)
		assert.Equal(t, domain.TransactionStatusApproved, approved.Status)
		assert.Equal(t, "alice", approved.ApproverName)
		assert.Equal(t, "customer-42", approved.CustomerUser)

		summary, err = svc.Summary(ctx, SummaryQuery{})
		require.NoError(t, err)
		assert.Empty(t, summary.NewOrders)
		require.Len(t, summary.ApprovedOrders, 1)
		assert.Equal(t, "alice", summary.ApprovedOrders[0].ApproverName)
		assert.Equal(t, "01-01-2024 12:00:00", summary.ApprovedOrders[0].ApprovedAt)
		assert.Equal(t, "100.00", summary.WalletDailyTotal)
		require.Len(t, summary.DailySummary, 1)
		assert.Equal(t, DailyView{Date: "2024-01-01", Total: "100.00", TotalMinor: 10000}, summary.DailySummary[0])

		restored, err := svc.Restore(ctx, "TX1")
		require.NoError(t, err)
		assert.Equal(t, domain.TransactionStatusNew, restored.Status)
		assert.Nil(t, restored.ApprovedAt)
		assert.Empty(t, restored.ApproverName)
		assert.Empty(t, restored.CustomerUser)

		summary, err = svc.Summary(ctx, SummaryQuery{})
		require.NoError(t, err)
		assert.Len(t, summary.NewOrders, 1)
		assert.Equal(t, "0.00", summary.WalletDailyTotal)

		history, err := svc.History(ctx, "TX1")
		require.NoError(t, err)
		actions := make([]domain.AuditAction, 0, len(history))
		for _, entry := range history {
			actions = append(actions, entry.Action)
		}
		assert.ElementsMatch(t, []domain.AuditAction{
			domain.AuditActionIngested,
			domain.AuditActionApproved,
			domain.AuditActionRestored,
		}, actions)
	})
}

func TestIngest_Idempotent(t *testing.T) {
	eachRepo(t, func(t *testing.T, repo storage.Store) {
		svc := newTestService(repo)
		ctx := context.Background()
		body := plainBody(t, map[string]interface{}{"transaction_id": "TX1", "amount": 500})

		first, err := svc.Ingest(ctx, body)
		require.NoError(t, err)
		assert.False(t, first.Duplicate)

		_, err = svc.Approve(ctx, "TX1", "")
		require.NoError(t, err)

		second, err := svc.Ingest(ctx, plainBody(t, map[string]interface{}{"transaction_id": "TX1", "amount": 999}))
		require.NoError(t, err)
		assert.True(t, second.Duplicate)

		tx, err := repo.Get(ctx, "TX1")
		require.NoError(t, err)
		assert.Equal(t, domain.TransactionStatusApproved, tx.Status)
		assert.Equal(t, int64(500), tx.Amount)

		history, err := svc.History(ctx, "TX1")
		require.NoError(t, err)
		assert.Len(t, history, 2)
	})
}

func TestIngest_ConcurrentDuplicates(t *testing.T) {
	eachRepo(t, func(t *testing.T, repo storage.Store) {
		svc := newTestService(repo)
		body := plainBody(t, map[string]interface{}{"transaction_id": "TX1", "amount": 100})

		var wg sync.WaitGroup
		var mu sync.Mutex
		inserted := 0
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				result, err := svc.Ingest(context.Background(), body)
				assert.NoError(t, err)
				if err == nil && !result.Duplicate {
					mu.Lock()
					inserted++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, inserted)
	})
}

func TestIngest_Rejections(t *testing.T) {
	repo := storage.NewMemoryStore()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, []byte("{not json"))
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)

	_, err = svc.Ingest(ctx, plainBody(t, map[string]interface{}{"transaction_id": "TX1"}))
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"transaction_id": "TX2", "amount": 1}).
		SignedString([]byte("wrong"))
	require.NoError(t, err)
	_, err = svc.Ingest(ctx, plainBody(t, map[string]interface{}{"message": token}))
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)

	txs, err := repo.GetByStatus(ctx, domain.TransactionStatusNew, 0)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestIngest_StorageError(t *testing.T) {
	repo := new(mockRepository)
	repo.On("InsertIfAbsent", mock.Anything, mock.Anything).Return(false, errors.New("db down")).Once()
	svc := newTestService(repo)

	_, err := svc.Ingest(context.Background(), plainBody(t, map[string]interface{}{"transaction_id": "TX1", "amount": 1}))

	assert.EqualError(t, err, "db down")
	repo.AssertExpectations(t)
}

func TestLifecycle_InvalidTransitionsLeaveStateAlone(t *testing.T) {
	eachRepo(t, func(t *testing.T, repo storage.Store) {
		svc := newTestService(repo)
		ctx := context.Background()
		ingestTx(t, svc, "TX1", 10000)
		ingestTx(t, svc, "TX2", 2500)

		_, err := svc.Approve(ctx, "TX1", "")
		require.NoError(t, err)
		_, err = svc.Cancel(ctx, "TX2")
		require.NoError(t, err)

		_, err = svc.Approve(ctx, "TX1", "")
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		_, err = svc.Cancel(ctx, "TX1")
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		_, err = svc.Approve(ctx, "TX2", "")
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)

		ingestTx(t, svc, "TX3", 1)
		_, err = svc.Restore(ctx, "TX3")
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)

		tx1, err := repo.Get(ctx, "TX1")
		require.NoError(t, err)
		assert.Equal(t, domain.TransactionStatusApproved, tx1.Status)

		tx2, err := repo.Get(ctx, "TX2")
		require.NoError(t, err)
		assert.Equal(t, domain.TransactionStatusCancelled, tx2.Status)

		total, err := repo.DailyTotal(ctx, "2024-01-01")
		require.NoError(t, err)
		assert.Equal(t, int64(10000), total)
	})
}

func TestLifecycle_UnknownAndMissingID(t *testing.T) {
	svc := newTestService(storage.NewMemoryStore())
	ctx := context.Background()

	_, err := svc.Approve(ctx, "missing", "")
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
	_, err = svc.Cancel(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
	_, err = svc.Restore(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
	_, err = svc.History(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)

	_, err = svc.Approve(ctx, "", "")
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
}

func TestLifecycle_CancelRestoreRoundTrip(t *testing.T) {
	svc := newTestService(storage.NewMemoryStore())
	ctx := logger.WithOperator(context.Background(), "bob")
	ingestTx(t, svc, "TX1", 300)

	cancelled, err := svc.Cancel(ctx, "TX1")
	require.NoError(t, err)
	assert.Equal(t, "bob", cancelled.CancelerName)
	require.NotNil(t, cancelled.CancelledAt)

	restored, err := svc.Restore(ctx, "TX1")
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusNew, restored.Status)
	assert.Nil(t, restored.CancelledAt)
	assert.Empty(t, restored.CancelerName)

	approved, err := svc.Approve(context.Background(), "TX1", "")
	require.NoError(t, err)
	assert.Equal(t, "admin", approved.ApproverName)
}

func TestApprove_ConcurrentCountsOnce(t *testing.T) {
	eachRepo(t, func(t *testing.T, repo storage.Store) {
		svc := newTestService(repo)
		ingestTx(t, svc, "TX1", 10000)

		var wg sync.WaitGroup
		var mu sync.Mutex
		successes, conflicts := 0, 0
		for i := 0; i < 25; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ctx := logger.WithOperator(context.Background(), fmt.Sprintf("op-%d", i))
				_, err := svc.Approve(ctx, "TX1", "")

				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					successes++
				case errors.Is(err, domain.ErrInvalidTransition):
					conflicts++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, 1, successes)
		assert.Equal(t, 24, conflicts)

		total, err := repo.DailyTotal(context.Background(), "2024-01-01")
		require.NoError(t, err)
		assert.Equal(t, int64(10000), total)
	})
}

func TestApprove_RestoreInterleavingKeepsTotalConsistent(t *testing.T) {
	eachRepo(t, func(t *testing.T, repo storage.Store) {
		svc := newTestService(repo)
		ingestTx(t, svc, "TX1", 700)

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				_, _ = svc.Approve(context.Background(), "TX1", "")
			}()
			go func() {
				defer wg.Done()
				_, _ = svc.Restore(context.Background(), "TX1")
			}()
		}
		wg.Wait()

		tx, err := repo.Get(context.Background(), "TX1")
		require.NoError(t, err)
		total, err := repo.DailyTotal(context.Background(), "2024-01-01")
		require.NoError(t, err)

		if tx.Status == domain.TransactionStatusApproved {
			assert.Equal(t, int64(700), total)
		} else {
			assert.Equal(t, int64(0), total)
		}
	})
}

func TestResetApproved(t *testing.T) {
	eachRepo(t, func(t *testing.T, repo storage.Store) {
		svc := newTestService(repo)
		ctx := context.Background()
		ingestTx(t, svc, "TX1", 100)
		ingestTx(t, svc, "TX2", 200)
		ingestTx(t, svc, "TX3", 300)

		_, err := svc.Approve(ctx, "TX1", "")
		require.NoError(t, err)
		_, err = svc.Approve(ctx, "TX2", "")
		require.NoError(t, err)
		_, err = svc.Cancel(ctx, "TX3")
		require.NoError(t, err)

		count, err := svc.ResetApproved(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		total, err := repo.DailyTotal(ctx, "2024-01-01")
		require.NoError(t, err)
		assert.Equal(t, int64(0), total)

		newOnes, err := repo.GetByStatus(ctx, domain.TransactionStatusNew, 0)
		require.NoError(t, err)
		assert.Len(t, newOnes, 2)

		cancelled, err := repo.GetByStatus(ctx, domain.TransactionStatusCancelled, 0)
		require.NoError(t, err)
		assert.Len(t, cancelled, 1)

		count, err = svc.ResetApproved(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})
}

func TestResetCancelled(t *testing.T) {
	eachRepo(t, func(t *testing.T, repo storage.Store) {
		svc := newTestService(repo)
		ctx := context.Background()
		ingestTx(t, svc, "TX1", 100)
		ingestTx(t, svc, "TX2", 200)

		_, err := svc.Cancel(ctx, "TX1")
		require.NoError(t, err)
		_, err = svc.Approve(ctx, "TX2", "")
		require.NoError(t, err)

		count, err := svc.ResetCancelled(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		tx, err := repo.Get(ctx, "TX1")
		require.NoError(t, err)
		assert.Equal(t, domain.TransactionStatusNew, tx.Status)
		assert.Empty(t, tx.CancelerName)

		total, err := repo.DailyTotal(ctx, "2024-01-01")
		require.NoError(t, err)
		assert.Equal(t, int64(200), total)
	})
}

func TestSummary_EmptyStore(t *testing.T) {
	svc := newTestService(storage.NewMemoryStore())

	summary, err := svc.Summary(context.Background(), SummaryQuery{})
	require.NoError(t, err)

	assert.NotNil(t, summary.NewOrders)
	assert.Empty(t, summary.NewOrders)
	assert.Empty(t, summary.ApprovedOrders)
	assert.Empty(t, summary.CancelledOrders)
	assert.Empty(t, summary.DailySummary)
	assert.Equal(t, "0.00", summary.WalletDailyTotal)
}

func TestSummary_LimitAndStatusFilter(t *testing.T) {
	repo := storage.NewMemoryStore()
	svc := newTestService(repo, func(o *Options) {
		o.DefaultLimit = 3
		o.MaxLimit = 4
	})
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		ingestTx(t, svc, fmt.Sprintf("TX%d", i), int64(i+1))
	}
	_, err := svc.Approve(ctx, "TX0", "")
	require.NoError(t, err)

	summary, err := svc.Summary(ctx, SummaryQuery{})
	require.NoError(t, err)
	assert.Len(t, summary.NewOrders, 3)
	assert.Len(t, summary.ApprovedOrders, 1)

	summary, err = svc.Summary(ctx, SummaryQuery{Limit: 100})
	require.NoError(t, err)
	assert.Len(t, summary.NewOrders, 4)

	summary, err = svc.Summary(ctx, SummaryQuery{Status: domain.TransactionStatusApproved})
	require.NoError(t, err)
	assert.Empty(t, summary.NewOrders)
	assert.Len(t, summary.ApprovedOrders, 1)

	_, err = svc.Summary(ctx, SummaryQuery{Status: "bogus"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestSummary_RepositoryError(t *testing.T) {
	repo := new(mockRepository)
	repo.On("GetByStatus", mock.Anything, domain.TransactionStatusNew, 20).
		Return(nil, errors.New("db down")).Once()
	svc := newTestService(repo)

	_, err := svc.Summary(context.Background(), SummaryQuery{})

	assert.EqualError(t, err, "db down")
	repo.AssertExpectations(t)
}

func TestApprove_RepositoryError(t *testing.T) {
	repo := new(mockRepository)
	repo.On("Update", mock.Anything, "TX1", mock.Anything).Return(nil, errors.New("db down")).Once()
	svc := newTestService(repo)

	_, err := svc.Approve(context.Background(), "TX1", "")

	assert.EqualError(t, err, "db down")
	repo.AssertNotCalled(t, "AppendAudit", mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}

func TestHistory_ThroughEventBus(t *testing.T) {
	repo := storage.NewMemoryStore()
	bus := eventbus.New(logger.NewNop(), &eventbus.Config{ChannelBuffer: 16, MaxRetries: 2, RetryBaseDelay: time.Millisecond})
	require.NoError(t, bus.Subscribe(eventbus.EventTypeTransaction, eventbus.NewAuditConsumer(repo, logger.NewNop(), 1)))
	require.NoError(t, bus.Start(context.Background()))
	defer bus.Shutdown(context.Background())

	svc := newTestService(repo, func(o *Options) { o.Bus = bus })
	ctx := logger.WithOperator(context.Background(), "carol")
	ingestTx(t, svc, "TX1", 100)

	_, err := svc.Approve(ctx, "TX1", "")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		entries, err := svc.History(ctx, "TX1")
		return err == nil && len(entries) == 2
	}, time.Second, 5*time.Millisecond)

	entries, err := svc.History(ctx, "TX1")
	require.NoError(t, err)
	for _, entry := range entries {
		if entry.Action == domain.AuditActionApproved {
			assert.Equal(t, "carol", entry.Actor)
		}
	}
}

func TestSlips(t *testing.T) {
	repo := storage.NewMemoryStore()
	slips, err := slipstore.NewDiskStore(t.TempDir(), 1<<20)
	require.NoError(t, err)
	svc := newTestService(repo, func(o *Options) { o.Slips = slips })
	ctx := context.Background()
	ingestTx(t, svc, "TX1", 100)

	_, _, err = svc.OpenSlip(ctx, "TX1")
	assert.ErrorIs(t, err, domain.ErrSlipNotFound)

	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)
	tx, err := svc.AttachSlip(ctx, "TX1", bytes.NewReader(png))
	require.NoError(t, err)
	assert.Equal(t, "TX1.png", tx.SlipRef)

	rc, contentType, err := svc.OpenSlip(ctx, "TX1")
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, png, got)
	assert.Equal(t, "image/png", contentType)

	_, err = svc.AttachSlip(ctx, "TX1", bytes.NewReader([]byte("plain text")))
	assert.ErrorIs(t, err, domain.ErrInvalidSlip)

	_, err = svc.AttachSlip(ctx, "missing", bytes.NewReader(png))
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)

	summary, err := svc.Summary(ctx, SummaryQuery{})
	require.NoError(t, err)
	require.Len(t, summary.NewOrders, 1)
	assert.True(t, summary.NewOrders[0].HasSlip)
}

func TestPurge(t *testing.T) {
	eachRepo(t, func(t *testing.T, repo storage.Store) {
		ctx := context.Background()
		old := newTestService(repo, func(o *Options) {
			o.Clock = func() time.Time { return fixedNow.AddDate(0, 0, -90) }
		})
		ingestTx(t, old, "OLD", 100)
		_, err := old.Approve(ctx, "OLD", "")
		require.NoError(t, err)

		svc := newTestService(repo)
		ingestTx(t, svc, "NEW", 50)
		_, err = svc.Approve(ctx, "NEW", "")
		require.NoError(t, err)

		purged, err := svc.Purge(ctx, 60*24*time.Hour)
		require.NoError(t, err)
		assert.Equal(t, 1, purged)

		_, err = repo.Get(ctx, "OLD")
		assert.ErrorIs(t, err, domain.ErrTransactionNotFound)

		total, err := repo.DailyTotal(ctx, "2024-01-01")
		require.NoError(t, err)
		assert.Equal(t, int64(50), total)

		_, err = svc.Purge(ctx, 0)
		assert.Error(t, err)
	})
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		minor int64
		want  string
	}{
		{0, "0.00"},
		{5, "0.05"},
		{10000, "100.00"},
		{123456, "1234.56"},
		{-250, "-2.50"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatAmount(tt.minor))
	}
}

func TestKeyedMutex(t *testing.T) {
	locks := newKeyedMutex()

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("TX1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, locks.size())

	unlockA := locks.Lock("A")
	unlockB := locks.Lock("B")
	assert.Equal(t, 2, locks.size())
	unlockA()
	unlockB()
	assert.Equal(t, 0, locks.size())
}
