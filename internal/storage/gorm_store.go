package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/grachmannico95/wallet-webhook/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore persists transactions in a relational database. Every mutation
// runs in one database transaction together with its daily_totals change.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Migrate(ctx context.Context) error {
	err := s.db.WithContext(ctx).AutoMigrate(
		&transactionRow{},
		&dailyTotalRow{},
		&auditRow{},
		&processedEventRow{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

func (s *GormStore) InsertIfAbsent(ctx context.Context, tx *domain.Transaction) (bool, error) {
	row := toRow(*tx)

	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row)
	if res.Error != nil {
		return false, fmt.Errorf("failed to insert transaction: %w", res.Error)
	}

	return res.RowsAffected == 1, nil
}

func (s *GormStore) Get(ctx context.Context, id string) (*domain.Transaction, error) {
	var row transactionRow
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	tx := row.toDomain()
	return &tx, nil
}

func (s *GormStore) GetByStatus(ctx context.Context, status domain.TransactionStatus, limit int) ([]domain.Transaction, error) {
	query := s.db.WithContext(ctx).
		Where("status = ?", string(status)).
		Order(orderColumn(status) + " DESC").
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []transactionRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	txs := make([]domain.Transaction, 0, len(rows))
	for _, row := range rows {
		txs = append(txs, row.toDomain())
	}

	return txs, nil
}

func (s *GormStore) Update(ctx context.Context, id string, mutate domain.Mutator) (*domain.Transaction, error) {
	var updated domain.Transaction

	err := s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		var row transactionRow
		if err := s.forUpdate(db).Where("id = ?", id).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrTransactionNotFound
			}
			return err
		}

		tx := row.toDomain()
		delta, err := mutate(&tx)
		if err != nil {
			return err
		}

		next := toRow(tx)
		if err := db.Save(&next).Error; err != nil {
			return err
		}

		if err := applyDelta(db, delta); err != nil {
			return err
		}

		updated = tx
		return nil
	})
	if err != nil {
		return nil, wrapStorageErr("failed to update transaction", err)
	}

	return &updated, nil
}

func (s *GormStore) UpdateByStatus(ctx context.Context, status domain.TransactionStatus, mutate domain.Mutator) (int, error) {
	count := 0

	err := s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		var rows []transactionRow
		if err := s.forUpdate(db).Where("status = ?", string(status)).Order("id").Find(&rows).Error; err != nil {
			return err
		}

		for _, row := range rows {
			tx := row.toDomain()
			delta, err := mutate(&tx)
			if err != nil {
				return err
			}

			next := toRow(tx)
			if err := db.Save(&next).Error; err != nil {
				return err
			}
			if err := applyDelta(db, delta); err != nil {
				return err
			}
		}

		count = len(rows)
		return nil
	})
	if err != nil {
		return 0, wrapStorageErr("failed to update transactions", err)
	}

	return count, nil
}

func (s *GormStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	purged := 0

	err := s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		if err := db.Where("created_at < ?", cutoff.UTC()).Delete(&processedEventRow{}).Error; err != nil {
			return err
		}

		var rows []transactionRow
		if err := s.forUpdate(db).Where("created_at < ?", cutoff.UTC()).Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		ids := make([]string, 0, len(rows))
		touched := make(map[string]bool)
		for _, row := range rows {
			ids = append(ids, row.ID)
			if row.Status != string(domain.TransactionStatusApproved) {
				continue
			}
			delta := domain.AggregateDelta{Date: row.BusinessDate, Amount: -row.Amount}
			if err := applyDelta(db, delta); err != nil {
				return err
			}
			touched[row.BusinessDate] = true
		}

		for date := range touched {
			if err := db.Where("date = ? AND total = 0", date).Delete(&dailyTotalRow{}).Error; err != nil {
				return err
			}
		}

		if err := db.Where("transaction_id IN ?", ids).Delete(&auditRow{}).Error; err != nil {
			return err
		}

		res := db.Where("id IN ?", ids).Delete(&transactionRow{})
		if res.Error != nil {
			return res.Error
		}

		purged = int(res.RowsAffected)
		return nil
	})
	if err != nil {
		return 0, wrapStorageErr("failed to purge transactions", err)
	}

	return purged, nil
}

func (s *GormStore) DailyTotals(ctx context.Context, limit int) ([]domain.DailyTotal, error) {
	query := s.db.WithContext(ctx).Order("date DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []dailyTotalRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list daily totals: %w", err)
	}

	totals := make([]domain.DailyTotal, 0, len(rows))
	for _, row := range rows {
		totals = append(totals, domain.DailyTotal{Date: row.Date, Total: row.Total})
	}

	return totals, nil
}

func (s *GormStore) DailyTotal(ctx context.Context, date string) (int64, error) {
	var row dailyTotalRow
	err := s.db.WithContext(ctx).Where("date = ?", date).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get daily total: %w", err)
	}

	return row.Total, nil
}

func (s *GormStore) AppendAudit(ctx context.Context, entry domain.AuditEntry) error {
	row := auditRow{
		ID:            entry.ID,
		TransactionID: entry.TransactionID,
		Action:        string(entry.Action),
		Actor:         entry.Actor,
		Amount:        entry.Amount,
		At:            entry.At.UTC(),
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	return nil
}

func (s *GormStore) ListAudit(ctx context.Context, transactionID string) ([]domain.AuditEntry, error) {
	var rows []auditRow
	err := s.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}

	entries := make([]domain.AuditEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, domain.AuditEntry{
			ID:            row.ID,
			TransactionID: row.TransactionID,
			Action:        domain.AuditAction(row.Action),
			Actor:         row.Actor,
			Amount:        row.Amount,
			At:            row.At,
		})
	}

	return entries, nil
}

func (s *GormStore) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&processedEventRow{}).Where("event_id = ?", eventID).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check processed event: %w", err)
	}

	return count > 0, nil
}

func (s *GormStore) MarkEventProcessed(ctx context.Context, eventID string) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&processedEventRow{EventID: eventID, CreatedAt: time.Now().UTC()}).Error
	if err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}

	return nil
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// forUpdate adds SELECT ... FOR UPDATE where the dialect has row locks.
// SQLite serialises writers on its single connection instead.
func (s *GormStore) forUpdate(db *gorm.DB) *gorm.DB {
	if s.db.Dialector.Name() == "sqlite" {
		return db
	}
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

func applyDelta(db *gorm.DB, delta domain.AggregateDelta) error {
	if delta.IsZero() {
		return nil
	}

	now := time.Now()
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"total":      gorm.Expr("total + ?", delta.Amount),
			"updated_at": now,
		}),
	}).Create(&dailyTotalRow{Date: delta.Date, Total: delta.Amount, UpdatedAt: now}).Error
}

// wrapStorageErr keeps domain errors unwrapped-comparable and labels the rest.
func wrapStorageErr(msg string, err error) error {
	if errors.Is(err, domain.ErrTransactionNotFound) || errors.Is(err, domain.ErrInvalidTransition) {
		return err
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func orderColumn(status domain.TransactionStatus) string {
	switch status {
	case domain.TransactionStatusApproved:
		return "approved_at"
	case domain.TransactionStatusCancelled:
		return "cancelled_at"
	default:
		return "created_at"
	}
}
