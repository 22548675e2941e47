package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/grachmannico95/wallet-webhook/internal/domain"
)

// MemoryStore keeps everything in process. A single lock covers records and
// totals so a status write and its aggregate change land together.
type MemoryStore struct {
	transactions    map[string]*domain.Transaction
	dailyTotals     map[string]int64
	audits          map[string][]domain.AuditEntry
	processedEvents map[string]time.Time
	mu              sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		transactions:    make(map[string]*domain.Transaction),
		dailyTotals:     make(map[string]int64),
		audits:          make(map[string][]domain.AuditEntry),
		processedEvents: make(map[string]time.Time),
	}
}

func (s *MemoryStore) InsertIfAbsent(ctx context.Context, tx *domain.Transaction) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.transactions[tx.ID]; exists {
		return false, nil
	}

	stored := tx.Clone()
	s.transactions[tx.ID] = &stored

	return true, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, exists := s.transactions[id]
	if !exists {
		return nil, domain.ErrTransactionNotFound
	}

	out := tx.Clone()
	return &out, nil
}

func (s *MemoryStore) GetByStatus(ctx context.Context, status domain.TransactionStatus, limit int) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	filtered := []domain.Transaction{}
	for _, tx := range s.transactions {
		if tx.Status == status {
			filtered = append(filtered, tx.Clone())
		}
	}

	sortNewestFirst(filtered)

	if limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
	}

	return filtered, nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, mutate domain.Mutator) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.transactions[id]
	if !exists {
		return nil, domain.ErrTransactionNotFound
	}

	next := current.Clone()
	delta, err := mutate(&next)
	if err != nil {
		return nil, err
	}

	s.transactions[id] = &next
	s.applyDelta(delta)

	out := next.Clone()
	return &out, nil
}

func (s *MemoryStore) UpdateByStatus(ctx context.Context, status domain.TransactionStatus, mutate domain.Mutator) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0)
	for id, tx := range s.transactions {
		if tx.Status == status {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	// Mutate copies first so a failure leaves the store untouched.
	updated := make([]domain.Transaction, 0, len(ids))
	deltas := make([]domain.AggregateDelta, 0, len(ids))
	for _, id := range ids {
		next := s.transactions[id].Clone()
		delta, err := mutate(&next)
		if err != nil {
			return 0, err
		}
		updated = append(updated, next)
		deltas = append(deltas, delta)
	}

	for i := range updated {
		tx := updated[i]
		s.transactions[tx.ID] = &tx
		s.applyDelta(deltas[i])
	}

	return len(updated), nil
}

func (s *MemoryStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for eventID, at := range s.processedEvents {
		if at.Before(cutoff) {
			delete(s.processedEvents, eventID)
		}
	}

	purged := 0
	for id, tx := range s.transactions {
		if !tx.CreatedAt.Before(cutoff) {
			continue
		}
		if tx.Status == domain.TransactionStatusApproved {
			s.applyDelta(domain.AggregateDelta{Date: tx.BusinessDate, Amount: -tx.Amount})
			if s.dailyTotals[tx.BusinessDate] == 0 {
				delete(s.dailyTotals, tx.BusinessDate)
			}
		}
		delete(s.transactions, id)
		delete(s.audits, id)
		purged++
	}

	return purged, nil
}

func (s *MemoryStore) DailyTotals(ctx context.Context, limit int) ([]domain.DailyTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := make([]domain.DailyTotal, 0, len(s.dailyTotals))
	for date, total := range s.dailyTotals {
		totals = append(totals, domain.DailyTotal{Date: date, Total: total})
	}

	sort.Slice(totals, func(i, j int) bool {
		return totals[i].Date > totals[j].Date
	})

	if limit > 0 && len(totals) > limit {
		totals = totals[:limit]
	}

	return totals, nil
}

func (s *MemoryStore) DailyTotal(ctx context.Context, date string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.dailyTotals[date], nil
}

func (s *MemoryStore) AppendAudit(ctx context.Context, entry domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.audits[entry.TransactionID] {
		if existing.ID == entry.ID {
			return nil
		}
	}
	s.audits[entry.TransactionID] = append(s.audits[entry.TransactionID], entry)

	return nil
}

func (s *MemoryStore) ListAudit(ctx context.Context, transactionID string) ([]domain.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]domain.AuditEntry, len(s.audits[transactionID]))
	copy(entries, s.audits[transactionID])

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].At.Before(entries[j].At)
	})

	return entries, nil
}

func (s *MemoryStore) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.processedEvents[eventID]
	return ok, nil
}

func (s *MemoryStore) MarkEventProcessed(ctx context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.processedEvents[eventID]; !ok {
		s.processedEvents[eventID] = time.Now()
	}

	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// applyDelta must be called with mu held.
func (s *MemoryStore) applyDelta(delta domain.AggregateDelta) {
	if delta.IsZero() {
		return
	}
	s.dailyTotals[delta.Date] += delta.Amount
}

func sortNewestFirst(txs []domain.Transaction) {
	sort.Slice(txs, func(i, j int) bool {
		ti, tj := txs[i].ActionTime(), txs[j].ActionTime()
		if ti.Equal(tj) {
			return txs[i].ID > txs[j].ID
		}
		return ti.After(tj)
	})
}
