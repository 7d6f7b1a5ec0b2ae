package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dvloznov/finance-insights/internal/domain"
)

// MemoryStore is an in-memory TransactionStore, safe for concurrent use.
// Data is lost on restart; it backs local development and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	txns map[string][]domain.Transaction
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		txns: make(map[string][]domain.Transaction),
	}
}

// Add appends transactions to a user's history.
func (s *MemoryStore) Add(userID string, txs ...domain.Transaction) error {
	if userID == "" {
		return fmt.Errorf("MemoryStore.Add: user ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all := append(s.txns[userID], txs...)
	sort.SliceStable(all, func(i, j int) bool { return all[i].Date.Before(all[j].Date) })
	s.txns[userID] = all
	return nil
}

// ListTransactionsSince implements TransactionStore.
func (s *MemoryStore) ListTransactionsSince(ctx context.Context, userID string, since time.Time) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Return copies so callers cannot modify stored history.
	out := make([]domain.Transaction, 0, len(s.txns[userID]))
	for _, t := range s.txns[userID] {
		if !t.Date.Before(since) {
			out = append(out, t)
		}
	}
	return out, nil
}

// Users returns the IDs with stored history, sorted.
func (s *MemoryStore) Users() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]string, 0, len(s.txns))
	for u := range s.txns {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}
