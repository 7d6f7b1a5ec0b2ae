// Package store defines where transaction histories are read from.
package store

import (
	"context"
	"time"

	"github.com/dvloznov/finance-insights/internal/domain"
)

//go:generate mockgen -source=store.go -destination=mock_store.go -package=store

// TransactionStore returns a user's transactions dated on or after since,
// ordered by date ascending.
type TransactionStore interface {
	ListTransactionsSince(ctx context.Context, userID string, since time.Time) ([]domain.Transaction, error)
}
