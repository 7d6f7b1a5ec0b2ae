// Package firestore reads transaction history from Cloud Firestore.
package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/finance-insights/internal/domain"
)

const transactionsCollection = "transactions"

// TransactionDoc is a stored transaction document. Field names follow the Go
// struct names, the way the documents are written.
type TransactionDoc struct {
	UserId      string    `firestore:"UserId"`
	Date        time.Time `firestore:"Date"`
	Amount      float64   `firestore:"Amount"`
	Category    string    `firestore:"Category"`
	Description string    `firestore:"Description"`
}

func (d TransactionDoc) ToDomain() domain.Transaction {
	return domain.Transaction{
		Date:        d.Date,
		Amount:      d.Amount,
		Category:    d.Category,
		Description: d.Description,
	}
}

// TransactionStore implements store.TransactionStore on Firestore.
type TransactionStore struct {
	client *firestore.Client
}

func NewTransactionStore(client *firestore.Client) *TransactionStore {
	return &TransactionStore{client: client}
}

// ListTransactionsSince implements store.TransactionStore.
func (s *TransactionStore) ListTransactionsSince(ctx context.Context, userID string, since time.Time) ([]domain.Transaction, error) {
	// Range filters require ordering on the same field first.
	iter := s.client.Collection(transactionsCollection).
		Where("UserId", "==", userID).
		Where("Date", ">=", since).
		OrderBy("Date", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var out []domain.Transaction
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListTransactionsSince: iter next: %w", err)
		}
		var d TransactionDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, fmt.Errorf("ListTransactionsSince: decode %s: %w", doc.Ref.ID, err)
		}
		out = append(out, d.ToDomain())
	}
	return out, nil
}
