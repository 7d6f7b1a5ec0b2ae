package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/finance-insights/internal/domain"
)

const (
	DefaultDataset    = "finance"
	transactionsTable = "transactions"
)

// TransactionRepository reads transaction history from BigQuery. It holds a
// shared client to avoid creating a connection per query.
type TransactionRepository struct {
	client  *bigquery.Client
	project string
	dataset string
}

// NewTransactionRepository creates a repository with its own client.
func NewTransactionRepository(ctx context.Context, project, dataset string) (*TransactionRepository, error) {
	if project == "" {
		return nil, fmt.Errorf("NewTransactionRepository: project ID is required")
	}
	client, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("NewTransactionRepository: creating client: %w", err)
	}
	return NewTransactionRepositoryWithClient(client, project, dataset), nil
}

// NewTransactionRepositoryWithClient wraps an existing client.
func NewTransactionRepositoryWithClient(client *bigquery.Client, project, dataset string) *TransactionRepository {
	if dataset == "" {
		dataset = DefaultDataset
	}
	return &TransactionRepository{client: client, project: project, dataset: dataset}
}

// Close closes the BigQuery client connection.
func (r *TransactionRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// transactionsSinceSQL selects one user's transactions from a date onwards.
func transactionsSinceSQL(project, dataset string) string {
	return fmt.Sprintf(`
		SELECT
			t.transaction_date,
			t.amount,
			t.raw_description,
			t.category_name
		FROM `+"`%s.%s.%s`"+` t
		WHERE t.user_id = @user_id
		  AND t.transaction_date >= @since
		ORDER BY t.transaction_date, t.created_ts
	`, project, dataset, transactionsTable)
}

// ListTransactionsSince implements store.TransactionStore.
func (r *TransactionRepository) ListTransactionsSince(ctx context.Context, userID string, since time.Time) ([]domain.Transaction, error) {
	q := r.client.Query(transactionsSinceSQL(r.project, r.dataset))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "since", Value: civil.DateOf(since)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListTransactionsSince: query read: %w", err)
	}

	var out []domain.Transaction
	for {
		var row TransactionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListTransactionsSince: iter next: %w", err)
		}
		out = append(out, row.ToDomain())
	}

	return out, nil
}
