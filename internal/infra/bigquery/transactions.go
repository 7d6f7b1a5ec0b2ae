package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/dvloznov/finance-insights/internal/domain"
)

// TransactionRow is the subset of the transactions table read for analysis.
type TransactionRow struct {
	TransactionDate civil.Date          `bigquery:"transaction_date"` // REQUIRED
	Amount          *big.Rat            `bigquery:"amount"`           // REQUIRED NUMERIC
	RawDescription  string              `bigquery:"raw_description"`  // REQUIRED STRING
	CategoryName    bigquery.NullString `bigquery:"category_name"`    // NULLABLE
}

// ToDomain converts the row. NUMERIC amounts are stored with money-in
// positive, so the sign is flipped to make spending positive.
func (r *TransactionRow) ToDomain() domain.Transaction {
	var amount float64
	if r.Amount != nil {
		amount, _ = r.Amount.Float64()
	}
	t := domain.Transaction{
		Date:        r.TransactionDate.In(time.UTC),
		Amount:      -amount,
		Description: r.RawDescription,
	}
	if r.CategoryName.Valid {
		t.Category = r.CategoryName.StringVal
	}
	return t
}
