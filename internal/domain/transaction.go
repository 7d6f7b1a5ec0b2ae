package domain

import (
	"math"
	"time"
)

// Transaction is one row of a user's history as the analytics read it.
// Amount is signed: positive is money spent, negative is income or a refund.
type Transaction struct {
	Date        time.Time `json:"date"`
	Amount      float64   `json:"amount"`
	Category    string    `json:"category"`
	Description string    `json:"description,omitempty"`
}

// IsExpense reports whether the transaction is money going out.
func (t Transaction) IsExpense() bool {
	return t.Amount > 0
}

// Expenses returns the outgoing transactions in their original order.
func Expenses(txs []Transaction) []Transaction {
	out := make([]Transaction, 0, len(txs))
	for _, t := range txs {
		if t.IsExpense() {
			out = append(out, t)
		}
	}
	return out
}

// CategoryOr returns the category, or fallback when it is blank.
func (t Transaction) CategoryOr(fallback string) string {
	if t.Category == "" {
		return fallback
	}
	return t.Category
}

// Day truncates a timestamp to its calendar day in the timestamp's location.
func Day(ts time.Time) time.Time {
	y, m, d := ts.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, ts.Location())
}

// Span returns the earliest and latest transaction dates. ok is false when
// txs is empty.
func Span(txs []Transaction) (first, last time.Time, ok bool) {
	for i, t := range txs {
		if i == 0 || t.Date.Before(first) {
			first = t.Date
		}
		if i == 0 || t.Date.After(last) {
			last = t.Date
		}
	}
	return first, last, len(txs) > 0
}

// WindowDays is the inclusive number of days covered between first and last:
// the whole-day span rounded up, at least 1, plus one.
func WindowDays(first, last time.Time) int {
	span := math.Abs(last.Sub(first).Hours()) / 24
	days := int(math.Ceil(span))
	if days < 1 {
		days = 1
	}
	return days + 1
}

// TotalsByCategory sums amounts per category, counting blank categories under
// fallback. Categories are returned in first-seen order.
func TotalsByCategory(txs []Transaction, fallback string) ([]string, map[string]float64) {
	var order []string
	totals := make(map[string]float64)
	for _, t := range txs {
		cat := t.CategoryOr(fallback)
		if _, ok := totals[cat]; !ok {
			order = append(order, cat)
		}
		totals[cat] += t.Amount
	}
	return order, totals
}
