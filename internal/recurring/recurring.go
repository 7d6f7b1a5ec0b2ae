// Package recurring finds charges that repeat on a regular cadence and
// predicts when each is next due.
package recurring

import (
	"math"
	"sort"
	"time"

	"github.com/dvloznov/finance-insights/internal/cadence"
	"github.com/dvloznov/finance-insights/internal/domain"
	"github.com/dvloznov/finance-insights/internal/merchant"
	"github.com/dvloznov/finance-insights/internal/money"
)

const (
	DefaultHorizonDays = 90
	DefaultLimit       = 20
	// FallbackPeriodDays is used when a cadence carries no period.
	FallbackPeriodDays = 30
	OtherCategory      = "Other"
	SourceHeuristic    = "heuristic"
)

// Item is one predicted recurring charge.
type Item struct {
	Merchant    string          `json:"merchant"`
	Category    string          `json:"category"`
	AvgAmount   float64         `json:"avgAmount"`
	Cadence     cadence.Cadence `json:"cadence"`
	NextDueDate time.Time       `json:"nextDueDate"`
	Confidence  float64         `json:"confidence"`
	Notes       []string        `json:"notes"`
	Source      string          `json:"source"`
}

// Options controls Find. Zero values select the defaults.
type Options struct {
	Now         time.Time
	HorizonDays int
	Limit       int
}

func (o Options) withDefaults() Options {
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	if o.HorizonDays <= 0 {
		o.HorizonDays = DefaultHorizonDays
	}
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	return o
}

// Group is the charges sharing a merchant key and category.
type Group struct {
	Merchant string
	Category string
	Dates    []time.Time
	Amounts  []float64
}

type groupKey struct {
	merchant string
	category string
}

// GroupTransactions buckets transactions by (normalized merchant, category).
// Zero amounts are skipped, amounts are absolute, and dates are truncated to
// the day, de-duplicated and sorted ascending.
func GroupTransactions(txs []domain.Transaction) []*Group {
	index := make(map[groupKey]*Group)
	var groups []*Group
	seen := make(map[groupKey]map[time.Time]bool)

	for _, t := range txs {
		amt := math.Abs(t.Amount)
		if amt == 0 {
			continue
		}
		desc := t.Description
		if desc == "" {
			desc = t.Category
		}
		key := groupKey{merchant: merchant.Normalize(desc), category: t.CategoryOr(OtherCategory)}
		g, ok := index[key]
		if !ok {
			g = &Group{Merchant: key.merchant, Category: key.category}
			index[key] = g
			seen[key] = make(map[time.Time]bool)
			groups = append(groups, g)
		}
		g.Amounts = append(g.Amounts, amt)
		day := domain.Day(t.Date)
		if !seen[key][day] {
			seen[key][day] = true
			g.Dates = append(g.Dates, day)
		}
	}

	for _, g := range groups {
		sort.Slice(g.Dates, func(i, j int) bool { return g.Dates[i].Before(g.Dates[j]) })
	}
	return groups
}

// Find returns the recurring charges due within opts.HorizonDays of opts.Now,
// soonest first, at most opts.Limit of them.
func Find(txs []domain.Transaction, opts Options) []Item {
	opts = opts.withDefaults()

	items := make([]Item, 0)
	for _, g := range GroupTransactions(txs) {
		if len(g.Dates) < 2 {
			continue
		}
		res := cadence.Detect(g.Dates)
		if res.Cadence == cadence.Unknown {
			continue
		}
		period := FallbackPeriodDays
		if res.PeriodDays != nil {
			period = *res.PeriodDays
		}
		last := g.Dates[len(g.Dates)-1]
		items = append(items, Item{
			Merchant:    g.Merchant,
			Category:    g.Category,
			AvgAmount:   money.Round2(mean(g.Amounts)),
			Cadence:     res.Cadence,
			NextDueDate: last.AddDate(0, 0, period),
			Confidence:  res.Confidence,
			Notes:       []string{},
			Source:      SourceHeuristic,
		})
	}

	horizon := time.Duration(opts.HorizonDays) * 24 * time.Hour
	due := items[:0]
	for _, it := range items {
		if it.NextDueDate.Sub(opts.Now) <= horizon {
			due = append(due, it)
		}
	}

	sort.SliceStable(due, func(i, j int) bool {
		a, b := due[i], due[j]
		if !a.NextDueDate.Equal(b.NextDueDate) {
			return a.NextDueDate.Before(b.NextDueDate)
		}
		if a.Merchant != b.Merchant {
			return a.Merchant < b.Merchant
		}
		return a.Category < b.Category
	})

	if len(due) > opts.Limit {
		due = due[:opts.Limit]
	}
	return due
}

func mean(xs []float64) float64 {
	return money.Sum(xs...) / float64(len(xs))
}
