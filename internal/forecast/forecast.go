// Package forecast projects the next 30 days of spending from recent daily
// averages.
package forecast

import (
	"github.com/dvloznov/finance-insights/internal/domain"
	"github.com/dvloznov/finance-insights/internal/money"
)

const (
	HorizonDays           = 30
	UncategorizedCategory = "uncategorized"
	MethodHeuristic       = "heuristic"
)

// CategoryForecast is the projection for one category. Provider-refined
// forecasts only fill PredictedNext30Days.
type CategoryForecast struct {
	Total               float64 `json:"total"`
	AvgPerDay           float64 `json:"avgPerDay"`
	PredictedNext30Days float64 `json:"predictedNext30Days"`
}

type Result struct {
	DaysAnalyzed            int                         `json:"daysAnalyzed"`
	PredictedNextMonthTotal float64                     `json:"predictedNextMonthTotal"`
	CategoryBreakdown       map[string]CategoryForecast `json:"categoryBreakdown"`
	Method                  string                      `json:"method"`
}

// Compute forecasts the expenses in txs. The monthly total is derived from
// the unrounded per-day averages, not from the rounded category figures.
func Compute(txs []domain.Transaction) Result {
	expenses := domain.Expenses(txs)
	first, last, ok := domain.Span(expenses)
	if !ok {
		return Result{
			CategoryBreakdown: map[string]CategoryForecast{},
			Method:            MethodHeuristic,
		}
	}

	windowDays := domain.WindowDays(first, last)
	categories, totals := domain.TotalsByCategory(expenses, UncategorizedCategory)

	breakdown := make(map[string]CategoryForecast, len(categories))
	var totalPerDay float64
	for _, cat := range categories {
		avgPerDay := totals[cat] / float64(windowDays)
		breakdown[cat] = CategoryForecast{
			Total:               money.Round2(totals[cat]),
			AvgPerDay:           money.Round(avgPerDay, 4),
			PredictedNext30Days: money.Round2(avgPerDay * HorizonDays),
		}
		totalPerDay += avgPerDay
	}

	return Result{
		DaysAnalyzed:            windowDays,
		PredictedNextMonthTotal: money.Round2(totalPerDay * HorizonDays),
		CategoryBreakdown:       breakdown,
		Method:                  MethodHeuristic,
	}
}
