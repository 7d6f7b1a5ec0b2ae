package insights

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dvloznov/finance-insights/internal/budget"
	"github.com/dvloznov/finance-insights/internal/cadence"
	"github.com/dvloznov/finance-insights/internal/forecast"
	"github.com/dvloznov/finance-insights/internal/money"
	"github.com/dvloznov/finance-insights/internal/provider"
	"github.com/dvloznov/finance-insights/internal/recurring"
)

type refinedItem struct {
	Merchant    string   `json:"merchant"`
	Category    string   `json:"category"`
	AvgAmount   float64  `json:"avgAmount"`
	Cadence     string   `json:"cadence"`
	NextDueDate string   `json:"nextDueDate"`
	Confidence  float64  `json:"confidence"`
	Notes       []string `json:"notes"`
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable date %q", s)
}

func parseCadence(s string) cadence.Cadence {
	switch c := cadence.Cadence(strings.ToLower(strings.TrimSpace(s))); c {
	case cadence.Weekly, cadence.Biweekly, cadence.Monthly, cadence.Yearly:
		return c
	}
	return cadence.Unknown
}

// parseRecurring accepts a non-empty array of items, each with a merchant
// and a due date.
func parseRecurring(raw []byte) ([]recurring.Item, error) {
	var refined []refinedItem
	if err := json.Unmarshal(raw, &refined); err != nil {
		return nil, err
	}
	if len(refined) == 0 {
		return nil, fmt.Errorf("empty item list: %w", provider.ErrInvalidShape)
	}

	items := make([]recurring.Item, 0, len(refined))
	for i, r := range refined {
		if r.Merchant == "" {
			return nil, fmt.Errorf("item %d has no merchant: %w", i, provider.ErrInvalidShape)
		}
		due, err := parseDate(r.NextDueDate)
		if err != nil {
			return nil, fmt.Errorf("item %d: %v: %w", i, err, provider.ErrInvalidShape)
		}
		notes := r.Notes
		if notes == nil {
			notes = []string{}
		}
		items = append(items, recurring.Item{
			Merchant:    r.Merchant,
			Category:    r.Category,
			AvgAmount:   money.Round2(r.AvgAmount),
			Cadence:     parseCadence(r.Cadence),
			NextDueDate: due,
			Confidence:  money.Round2(math.Max(0, math.Min(1, r.Confidence))),
			Notes:       notes,
		})
	}
	return items, nil
}

// parseCoach accepts any object carrying a tips field.
func parseCoach(raw []byte) (budget.Suggestion, error) {
	var s budget.Suggestion
	if err := json.Unmarshal(raw, &s); err != nil {
		return s, err
	}
	if s.Tips == nil {
		return s, fmt.Errorf("missing tips: %w", provider.ErrInvalidShape)
	}
	if s.SuggestedBudget == nil {
		s.SuggestedBudget = map[string]budget.CategoryBudget{}
	}
	if s.Notes == nil {
		s.Notes = []string{}
	}
	s.SavingsEstimate = money.Round2(s.SavingsEstimate)
	return s, nil
}

type refinedForecast struct {
	Total      *float64           `json:"total"`
	Categories map[string]float64 `json:"categories"`
}

// parseForecast accepts an object with a numeric total. Categories carry
// only a 30 day prediction.
func parseForecast(daysAnalyzed int) func(raw []byte) (forecast.Result, error) {
	return func(raw []byte) (forecast.Result, error) {
		var r refinedForecast
		if err := json.Unmarshal(raw, &r); err != nil {
			return forecast.Result{}, err
		}
		if r.Total == nil {
			return forecast.Result{}, fmt.Errorf("missing numeric total: %w", provider.ErrInvalidShape)
		}
		breakdown := make(map[string]forecast.CategoryForecast, len(r.Categories))
		for cat, v := range r.Categories {
			breakdown[cat] = forecast.CategoryForecast{PredictedNext30Days: money.Round2(v)}
		}
		return forecast.Result{
			DaysAnalyzed:            daysAnalyzed,
			PredictedNextMonthTotal: money.Round2(*r.Total),
			CategoryBreakdown:       breakdown,
		}, nil
	}
}
