// Package budget derives monthly budget suggestions and coaching tips from
// recent spending.
package budget

import (
	"fmt"
	"math"
	"regexp"
	"sort"

	"github.com/dvloznov/finance-insights/internal/domain"
	"github.com/dvloznov/finance-insights/internal/money"
)

type Impact string

const (
	ImpactHigh   Impact = "high"
	ImpactMedium Impact = "medium"
	ImpactLow    Impact = "low"
)

const (
	MaxTips = 6
	// HighImpactThreshold is the monthly saving above which a tip is high impact.
	HighImpactThreshold = 1000.0
	OtherCategory       = "Other"
	SourceHeuristic     = "heuristic"

	NoteNoData    = "Not enough data. Add transactions to get personalized tips."
	NoteHeuristic = "These suggestions are heuristic; refine with AI providers for deeper personalization."
)

type Tip struct {
	Title    string `json:"title"`
	Detail   string `json:"detail"`
	Impact   Impact `json:"impact"`
	Category string `json:"category,omitempty"`
}

// CategoryBudget holds monthly figures for one category.
type CategoryBudget struct {
	Current   float64 `json:"current"`
	Suggested float64 `json:"suggested"`
}

// Suggestion is the coaching result for one user.
type Suggestion struct {
	Tips            []Tip                     `json:"tips"`
	SavingsEstimate float64                   `json:"savingsEstimate"`
	SuggestedBudget map[string]CategoryBudget `json:"suggestedBudget"`
	Notes           []string                  `json:"notes"`
	Source          string                    `json:"source"`
}

type trim struct {
	pattern *regexp.Regexp
	factor  float64
}

// Discretionary categories are matched independently; the lowest resulting
// suggestion wins.
var trims = []trim{
	{regexp.MustCompile(`(?i)food|dining|restaurant|delivery`), 0.85},
	{regexp.MustCompile(`(?i)entertainment|shopping`), 0.9},
	{regexp.MustCompile(`(?i)transport`), 0.95},
}

// Suggest returns the suggested monthly budget for a category currently
// spending monthly.
func Suggest(category string, monthly float64) float64 {
	suggested := monthly
	for _, t := range trims {
		if t.pattern.MatchString(category) {
			suggested = math.Min(suggested, monthly*t.factor)
		}
	}
	return suggested
}

// Compute builds a Suggestion from the expenses in txs. Income is ignored.
func Compute(txs []domain.Transaction) Suggestion {
	expenses := domain.Expenses(txs)
	first, last, ok := domain.Span(expenses)
	if !ok {
		return Suggestion{
			Tips:            []Tip{},
			SuggestedBudget: map[string]CategoryBudget{},
			Notes:           []string{NoteNoData},
			Source:          SourceHeuristic,
		}
	}

	categories, totals := domain.TotalsByCategory(expenses, OtherCategory)
	monthlyFactor := 30 / float64(domain.WindowDays(first, last))

	out := Suggestion{
		Tips:            []Tip{},
		SuggestedBudget: make(map[string]CategoryBudget, len(categories)),
		Notes:           []string{NoteHeuristic},
		Source:          SourceHeuristic,
	}
	var savings float64
	for _, cat := range categories {
		monthly := totals[cat] * monthlyFactor
		suggested := Suggest(cat, monthly)

		out.SuggestedBudget[cat] = CategoryBudget{
			Current:   money.Round2(monthly),
			Suggested: money.Round2(suggested),
		}
		savings += math.Max(0, monthly-suggested)

		if suggested < monthly {
			out.Tips = append(out.Tips, newTip(cat, monthly, suggested))
		}
	}

	sort.SliceStable(out.Tips, func(i, j int) bool {
		return out.Tips[i].Impact == ImpactHigh && out.Tips[j].Impact != ImpactHigh
	})
	if len(out.Tips) > MaxTips {
		out.Tips = out.Tips[:MaxTips]
	}
	out.SavingsEstimate = money.Round2(savings)
	return out
}

func newTip(category string, monthly, suggested float64) Tip {
	impact := ImpactMedium
	if monthly-suggested > HighImpactThreshold {
		impact = ImpactHigh
	}
	pct := 100 - suggested/monthly*100
	return Tip{
		Title: fmt.Sprintf("Reduce %s by %s%%", category, money.Whole(pct)),
		Detail: fmt.Sprintf("Average monthly spend is ~%s. Aim for ~%s by planning purchases and avoiding impulse buys.",
			money.Whole(monthly), money.Whole(suggested)),
		Impact:   impact,
		Category: category,
	}
}
