package insights

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dvloznov/finance-insights/internal/budget"
	"github.com/dvloznov/finance-insights/internal/forecast"
	"github.com/dvloznov/finance-insights/internal/provider"
	"github.com/dvloznov/finance-insights/internal/recurring"
)

const jsonOnlyRules = "Return ONLY valid raw JSON.\n" +
	"Do NOT wrap the response in code fences.\n" +
	"Do NOT add any text before or after the JSON.\n"

type recurringCandidate struct {
	Merchant    string  `json:"merchant"`
	Category    string  `json:"category"`
	AvgAmount   float64 `json:"avgAmount"`
	Cadence     string  `json:"cadence"`
	NextDueDate string  `json:"nextDueDate"`
	Confidence  float64 `json:"confidence"`
}

func recurringPrompt(items []recurring.Item) provider.Prompt {
	candidates := make([]recurringCandidate, 0, len(items))
	for _, it := range items {
		candidates = append(candidates, recurringCandidate{
			Merchant:    it.Merchant,
			Category:    it.Category,
			AvgAmount:   it.AvgAmount,
			Cadence:     string(it.Cadence),
			NextDueDate: it.NextDueDate.Format(time.RFC3339),
			Confidence:  it.Confidence,
		})
	}
	summary, _ := json.Marshal(candidates)

	return provider.Prompt{
		System: "Detect recurring charges and predict next due dates. Respond with strict JSON.",
		Text: "Given these candidate recurring charges: " + string(summary) + "\n\n" +
			"Refine them and output a JSON array of objects in the shape " +
			"[{\"merchant\": string, \"category\": string, \"avgAmount\": number, " +
			"\"cadence\": \"weekly\"|\"biweekly\"|\"monthly\"|\"yearly\", " +
			"\"nextDueDate\": ISO 8601 date, \"confidence\": number between 0 and 1, \"notes\": string[]}].\n\n" +
			jsonOnlyRules +
			"Output must begin with \"[\" and end with \"]\".\n",
		Format: provider.FormatArray,
	}
}

func coachPrompt(daysAnalyzed int, heuristic budget.Suggestion) provider.Prompt {
	monthly := make(map[string]float64, len(heuristic.SuggestedBudget))
	for cat, b := range heuristic.SuggestedBudget {
		monthly[cat] = b.Current
	}
	summary, _ := json.Marshal(monthly)

	return provider.Prompt{
		System: "You are a budgeting coach that gives concise, actionable tips with estimated savings.",
		Text: fmt.Sprintf("Given user spending over %d days with per-category monthly spend %s, ", daysAnalyzed, summary) +
			"suggest concise, actionable tips for next month as a JSON object in the shape " +
			"{\"tips\": [{\"title\": string, \"detail\": string, \"impact\": \"high\"|\"medium\"|\"low\", \"category\": string}], " +
			"\"savingsEstimate\": number, " +
			"\"suggestedBudget\": {category: {\"current\": number, \"suggested\": number}}, " +
			"\"notes\": string[]}.\n\n" +
			jsonOnlyRules,
		Format: provider.FormatObject,
	}
}

type forecastSummary struct {
	DaysAnalyzed int                           `json:"daysAnalyzed"`
	Categories   map[string]map[string]float64 `json:"categories"`
}

func forecastPrompt(heuristic forecast.Result) provider.Prompt {
	summary := forecastSummary{
		DaysAnalyzed: heuristic.DaysAnalyzed,
		Categories:   make(map[string]map[string]float64, len(heuristic.CategoryBreakdown)),
	}
	for cat, c := range heuristic.CategoryBreakdown {
		summary.Categories[cat] = map[string]float64{"total": c.Total}
	}
	encoded, _ := json.Marshal(summary)

	return provider.Prompt{
		System: "You are an assistant that predicts monthly expenses from recent transaction summaries.",
		Text: fmt.Sprintf("Given the recent spending summary over %d days: %s, ", heuristic.DaysAnalyzed, encoded) +
			"predict the total spending for the next 30 days and a per-category breakdown as a JSON object in the shape " +
			"{\"total\": number, \"categories\": {category: number}}.\n\n" +
			jsonOnlyRules,
		Format: provider.FormatObject,
	}
}
