package insights

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/dvloznov/finance-insights/internal/budget"
	"github.com/dvloznov/finance-insights/internal/cadence"
	"github.com/dvloznov/finance-insights/internal/domain"
	"github.com/dvloznov/finance-insights/internal/logger"
	"github.com/dvloznov/finance-insights/internal/provider"
	"github.com/dvloznov/finance-insights/internal/ratelimit"
	"github.com/dvloznov/finance-insights/internal/refine"
	"github.com/dvloznov/finance-insights/internal/store"
)

type fixture struct {
	store  *store.MockTransactionStore
	svc    *Service
	now    time.Time
	logBuf *bytes.Buffer
}

func newFixture(t *testing.T, maxRequests int, generators map[provider.Name]provider.Generator) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	registry := provider.NewRegistry()
	for name, g := range generators {
		registry.Register(name, g)
	}

	f := &fixture{
		store:  store.NewMockTransactionStore(ctrl),
		now:    time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
		logBuf: &bytes.Buffer{},
	}
	log := logger.NewWithWriter(f.logBuf)
	svc, err := NewService(
		f.store,
		ratelimit.New(maxRequests, time.Hour),
		refine.New(registry, time.Second, log),
		log,
		Options{CacheTTL: 10 * time.Minute, Now: func() time.Time { return f.now }},
	)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) daysAgo(n int) time.Time {
	return f.now.AddDate(0, 0, -n)
}

func (f *fixture) monthlyNetflix() []domain.Transaction {
	return []domain.Transaction{
		{Date: f.daysAgo(60), Amount: 50, Category: "Entertainment", Description: "NETFLIX 1234"},
		{Date: f.daysAgo(30), Amount: 50, Category: "Entertainment", Description: "NETFLIX 5678"},
		{Date: f.daysAgo(0), Amount: 50, Category: "Entertainment", Description: "NETFLIX"},
	}
}

func counting(calls *int32, text string, err error) provider.Generator {
	return provider.GeneratorFunc(func(ctx context.Context, p provider.Prompt) (string, error) {
		atomic.AddInt32(calls, 1)
		return text, err
	})
}

func TestScanRecurring_HeuristicAndCache(t *testing.T) {
	f := newFixture(t, 10, nil)
	f.store.EXPECT().
		ListTransactionsSince(gomock.Any(), "u1", f.daysAgo(180)).
		Return(f.monthlyNetflix(), nil).
		Times(1)

	resp, err := f.svc.ScanRecurring(context.Background(), Request{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "heuristic", resp.Source)
	assert.False(t, resp.Cached)
	assert.Equal(t, cadence.Monthly, resp.Items[0].Cadence)
	assert.Equal(t, 50.0, resp.Items[0].AvgAmount)
	assert.Equal(t, domain.Day(f.now).AddDate(0, 0, 30), resp.Items[0].NextDueDate)

	again, err := f.svc.ScanRecurring(context.Background(), Request{UserID: "u1"})
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Equal(t, "heuristic", again.Source)
	assert.Equal(t, resp.Items, again.Items)
}

func TestScanRecurring_CacheExpires(t *testing.T) {
	f := newFixture(t, 10, nil)
	f.store.EXPECT().
		ListTransactionsSince(gomock.Any(), "u1", gomock.Any()).
		Return(nil, nil).
		Times(2)

	_, err := f.svc.ScanRecurring(context.Background(), Request{UserID: "u1"})
	require.NoError(t, err)

	f.now = f.now.Add(10 * time.Minute)
	resp, err := f.svc.ScanRecurring(context.Background(), Request{UserID: "u1"})
	require.NoError(t, err)
	assert.False(t, resp.Cached)
	assert.Empty(t, resp.Items)
}

func TestScanRecurring_ClampsLookback(t *testing.T) {
	tests := []struct {
		name     string
		days     *int
		wantDays int
	}{
		{"unset", nil, 180},
		{"explicit zero", intPtr(0), 30},
		{"below min", intPtr(10), 30},
		{"in range", intPtr(90), 90},
		{"above max", intPtr(1000), 365},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 10, nil)
			f.store.EXPECT().
				ListTransactionsSince(gomock.Any(), "u1", f.daysAgo(tt.wantDays)).
				Return(nil, nil)

			_, err := f.svc.ScanRecurring(context.Background(), Request{UserID: "u1", Days: tt.days})
			require.NoError(t, err)
		})
	}
}

func TestScanRecurring_RefinedByProvider(t *testing.T) {
	var calls int32
	reply := "```json\n[{\"merchant\": \"NETFLIX\", \"category\": \"Entertainment\", \"avgAmount\": 49.999, " +
		"\"cadence\": \"Monthly\", \"nextDueDate\": \"2025-07-15\", \"confidence\": 0.93, \"notes\": [\"Standard plan\"]}]\n```"
	f := newFixture(t, 10, map[provider.Name]provider.Generator{
		provider.Gemini: counting(&calls, reply, nil),
	})
	f.store.EXPECT().ListTransactionsSince(gomock.Any(), "u1", gomock.Any()).Return(f.monthlyNetflix(), nil)

	resp, err := f.svc.ScanRecurring(context.Background(), Request{UserID: "u1", Provider: provider.Auto})

	require.NoError(t, err)
	assert.Equal(t, "gemini", resp.Source)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "gemini", resp.Items[0].Source)
	assert.Equal(t, 50.0, resp.Items[0].AvgAmount)
	assert.Equal(t, cadence.Monthly, resp.Items[0].Cadence)
	assert.Equal(t, []string{"Standard plan"}, resp.Items[0].Notes)
	assert.EqualValues(t, 1, calls)
}

func TestScanRecurring_SkipsProviderWithoutCandidates(t *testing.T) {
	var calls int32
	f := newFixture(t, 10, map[provider.Name]provider.Generator{
		provider.Gemini: counting(&calls, `[{"merchant":"X","nextDueDate":"2025-07-01"}]`, nil),
	})
	f.store.EXPECT().ListTransactionsSince(gomock.Any(), "u1", gomock.Any()).Return(nil, nil)

	resp, err := f.svc.ScanRecurring(context.Background(), Request{UserID: "u1", Provider: provider.Gemini})

	require.NoError(t, err)
	assert.Equal(t, "heuristic", resp.Source)
	assert.NotNil(t, resp.Items)
	assert.Empty(t, resp.Items)
	assert.EqualValues(t, 0, calls)
}

func TestService_RateLimit(t *testing.T) {
	f := newFixture(t, 2, nil)
	f.store.EXPECT().ListTransactionsSince(gomock.Any(), "u1", gomock.Any()).Return(nil, nil).Times(1)

	for i := 0; i < 2; i++ {
		_, err := f.svc.Coach(context.Background(), Request{UserID: "u1"})
		require.NoError(t, err)
	}

	_, err := f.svc.Coach(context.Background(), Request{UserID: "u1"})
	assert.ErrorIs(t, err, ErrRateLimited)

	_, err = f.svc.Forecast(context.Background(), ForecastRequest{UserID: "u1"})
	assert.ErrorIs(t, err, ErrRateLimited, "limit is shared across entry points")
}

func TestService_RequiresUser(t *testing.T) {
	f := newFixture(t, 10, nil)

	_, err := f.svc.ScanRecurring(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = f.svc.Coach(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = f.svc.Forecast(context.Background(), ForecastRequest{})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestService_StoreErrorIsReturned(t *testing.T) {
	f := newFixture(t, 10, nil)
	boom := errors.New("bigquery unavailable")
	f.store.EXPECT().ListTransactionsSince(gomock.Any(), "u1", gomock.Any()).Return(nil, boom)

	_, err := f.svc.Forecast(context.Background(), ForecastRequest{UserID: "u1"})

	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrRateLimited)
}

func TestCoach_Heuristic(t *testing.T) {
	f := newFixture(t, 10, nil)
	f.store.EXPECT().
		ListTransactionsSince(gomock.Any(), "u1", f.daysAgo(90)).
		Return([]domain.Transaction{
			{Date: f.daysAgo(29), Amount: 300, Category: "Dining"},
			{Date: f.daysAgo(0), Amount: 1000, Category: "Rent"},
		}, nil)

	resp, err := f.svc.Coach(context.Background(), Request{UserID: "u1", Provider: provider.OpenAI})

	require.NoError(t, err)
	assert.Equal(t, "heuristic", resp.Source)
	assert.Equal(t, "heuristic", resp.Coach.Source)
	require.Len(t, resp.Coach.Tips, 1)
	assert.Equal(t, "Reduce Dining by 15%", resp.Coach.Tips[0].Title)
	assert.InDelta(t, 45, resp.Coach.SavingsEstimate, 1e-9)
}

func TestCoach_RefinedByProvider(t *testing.T) {
	var calls int32
	reply := `Here is your plan: {"tips": [{"title": "Cook at home", "detail": "Batch cook on Sundays", "impact": "low", "category": "Dining"}], "savingsEstimate": 120.456}`
	f := newFixture(t, 10, map[provider.Name]provider.Generator{
		provider.OpenAI: counting(&calls, reply, nil),
	})
	f.store.EXPECT().ListTransactionsSince(gomock.Any(), "u1", gomock.Any()).Return([]domain.Transaction{
		{Date: f.daysAgo(3), Amount: 80, Category: "Dining"},
	}, nil)

	resp, err := f.svc.Coach(context.Background(), Request{UserID: "u1", Provider: provider.OpenAI})

	require.NoError(t, err)
	assert.Equal(t, "openai", resp.Source)
	assert.Equal(t, "openai", resp.Coach.Source)
	require.Len(t, resp.Coach.Tips, 1)
	assert.Equal(t, budget.ImpactLow, resp.Coach.Tips[0].Impact)
	assert.Equal(t, 120.46, resp.Coach.SavingsEstimate)
	assert.NotNil(t, resp.Coach.SuggestedBudget)
}

func TestCoach_ProviderFailureFallsBack(t *testing.T) {
	var calls int32
	f := newFixture(t, 10, map[provider.Name]provider.Generator{
		provider.Gemini: counting(&calls, "", &provider.StatusError{Provider: provider.Gemini, StatusCode: 503}),
	})
	f.store.EXPECT().ListTransactionsSince(gomock.Any(), "u1", gomock.Any()).Return([]domain.Transaction{
		{Date: f.daysAgo(3), Amount: 80, Category: "Dining"},
	}, nil).Times(1)

	resp, err := f.svc.Coach(context.Background(), Request{UserID: "u1", Provider: provider.Gemini})
	require.NoError(t, err)
	assert.Equal(t, "heuristic", resp.Source)
	assert.Contains(t, f.logBuf.String(), "provider refinement failed")

	cached, err := f.svc.Coach(context.Background(), Request{UserID: "u1", Provider: provider.Gemini})
	require.NoError(t, err)
	assert.True(t, cached.Cached)
	assert.Equal(t, "heuristic", cached.Source)
	assert.EqualValues(t, 1, calls)
}

func TestCoach_FreeOnlyNeverCallsProvider(t *testing.T) {
	var calls int32
	f := newFixture(t, 10, map[provider.Name]provider.Generator{
		provider.Gemini: counting(&calls, `{"tips": []}`, nil),
	})
	f.store.EXPECT().ListTransactionsSince(gomock.Any(), "u1", gomock.Any()).Return(nil, nil)

	resp, err := f.svc.Coach(context.Background(), Request{UserID: "u1", Provider: provider.Gemini, FreeOnly: true})

	require.NoError(t, err)
	assert.Equal(t, "heuristic", resp.Source)
	assert.Equal(t, []string{budget.NoteNoData}, resp.Coach.Notes)
	assert.EqualValues(t, 0, calls)
}

func TestForecast_Heuristic(t *testing.T) {
	f := newFixture(t, 10, nil)
	f.store.EXPECT().
		ListTransactionsSince(gomock.Any(), "u1", f.daysAgo(7)).
		Return([]domain.Transaction{
			{Date: f.daysAgo(6), Amount: 70, Category: "Food"},
			{Date: f.daysAgo(0), Amount: 70, Category: "Food"},
		}, nil)

	resp, err := f.svc.Forecast(context.Background(), ForecastRequest{UserID: "u1", Days: intPtr(3)})

	require.NoError(t, err)
	assert.Equal(t, "heuristic", resp.Source)
	assert.Equal(t, "heuristic", resp.Prediction.Method)
	assert.Equal(t, 7, resp.Prediction.DaysAnalyzed)
	assert.Equal(t, 600.0, resp.Prediction.PredictedNextMonthTotal)
}

func TestForecast_RefinedByProvider(t *testing.T) {
	var calls int32
	f := newFixture(t, 10, map[provider.Name]provider.Generator{
		provider.Gemini: counting(&calls, `{"total": 812.349, "categories": {"Food": 300.111}}`, nil),
		provider.OpenAI: counting(&calls, `{"total": 1}`, nil),
	})
	f.store.EXPECT().ListTransactionsSince(gomock.Any(), "u1", gomock.Any()).Return([]domain.Transaction{
		{Date: f.daysAgo(9), Amount: 70, Category: "Food"},
		{Date: f.daysAgo(0), Amount: 70, Category: "Food"},
	}, nil)

	resp, err := f.svc.Forecast(context.Background(), ForecastRequest{UserID: "u1", UseGemini: true, UseOpenAI: true})

	require.NoError(t, err)
	assert.Equal(t, "gemini", resp.Source)
	assert.Equal(t, "gemini", resp.Prediction.Method)
	assert.Equal(t, 812.35, resp.Prediction.PredictedNextMonthTotal)
	assert.Equal(t, 10, resp.Prediction.DaysAnalyzed)
	assert.Equal(t, 300.11, resp.Prediction.CategoryBreakdown["Food"].PredictedNext30Days)
	assert.EqualValues(t, 1, calls)
}

func TestForecast_MissingCredentialFallsBack(t *testing.T) {
	f := newFixture(t, 10, nil)
	f.store.EXPECT().ListTransactionsSince(gomock.Any(), "u1", gomock.Any()).Return(nil, nil)

	resp, err := f.svc.Forecast(context.Background(), ForecastRequest{UserID: "u1", UseOpenAI: true})

	require.NoError(t, err)
	assert.Equal(t, "heuristic", resp.Source)
	assert.Equal(t, 0, resp.Prediction.DaysAnalyzed)
}

func TestForecastRequest_Provider(t *testing.T) {
	assert.Equal(t, provider.Gemini, ForecastRequest{UseGemini: true, UseOpenAI: true}.Provider())
	assert.Equal(t, provider.OpenAI, ForecastRequest{UseOpenAI: true}.Provider())
	assert.Equal(t, provider.Heuristic, ForecastRequest{}.Provider())
}

func TestWindow_Clamp(t *testing.T) {
	tests := []struct {
		window Window
		in     int
		want   int
	}{
		{RecurringWindow, 0, 30},
		{RecurringWindow, -5, 30},
		{RecurringWindow, 400, 365},
		{CoachWindow, 0, 7},
		{CoachWindow, 3, 7},
		{CoachWindow, 181, 180},
		{ForecastWindow, 45, 45},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.window.Clamp(tt.in))
	}
}

func TestWindow_Resolve(t *testing.T) {
	assert.Equal(t, 180, RecurringWindow.Resolve(nil))
	assert.Equal(t, 90, CoachWindow.Resolve(nil))
	assert.Equal(t, 30, RecurringWindow.Resolve(intPtr(0)))
	assert.Equal(t, 7, ForecastWindow.Resolve(intPtr(0)))
	assert.Equal(t, 120, RecurringWindow.Resolve(intPtr(120)))
}

func intPtr(v int) *int { return &v }
