// Package insights exposes the recurring-charge scan, budget coach and
// expense forecast entry points.
package insights

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-insights/internal/budget"
	"github.com/dvloznov/finance-insights/internal/cache"
	"github.com/dvloznov/finance-insights/internal/domain"
	"github.com/dvloznov/finance-insights/internal/forecast"
	"github.com/dvloznov/finance-insights/internal/provider"
	"github.com/dvloznov/finance-insights/internal/ratelimit"
	"github.com/dvloznov/finance-insights/internal/recurring"
	"github.com/dvloznov/finance-insights/internal/refine"
	"github.com/dvloznov/finance-insights/internal/store"
)

var (
	// ErrRateLimited means the caller must try again later.
	ErrRateLimited = errors.New("insights: too many requests")
	// ErrUnauthenticated means the request carried no user ID.
	ErrUnauthenticated = errors.New("insights: user ID is required")
)

const (
	KindRecurring = "recurring"
	KindCoach     = "coach"
	KindForecast  = "forecast"
)

// Window bounds a lookback in days.
type Window struct {
	Min, Max, Default int
}

var (
	RecurringWindow = Window{Min: 30, Max: 365, Default: 180}
	CoachWindow     = Window{Min: 7, Max: 180, Default: 90}
	ForecastWindow  = Window{Min: 7, Max: 180, Default: 90}
)

// Clamp returns days limited to the window.
func (w Window) Clamp(days int) int {
	switch {
	case days < w.Min:
		return w.Min
	case days > w.Max:
		return w.Max
	}
	return days
}

// Resolve returns the default lookback when days is unset and the clamped
// value otherwise, so an explicit zero becomes Min.
func (w Window) Resolve(days *int) int {
	if days == nil {
		return w.Default
	}
	return w.Clamp(*days)
}

// Request is the input to ScanRecurring and Coach.
type Request struct {
	UserID string
	// Days is the lookback in days; nil selects the window default.
	Days     *int
	FreeOnly bool
	Provider provider.Name
}

// ForecastRequest is the input to Forecast. UseGemini wins over UseOpenAI.
type ForecastRequest struct {
	UserID    string
	Days      *int
	UseGemini bool
	UseOpenAI bool
	FreeOnly  bool
}

// Provider maps the request flags to a provider name.
func (r ForecastRequest) Provider() provider.Name {
	switch {
	case r.UseGemini:
		return provider.Gemini
	case r.UseOpenAI:
		return provider.OpenAI
	}
	return provider.Heuristic
}

type RecurringResponse struct {
	Items  []recurring.Item `json:"items"`
	Source string           `json:"source"`
	Cached bool             `json:"cached,omitempty"`
}

type CoachResponse struct {
	Coach  budget.Suggestion `json:"coach"`
	Source string            `json:"source"`
	Cached bool              `json:"cached,omitempty"`
}

type ForecastResponse struct {
	Prediction forecast.Result `json:"prediction"`
	Source     string          `json:"source"`
	Cached     bool            `json:"cached,omitempty"`
}

// Options tunes a Service. Zero values select the defaults.
type Options struct {
	CacheTTL  time.Duration
	CacheSize int
	Now       func() time.Time
}

// Service runs the rate limit, cache, fetch, heuristic and refinement steps
// for each entry point.
type Service struct {
	store    store.TransactionStore
	limiter  *ratelimit.Limiter
	refiner  *refine.Refiner
	log      zerolog.Logger
	ttl      time.Duration
	now      func() time.Time
	recurs   *cache.Cache[RecurringResponse]
	coaches  *cache.Cache[CoachResponse]
	forecast *cache.Cache[ForecastResponse]
}

func NewService(txStore store.TransactionStore, limiter *ratelimit.Limiter, refiner *refine.Refiner, log zerolog.Logger, opts Options) (*Service, error) {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = cache.DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	clock := cache.WithClock(opts.Now)

	recurs, err := cache.New[RecurringResponse](opts.CacheSize, clock)
	if err != nil {
		return nil, fmt.Errorf("NewService: %w", err)
	}
	coaches, err := cache.New[CoachResponse](opts.CacheSize, clock)
	if err != nil {
		return nil, fmt.Errorf("NewService: %w", err)
	}
	forecasts, err := cache.New[ForecastResponse](opts.CacheSize, clock)
	if err != nil {
		return nil, fmt.Errorf("NewService: %w", err)
	}

	return &Service{
		store:    txStore,
		limiter:  limiter,
		refiner:  refiner,
		log:      log,
		ttl:      opts.CacheTTL,
		now:      opts.Now,
		recurs:   recurs,
		coaches:  coaches,
		forecast: forecasts,
	}, nil
}

// admit checks the caller and the rate limit, and returns the cache key for
// the request.
func (s *Service) admit(userID, kind string, days int, requested provider.Name, freeOnly bool) (cache.Key, error) {
	if userID == "" {
		return cache.Key{}, ErrUnauthenticated
	}
	if !s.limiter.Allow(userID) {
		s.log.Warn().Str("user_id", userID).Str("kind", kind).Msg("rate limit exceeded")
		return cache.Key{}, ErrRateLimited
	}
	sel := s.refiner.Select(requested, freeOnly)
	return cache.Key{UserID: userID, Kind: kind, Days: days, Provider: string(sel.Name)}, nil
}

func (s *Service) fetch(ctx context.Context, userID string, now time.Time, days int) ([]domain.Transaction, error) {
	since := now.AddDate(0, 0, -days)
	txs, err := s.store.ListTransactionsSince(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("fetching transactions: %w", err)
	}
	return txs, nil
}

// ScanRecurring detects recurring charges over the last req.Days days.
func (s *Service) ScanRecurring(ctx context.Context, req Request) (*RecurringResponse, error) {
	days := RecurringWindow.Resolve(req.Days)
	key, err := s.admit(req.UserID, KindRecurring, days, req.Provider, req.FreeOnly)
	if err != nil {
		return nil, err
	}
	if cached, ok := s.recurs.Get(key); ok {
		cached.Cached = true
		return &cached, nil
	}

	now := s.now()
	txs, err := s.fetch(ctx, req.UserID, now, days)
	if err != nil {
		return nil, fmt.Errorf("ScanRecurring: %w", err)
	}

	candidates := recurring.Find(txs, recurring.Options{Now: now})
	items, source := candidates, provider.Heuristic
	// Nothing to refine without candidates.
	if len(candidates) > 0 {
		items, source = refine.Resolve(ctx, s.refiner, refine.Request[[]recurring.Item]{
			Provider: req.Provider,
			FreeOnly: req.FreeOnly,
			Kind:     KindRecurring,
			Prompt:   func() provider.Prompt { return recurringPrompt(candidates) },
			Parse:    parseRecurring,
		}, candidates)
		for i := range items {
			items[i].Source = string(source)
		}
	}

	resp := RecurringResponse{Items: items, Source: string(source)}
	s.recurs.Put(key, resp, s.ttl)
	s.log.Debug().Str("user_id", req.UserID).Int("days", days).Int("items", len(items)).Str("source", resp.Source).Msg("recurring scan computed")
	return &resp, nil
}

// Coach builds budget suggestions over the last req.Days days.
func (s *Service) Coach(ctx context.Context, req Request) (*CoachResponse, error) {
	days := CoachWindow.Resolve(req.Days)
	key, err := s.admit(req.UserID, KindCoach, days, req.Provider, req.FreeOnly)
	if err != nil {
		return nil, err
	}
	if cached, ok := s.coaches.Get(key); ok {
		cached.Cached = true
		return &cached, nil
	}

	now := s.now()
	txs, err := s.fetch(ctx, req.UserID, now, days)
	if err != nil {
		return nil, fmt.Errorf("Coach: %w", err)
	}

	heuristic := budget.Compute(txs)
	daysAnalyzed := analyzedDays(txs)
	suggestion, source := refine.Resolve(ctx, s.refiner, refine.Request[budget.Suggestion]{
		Provider: req.Provider,
		FreeOnly: req.FreeOnly,
		Kind:     KindCoach,
		Prompt:   func() provider.Prompt { return coachPrompt(daysAnalyzed, heuristic) },
		Parse:    parseCoach,
	}, heuristic)
	suggestion.Source = string(source)

	resp := CoachResponse{Coach: suggestion, Source: string(source)}
	s.coaches.Put(key, resp, s.ttl)
	s.log.Debug().Str("user_id", req.UserID).Int("days", days).Int("tips", len(suggestion.Tips)).Str("source", resp.Source).Msg("coach computed")
	return &resp, nil
}

// Forecast projects the next 30 days of spending from the last req.Days days.
func (s *Service) Forecast(ctx context.Context, req ForecastRequest) (*ForecastResponse, error) {
	days := ForecastWindow.Resolve(req.Days)
	requested := req.Provider()
	key, err := s.admit(req.UserID, KindForecast, days, requested, req.FreeOnly)
	if err != nil {
		return nil, err
	}
	if cached, ok := s.forecast.Get(key); ok {
		cached.Cached = true
		return &cached, nil
	}

	now := s.now()
	txs, err := s.fetch(ctx, req.UserID, now, days)
	if err != nil {
		return nil, fmt.Errorf("Forecast: %w", err)
	}

	heuristic := forecast.Compute(txs)
	prediction, source := refine.Resolve(ctx, s.refiner, refine.Request[forecast.Result]{
		Provider: requested,
		FreeOnly: req.FreeOnly,
		Kind:     KindForecast,
		Prompt:   func() provider.Prompt { return forecastPrompt(heuristic) },
		Parse:    parseForecast(heuristic.DaysAnalyzed),
	}, heuristic)
	prediction.Method = string(source)

	resp := ForecastResponse{Prediction: prediction, Source: string(source)}
	s.forecast.Put(key, resp, s.ttl)
	s.log.Debug().Str("user_id", req.UserID).Int("days", days).Str("source", resp.Source).Msg("forecast computed")
	return &resp, nil
}

func analyzedDays(txs []domain.Transaction) int {
	first, last, ok := domain.Span(domain.Expenses(txs))
	if !ok {
		return 0
	}
	return domain.WindowDays(first, last)
}
