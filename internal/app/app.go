// Package app wires configuration into the stores, providers and service
// shared by the API server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-insights/internal/config"
	infraBQ "github.com/dvloznov/finance-insights/internal/infra/bigquery"
	infraFS "github.com/dvloznov/finance-insights/internal/infra/firestore"
	"github.com/dvloznov/finance-insights/internal/infra/gcs"
	"github.com/dvloznov/finance-insights/internal/insights"
	"github.com/dvloznov/finance-insights/internal/provider"
	"github.com/dvloznov/finance-insights/internal/ratelimit"
	"github.com/dvloznov/finance-insights/internal/refine"
	"github.com/dvloznov/finance-insights/internal/store"
)

// DefaultSeedUser owns seeded records that carry no user ID.
const DefaultSeedUser = "local"

// OpenStore returns the TransactionStore selected by cfg.StoreBackend and a
// function releasing its clients.
func OpenStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (store.TransactionStore, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendBigQuery:
		repo, err := infraBQ.NewTransactionRepository(ctx, cfg.ProjectID, cfg.BigQueryDataset)
		if err != nil {
			return nil, nil, fmt.Errorf("OpenStore: %w", err)
		}
		log.Info().Str("project", cfg.ProjectID).Str("dataset", cfg.BigQueryDataset).Msg("Using BigQuery transaction store")
		return repo, func() { repo.Close() }, nil

	case config.BackendFirestore:
		client, err := firestore.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("OpenStore: create firestore client: %w", err)
		}
		log.Info().Str("project", cfg.ProjectID).Msg("Using Firestore transaction store")
		return infraFS.NewTransactionStore(client), func() { client.Close() }, nil

	default:
		mem := store.NewMemoryStore()
		if cfg.SeedTransactions != "" {
			loader := gcs.NewLoader()
			defer loader.Close()
			n, err := Seed(ctx, mem, loader, cfg.SeedTransactions)
			if err != nil {
				return nil, nil, fmt.Errorf("OpenStore: %w", err)
			}
			log.Info().Str("source", cfg.SeedTransactions).Int("transactions", n).Strs("users", mem.Users()).Msg("Seeded in-memory transaction store")
		} else {
			log.Warn().Msg("Using empty in-memory transaction store")
		}
		return mem, func() {}, nil
	}
}

// Seed loads the records at uri into mem and returns how many were added.
func Seed(ctx context.Context, mem *store.MemoryStore, loader *gcs.Loader, uri string) (int, error) {
	records, err := loader.Load(ctx, uri)
	if err != nil {
		return 0, fmt.Errorf("Seed: %w", err)
	}
	var n int
	for user, txs := range gcs.GroupByUser(records, DefaultSeedUser) {
		if err := mem.Add(user, txs...); err != nil {
			return n, fmt.Errorf("Seed: adding transactions for %s: %w", user, err)
		}
		n += len(txs)
	}
	return n, nil
}

// NewRegistry registers a throttled generator for every provider with a
// configured credential.
func NewRegistry(ctx context.Context, cfg *config.Config, log zerolog.Logger) *provider.Registry {
	registry := provider.NewRegistry()

	gemini, err := provider.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	switch {
	case err == nil:
		registry.Register(provider.Gemini, provider.NewThrottled(gemini, cfg.ProviderRPS, cfg.ProviderBurst))
	case errors.Is(err, provider.ErrNoCredential):
		log.Info().Msg("GEMINI_API_KEY not set - Gemini refinement disabled")
	default:
		log.Error().Err(err).Msg("Failed to create Gemini client - Gemini refinement disabled")
	}

	openai, err := provider.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	switch {
	case err == nil:
		registry.Register(provider.OpenAI, provider.NewThrottled(openai, cfg.ProviderRPS, cfg.ProviderBurst))
	case errors.Is(err, provider.ErrNoCredential):
		log.Info().Msg("OPENAI_API_KEY not set - OpenAI refinement disabled")
	default:
		log.Error().Err(err).Msg("Failed to create OpenAI client - OpenAI refinement disabled")
	}

	log.Info().Interface("providers", registry.Available()).Msg("Provider registry ready")
	return registry
}

// NewService builds the insights service over txStore with the limiter, cache
// and providers described by cfg.
func NewService(ctx context.Context, cfg *config.Config, txStore store.TransactionStore, log zerolog.Logger) (*insights.Service, error) {
	registry := NewRegistry(ctx, cfg, log)
	svc, err := insights.NewService(
		txStore,
		ratelimit.New(cfg.RateLimitMax, cfg.RateLimitWindow),
		refine.New(registry, cfg.ProviderTimeout, log),
		log,
		insights.Options{CacheTTL: cfg.CacheTTL, CacheSize: cfg.CacheSize},
	)
	if err != nil {
		return nil, fmt.Errorf("NewService: %w", err)
	}
	return svc, nil
}
