// Package config loads runtime settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendMemory    = "memory"
	BackendBigQuery  = "bigquery"
	BackendFirestore = "firestore"
)

// Auth modes.
const (
	AuthFirebase = "firebase"
	AuthHeader   = "header"
)

type Config struct {
	Port     string
	LogLevel string

	StoreBackend     string
	ProjectID        string
	BigQueryDataset  string
	SeedTransactions string

	AuthMode            string
	FirebaseCredentials string
	CORSOrigins         []string

	GeminiAPIKey string
	GeminiModel  string
	OpenAIAPIKey string
	OpenAIModel  string

	RateLimitMax    int
	RateLimitWindow time.Duration
	CacheTTL        time.Duration
	CacheSize       int
	ProviderTimeout time.Duration
	ProviderRPS     float64
	ProviderBurst   int
}

// Load reads the .env file at envFile when it exists, then builds a Config
// from the environment. Variables already set in the environment win over
// the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("Load: reading %s: %w", envFile, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config using getenv for lookups.
func FromEnv(getenv func(string) string) (*Config, error) {
	p := parser{getenv: getenv}
	cfg := &Config{
		Port:     p.str("PORT", "8080"),
		LogLevel: p.str("LOG_LEVEL", "info"),

		StoreBackend:     strings.ToLower(p.str("STORE_BACKEND", BackendMemory)),
		ProjectID:        p.str("GOOGLE_CLOUD_PROJECT", ""),
		BigQueryDataset:  p.str("BIGQUERY_DATASET", "finance"),
		SeedTransactions: p.str("SEED_TRANSACTIONS", ""),

		AuthMode:            strings.ToLower(p.str("AUTH_MODE", AuthHeader)),
		FirebaseCredentials: p.str("FIREBASE_CREDENTIALS", ""),
		CORSOrigins:         p.list("CORS_ORIGINS", []string{"*"}),

		GeminiAPIKey: p.str("GEMINI_API_KEY", ""),
		GeminiModel:  p.str("GEMINI_MODEL", ""),
		OpenAIAPIKey: p.str("OPENAI_API_KEY", ""),
		OpenAIModel:  p.str("OPENAI_MODEL", ""),

		RateLimitMax:    p.int("RATE_LIMIT_MAX", 10),
		RateLimitWindow: p.duration("RATE_LIMIT_WINDOW", time.Hour),
		CacheTTL:        p.duration("CACHE_TTL", 10*time.Minute),
		CacheSize:       p.int("CACHE_SIZE", 1000),
		ProviderTimeout: p.duration("PROVIDER_TIMEOUT", 30*time.Second),
		ProviderRPS:     p.float("PROVIDER_RPS", 1),
		ProviderBurst:   p.int("PROVIDER_BURST", 5),
	}
	if err := errors.Join(p.errs...); err != nil {
		return nil, fmt.Errorf("FromEnv: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("FromEnv: %w", err)
	}
	return cfg, nil
}

// Validate checks that the settings are consistent with each other.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory:
	case BackendBigQuery, BackendFirestore:
		if c.ProjectID == "" {
			return fmt.Errorf("GOOGLE_CLOUD_PROJECT is required for the %s backend", c.StoreBackend)
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.AuthMode {
	case AuthHeader:
	case AuthFirebase:
		if c.ProjectID == "" {
			return errors.New("GOOGLE_CLOUD_PROJECT is required for firebase auth")
		}
	default:
		return fmt.Errorf("unknown AUTH_MODE %q", c.AuthMode)
	}

	if c.RateLimitMax <= 0 {
		return errors.New("RATE_LIMIT_MAX must be positive")
	}
	if c.RateLimitWindow <= 0 || c.CacheTTL <= 0 || c.ProviderTimeout <= 0 {
		return errors.New("durations must be positive")
	}
	return nil
}

type parser struct {
	getenv func(string) string
	errs   []error
}

func (p *parser) str(key, def string) string {
	if v := strings.TrimSpace(p.getenv(key)); v != "" {
		return v
	}
	return def
}

func (p *parser) list(key string, def []string) []string {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (p *parser) int(key string, def int) int {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (p *parser) float(key string, def float64) float64 {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return f
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}
