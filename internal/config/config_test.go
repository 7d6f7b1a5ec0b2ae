package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.Equal(t, AuthHeader, cfg.AuthMode)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, 10, cfg.RateLimitMax)
	assert.Equal(t, time.Hour, cfg.RateLimitWindow)
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 30*time.Second, cfg.ProviderTimeout)
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{
		"STORE_BACKEND":        "BigQuery",
		"GOOGLE_CLOUD_PROJECT": "proj",
		"RATE_LIMIT_MAX":       "3",
		"CACHE_TTL":            "1m",
		"PROVIDER_RPS":         "0.5",
		"CORS_ORIGINS":         "https://a.example, https://b.example,",
		"GEMINI_API_KEY":       "key",
	}))
	require.NoError(t, err)

	assert.Equal(t, BackendBigQuery, cfg.StoreBackend)
	assert.Equal(t, 3, cfg.RateLimitMax)
	assert.Equal(t, time.Minute, cfg.CacheTTL)
	assert.Equal(t, 0.5, cfg.ProviderRPS)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, "key", cfg.GeminiAPIKey)
}

func TestFromEnv_Errors(t *testing.T) {
	tests := map[string]map[string]string{
		"bad int":             {"RATE_LIMIT_MAX": "ten"},
		"bad duration":        {"CACHE_TTL": "soon"},
		"unknown backend":     {"STORE_BACKEND": "postgres"},
		"bigquery no project": {"STORE_BACKEND": "bigquery"},
		"firebase no project": {"AUTH_MODE": "firebase"},
		"unknown auth":        {"AUTH_MODE": "basic"},
		"zero limit":          {"RATE_LIMIT_MAX": "0"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := FromEnv(envMap(env))
			assert.Error(t, err)
		})
	}
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("CACHE_SIZE=42\n"), 0o600))
	t.Setenv("CACHE_SIZE", "")
	os.Unsetenv("CACHE_SIZE")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 42, cfg.CacheSize)
}

func TestLoad_MissingFileIsIgnored(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.CacheSize)
}
