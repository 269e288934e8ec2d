package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("LLM_PROVIDER", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, ProviderGemini, cfg.LLM.Provider)
	assert.Equal(t, 3, cfg.LLM.MaxAttempts)
	assert.Equal(t, 300*time.Millisecond, cfg.LLM.InitialBackoff)
	assert.Equal(t, 100, cfg.Discovery.MaxSynthesisInputs)
	assert.Equal(t, []string{"all"}, cfg.Discovery.Categories)
	assert.Equal(t, "trend", cfg.NATS.EventsTopic)
	assert.Empty(t, cfg.NATS.URL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("LLM_PROVIDER", "GROQ")
	t.Setenv("GROQ_API_KEY", "gsk_test")
	t.Setenv("LLM_TIMEOUT", "15s")
	t.Setenv("DISCOVERY_CATEGORIES", "technology, business ,,gaming")
	t.Setenv("REDDIT_PUBLIC_FALLBACK", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, ProviderGroq, cfg.LLM.Provider)
	assert.Equal(t, 15*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, []string{"technology", "business", "gaming"}, cfg.Discovery.Categories)
	assert.True(t, cfg.Reddit.PublicFallback)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Environment: "production",
			Store:       StoreConfig{Driver: DriverPostgres},
			LLM:         LLMConfig{Provider: ProviderNone, MaxAttempts: 3},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid offline", func(c *Config) {}, false},
		{"unknown driver", func(c *Config) { c.Store.Driver = "mongo" }, true},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "vertex" }, true},
		{"gemini without key in production", func(c *Config) { c.LLM.Provider = ProviderGemini }, true},
		{"gemini without key in development", func(c *Config) {
			c.LLM.Provider = ProviderGemini
			c.Environment = "development"
		}, false},
		{"zero attempts", func(c *Config) { c.LLM.MaxAttempts = 0 }, true},
		{"half reddit credentials", func(c *Config) { c.Reddit.ClientID = "id" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := validate(cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	c := DatabaseConfig{User: "u", Password: "p", Host: "db", Port: 5433, Database: "trends", SSLMode: "require"}
	assert.Equal(t, "postgres://u:p@db:5433/trends?sslmode=require", c.DSN())
}
