// internal/config/config.go

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Environment string
	LogLevel    string
	CatalogPath string
	Server      ServerConfig
	Store       StoreConfig
	Database    DatabaseConfig
	NATS        NATSConfig
	Redis       RedisConfig
	Reddit      RedditConfig
	GoogleTrend GoogleTrendsConfig
	LLM         LLMConfig
	Discovery   DiscoveryConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CorsOrigins     []string
}

// StoreConfig selects the trend store backend
type StoreConfig struct {
	Driver     string
	SQLitePath string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
	SSLMode      string
}

// DSN returns the postgres connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

// NATSConfig holds NATS configuration. An empty URL disables event publishing.
type NATSConfig struct {
	URL            string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectTimeout time.Duration
	EventsTopic    string
}

// RedisConfig holds Redis configuration. An empty address keeps the token cache in memory.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedditConfig holds Reddit API configuration
type RedditConfig struct {
	ClientID       string
	ClientSecret   string
	UserAgent      string
	TokenURL       string
	APIURL         string
	PublicURL      string
	PublicFallback bool
	RateLimit      float64
	Timeout        time.Duration
}

// GoogleTrendsConfig holds Google Trends feed configuration
type GoogleTrendsConfig struct {
	FeedURL string
	Geos    []string
	Timeout time.Duration
}

// LLMConfig holds synthesis provider configuration
type LLMConfig struct {
	Provider       string
	GeminiAPIKey   string
	GeminiModel    string
	GroqAPIKey     string
	GroqModel      string
	GroqBaseURL    string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	Temperature    float64
	MaxTokens      int
}

// DiscoveryConfig holds pipeline configuration
type DiscoveryConfig struct {
	MaxSynthesisInputs int
	Schedule           string
	Categories         []string
}

// Supported values
const (
	ProviderGemini = "gemini"
	ProviderGroq   = "groq"
	ProviderNone   = "none"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Load loads configuration from an optional .env file and environment variables
func Load() (Config, error) {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	config := Config{
		Environment: getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CatalogPath: getEnv("CATALOG_PATH", ""),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			CorsOrigins:     getEnvAsSlice("SERVER_CORS_ORIGINS", []string{"*"}),
		},
		Store: StoreConfig{
			Driver:     getEnv("STORE_DRIVER", DriverPostgres),
			SQLitePath: getEnv("SQLITE_PATH", "./data/trendcraft.db"),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvAsInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "postgres"),
			Database:     getEnv("DB_NAME", "trendcraft"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 2),
			MaxLifetime:  getEnvAsDuration("DB_MAX_LIFETIME", 5*time.Minute),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
		},
		NATS: NATSConfig{
			URL:            getEnv("NATS_URL", ""),
			MaxReconnects:  getEnvAsInt("NATS_MAX_RECONNECTS", 10),
			ReconnectWait:  getEnvAsDuration("NATS_RECONNECT_WAIT", 1*time.Second),
			ConnectTimeout: getEnvAsDuration("NATS_CONNECT_TIMEOUT", 2*time.Second),
			EventsTopic:    getEnv("EVENTS_TOPIC", "trend"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Reddit: RedditConfig{
			ClientID:       getEnv("REDDIT_CLIENT_ID", ""),
			ClientSecret:   getEnv("REDDIT_CLIENT_SECRET", ""),
			UserAgent:      getEnv("REDDIT_USER_AGENT", "TrendCraftAI/1.0.0"),
			TokenURL:       getEnv("REDDIT_TOKEN_URL", "https://www.reddit.com/api/v1/access_token"),
			APIURL:         getEnv("REDDIT_API_URL", "https://oauth.reddit.com"),
			PublicURL:      getEnv("REDDIT_PUBLIC_URL", "https://www.reddit.com"),
			PublicFallback: getEnvAsBool("REDDIT_PUBLIC_FALLBACK", false),
			RateLimit:      getEnvAsFloat("REDDIT_RATE_LIMIT", 1.5),
			Timeout:        getEnvAsDuration("REDDIT_TIMEOUT", 10*time.Second),
		},
		GoogleTrend: GoogleTrendsConfig{
			FeedURL: getEnv("GOOGLE_TRENDS_URL", "https://trends.google.com/trending/rss"),
			Geos:    getEnvAsSlice("GOOGLE_TRENDS_GEOS", []string{"US"}),
			Timeout: getEnvAsDuration("GOOGLE_TRENDS_TIMEOUT", 10*time.Second),
		},
		LLM: LLMConfig{
			Provider:       strings.ToLower(getEnv("LLM_PROVIDER", ProviderGemini)),
			GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
			GeminiModel:    getEnv("GEMINI_MODEL", "gemini-2.0-flash-lite"),
			GroqAPIKey:     getEnv("GROQ_API_KEY", ""),
			GroqModel:      getEnv("GROQ_MODEL", "llama-3.3-70b-versatile"),
			GroqBaseURL:    getEnv("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
			Timeout:        getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),
			MaxAttempts:    getEnvAsInt("LLM_MAX_ATTEMPTS", 3),
			InitialBackoff: getEnvAsDuration("LLM_INITIAL_BACKOFF", 300*time.Millisecond),
			Temperature:    getEnvAsFloat("LLM_TEMPERATURE", 0.7),
			MaxTokens:      getEnvAsInt("LLM_MAX_TOKENS", 4096),
		},
		Discovery: DiscoveryConfig{
			MaxSynthesisInputs: getEnvAsInt("SYNTHESIS_MAX_INPUTS", 100),
			Schedule:           getEnv("DISCOVERY_SCHEDULE", ""),
			Categories:         getEnvAsSlice("DISCOVERY_CATEGORIES", []string{"all"}),
		},
	}

	return config, validate(config)
}

// validate checks if config is valid
func validate(config Config) error {
	switch config.Store.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported store driver %q", config.Store.Driver)
	}

	switch config.LLM.Provider {
	case ProviderGemini:
		if config.LLM.GeminiAPIKey == "" && config.Environment != "development" {
			return fmt.Errorf("GEMINI_API_KEY must be set when LLM_PROVIDER=gemini")
		}
	case ProviderGroq:
		if config.LLM.GroqAPIKey == "" && config.Environment != "development" {
			return fmt.Errorf("GROQ_API_KEY must be set when LLM_PROVIDER=groq")
		}
	case ProviderNone:
	default:
		return fmt.Errorf("unsupported LLM provider %q", config.LLM.Provider)
	}

	if config.LLM.MaxAttempts < 1 {
		return fmt.Errorf("LLM_MAX_ATTEMPTS must be at least 1")
	}

	if (config.Reddit.ClientID == "") != (config.Reddit.ClientSecret == "") {
		return fmt.Errorf("REDDIT_CLIENT_ID and REDDIT_CLIENT_SECRET must be set together")
	}

	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
