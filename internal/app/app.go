// Package app wires configuration into the discovery pipeline and its adapters.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v4/pgxpool"
	_ "github.com/jackc/pgx/v4/stdlib" // database/sql driver for migrations
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"trendcraft/internal/adapter/events"
	"trendcraft/internal/adapter/googletrends"
	"trendcraft/internal/adapter/llm"
	"trendcraft/internal/adapter/reddit"
	"trendcraft/internal/adapter/storage"
	"trendcraft/internal/adapter/storage/migrations"
	"trendcraft/internal/catalog"
	"trendcraft/internal/config"
	"trendcraft/internal/domain/trend"
	"trendcraft/internal/logging"
	"trendcraft/internal/service/listening"
)

// App holds the wired pipeline and everything that must be closed with it
type App struct {
	Config   config.Config
	Logger   logging.Logger
	Catalog  *catalog.Catalog
	Store    trend.Store
	Detector *listening.TrendDetector
	Bus      events.Bus
	Registry *prometheus.Registry
	Metrics  *listening.Metrics

	closers []func()
}

// Build connects every configured dependency. Optional services (NATS,
// Redis, an LLM provider) degrade with a warning when not configured.
func Build(ctx context.Context, cfg config.Config, logger logging.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	cat, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	a.Catalog = cat

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = listening.NewMetrics(a.Registry)

	if err := a.openStore(ctx); err != nil {
		a.Close()
		return nil, err
	}

	if err := a.connectBus(); err != nil {
		a.Close()
		return nil, err
	}

	provider, err := a.newProvider(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	synthesizer := listening.NewSynthesizer(provider, cat, listening.SynthesizerConfig{
		MaxInputs:   cfg.Discovery.MaxSynthesisInputs,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	}, logger)

	fetchers := []trend.Fetcher{
		reddit.NewFetcher(reddit.Config{
			ClientID:       cfg.Reddit.ClientID,
			ClientSecret:   cfg.Reddit.ClientSecret,
			UserAgent:      cfg.Reddit.UserAgent,
			TokenURL:       cfg.Reddit.TokenURL,
			APIURL:         cfg.Reddit.APIURL,
			PublicURL:      cfg.Reddit.PublicURL,
			PublicFallback: cfg.Reddit.PublicFallback,
			RateLimit:      cfg.Reddit.RateLimit,
			Timeout:        cfg.Reddit.Timeout,
		}, cat, nil, a.newTokenCache(), logger),
		googletrends.NewFetcher(googletrends.Config{
			FeedURL:   cfg.GoogleTrend.FeedURL,
			Geos:      cfg.GoogleTrend.Geos,
			UserAgent: cfg.Reddit.UserAgent,
			Timeout:   cfg.GoogleTrend.Timeout,
		}, nil, logger),
	}

	a.Detector = listening.NewTrendDetector(
		cat,
		fetchers,
		synthesizer,
		a.Store,
		a.Bus,
		a.Metrics,
		logger,
		listening.TrendDetectorConfig{EventsTopic: cfg.NATS.EventsTopic},
	)
	return a, nil
}

// Close releases connections in reverse order of creation
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	return catalog.Load(path)
}

func (a *App) openStore(ctx context.Context) error {
	switch a.Config.Store.Driver {
	case config.DriverSQLite:
		store, err := storage.OpenSQLite(a.Config.Store.SQLitePath, a.Logger)
		if err != nil {
			return err
		}
		a.Store = store
		a.closers = append(a.closers, func() { _ = store.Close() })
		return nil

	case config.DriverPostgres:
		if err := a.migratePostgres(); err != nil {
			return err
		}
		pool, err := initDatabase(ctx, a.Config.Database)
		if err != nil {
			return err
		}
		a.Store = storage.NewTrendStore(pool)
		a.closers = append(a.closers, pool.Close)
		return nil
	}
	return fmt.Errorf("unsupported store driver %q", a.Config.Store.Driver)
}

func (a *App) migratePostgres() error {
	db, err := sql.Open("pgx", a.Config.Database.DSN())
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer func() { _ = db.Close() }()
	return migrations.Up(db, migrations.Postgres, a.Logger)
}

// initDatabase opens the pgx pool
func initDatabase(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.MaxLifetime

	db, err := pgxpool.ConnectConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return db, nil
}

// connectBus dials NATS when configured and falls back to an in-process bus
func (a *App) connectBus() error {
	if a.Config.NATS.URL == "" {
		a.Logger.Info("NATS_URL not set, discovery events stay in process")
		bus := events.NewLocalBus()
		a.Bus = bus
		a.closers = append(a.closers, bus.Close)
		return nil
	}

	bus, err := events.Connect(a.Config.NATS, a.Logger)
	if err != nil {
		return err
	}
	a.Bus = bus
	a.closers = append(a.closers, bus.Close)
	return nil
}

func (a *App) newTokenCache() reddit.TokenCache {
	if a.Config.Redis.Addr == "" {
		return reddit.NewMemoryTokenCache()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     a.Config.Redis.Addr,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	})
	a.closers = append(a.closers, func() { _ = client.Close() })
	return reddit.NewRedisTokenCache(client, "")
}

// newProvider returns nil, meaning offline synthesis, when no provider is usable
func (a *App) newProvider(ctx context.Context) (llm.Provider, error) {
	cfg := a.Config.LLM

	var provider llm.Provider
	switch cfg.Provider {
	case config.ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			a.Logger.Warn("GEMINI_API_KEY not set, synthesis runs offline")
			return nil, nil
		}
		p, err := llm.NewGeminiProvider(ctx, llm.GeminiConfig{APIKey: cfg.GeminiAPIKey, Model: cfg.GeminiModel})
		if err != nil {
			return nil, err
		}
		provider = p

	case config.ProviderGroq:
		if cfg.GroqAPIKey == "" {
			a.Logger.Warn("GROQ_API_KEY not set, synthesis runs offline")
			return nil, nil
		}
		p, err := llm.NewGroqProvider(llm.GroqConfig{
			APIKey:  cfg.GroqAPIKey,
			Model:   cfg.GroqModel,
			BaseURL: cfg.GroqBaseURL,
		}, &http.Client{Timeout: cfg.Timeout})
		if err != nil {
			return nil, err
		}
		provider = p

	default:
		a.Logger.Info("LLM provider disabled, synthesis runs offline")
		return nil, nil
	}

	return llm.NewRetryingProvider(provider, llm.RetryConfig{
		MaxAttempts:    cfg.MaxAttempts,
		InitialBackoff: cfg.InitialBackoff,
		Timeout:        cfg.Timeout,
	}, a.Logger, a.Metrics.ProviderAttempts), nil
}

// OpenMigrationDB opens a database/sql handle for the configured driver
func OpenMigrationDB(cfg config.Config) (*sql.DB, migrations.Dialect, error) {
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		db, err := sql.Open("sqlite", cfg.Store.SQLitePath)
		if err != nil {
			return nil, "", fmt.Errorf("open sqlite: %w", err)
		}
		return db, migrations.SQLite, nil
	case config.DriverPostgres:
		db, err := sql.Open("pgx", cfg.Database.DSN())
		if err != nil {
			return nil, "", fmt.Errorf("open postgres: %w", err)
		}
		return db, migrations.Postgres, nil
	}
	return nil, "", fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
}
