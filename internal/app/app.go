// Package app initializes and holds the long-lived services shared by
// the harvest, worker and promote commands.
package app

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/bepdata/recipe-crawler/internal/backend"
	"github.com/bepdata/recipe-crawler/internal/config"
	"github.com/bepdata/recipe-crawler/internal/fetch"
	"github.com/bepdata/recipe-crawler/internal/logging"
	"github.com/bepdata/recipe-crawler/internal/metrics"
	"github.com/bepdata/recipe-crawler/internal/supabase"
)

// App is the dependency container built once at startup and handed to
// the subcommands.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	store   *backend.Store
	fetcher *fetch.Fetcher
}

// New builds the container: logger, metrics, the Supabase-backed store
// and the page fetcher. It fails fast on configuration problems.
func New(cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if err := logging.Init(cfg.Logging.Development); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	logger := logging.L
	metrics.Init()

	client := supabase.New(cfg.Supabase.URL, cfg.Supabase.ServiceKey, cfg.RestTimeout(), logger.Named("supabase"))
	store := backend.New(client, logger.Named("backend"))
	fetcher := fetch.New(fetch.Config{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	}, logger.Named("fetch"))

	logger.Info("services initialized",
		zap.String("supabase_url", cfg.Supabase.URL),
		zap.String("source", cfg.Crawler.Source),
		zap.String("locale", cfg.Crawler.Locale),
	)
	return &App{cfg: cfg, logger: logger, store: store, fetcher: fetcher}, nil
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Store returns the backend store implementing the queue, feedback,
// promotion and staging capabilities.
func (a *App) Store() *backend.Store {
	return a.store
}

// Fetcher returns the shared page fetcher.
func (a *App) Fetcher() *fetch.Fetcher {
	return a.fetcher
}

// Close flushes the logger. The HTTP clients hold no state worth closing.
func (a *App) Close() {
	_ = a.logger.Sync()
}
