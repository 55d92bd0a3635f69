// Package app connects the stores, the source connector and the ingestion
// service from configuration. The server, the queue worker and the operator
// CLI all start from here.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/address-discovery/internal/adapter"
	"github.com/address-discovery/internal/circuitbreaker"
	"github.com/address-discovery/internal/config"
	"github.com/address-discovery/internal/extractor"
	"github.com/address-discovery/internal/logging"
	"github.com/address-discovery/internal/ratelimit"
	"github.com/address-discovery/internal/retry"
	"github.com/address-discovery/internal/service"
	"github.com/address-discovery/internal/storage"
	"github.com/address-discovery/internal/storage/memory"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// App holds the long-lived connections of one process
type App struct {
	Config     *config.Config
	Postgres   *storage.PostgresDB
	Redis      *storage.RedisConn // nil when Redis is unreachable
	ClickHouse *storage.ClickHouseDB
	Stores     storage.Stores
	Connector  *adapter.RedditClient
	Service    *service.IngestionService
}

// New loads nothing itself: cfg must already be validated.
// Postgres is required; Redis and ClickHouse degrade to disabled features.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.GetGlobalLogger()
	a := &App{Config: cfg}

	logger.Info("Connecting to databases...")

	pg, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	a.Postgres = pg

	rc, err := storage.NewRedisConn(ctx, &cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable: jobs run inline and the shared request budget is off")
	} else {
		a.Redis = rc
	}

	if cfg.Database.ClickHouse.Enabled {
		ch, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
		if err != nil {
			logger.WithError(err).Warn("ClickHouse unavailable: extraction events will not be mirrored")
		} else {
			a.ClickHouse = ch
		}
	}

	logger.Info("Database connections established")

	a.Connector = adapter.NewRedditClient(adapter.RedditClientConfig{
		BaseURL:   cfg.Reddit.BaseURL,
		UserAgent: cfg.Reddit.UserAgent,
		Timeout:   cfg.Reddit.Timeout,
		Retry: &retry.RetryConfig{
			MaxAttempts:  cfg.Reddit.MaxAttempts,
			InitialDelay: cfg.Reddit.InitialBackoff,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
		Pacers:  a.pacers(),
		Breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig("reddit")),
	})

	a.Stores = storage.NewPostgresStores(pg)
	a.Service = service.NewIngestionService(a.Connector, a.Stores, service.IngestionOptions{
		Mode:           cfg.Ingestion.Mode,
		PageSize:       cfg.Ingestion.PageSize,
		FetchComments:  cfg.Ingestion.FetchComments,
		CommentDelay:   cfg.Ingestion.CommentDelay,
		PageDelay:      cfg.Ingestion.PageDelay,
		PageErrorDelay: service.DefaultIngestionOptions().PageErrorDelay,
	})
	if a.ClickHouse != nil {
		a.Service.SetEventSink(storage.NewExtractionEventRepository(a.ClickHouse))
	}

	return a, nil
}

// DemoService shares the live connector but keeps every write in a throwaway
// in-memory store, so synthetic addresses never reach Postgres.
func (a *App) DemoService(seed int64) (*service.IngestionService, storage.Stores) {
	opts := service.DefaultIngestionOptions()
	if a.Service != nil {
		opts = a.Service.Options()
	}
	stores := memory.New().Stores()
	svc := service.NewIngestionService(a.Connector, stores, opts)
	svc.SetCandidateSource(extractor.NewDemoSource(extractor.RegexSource{}, seed))
	return svc, stores
}

// pacers builds the per-process limiter and the Redis-backed shared budget
func (a *App) pacers() []adapter.Waiter {
	var out []adapter.Waiter
	rc := a.Config.Reddit

	if rc.RequestsPerSecond > 0 {
		out = append(out, rate.NewLimiter(rate.Limit(rc.RequestsPerSecond), 1))
	}

	if rc.RequestBudget > 0 && a.Redis != nil {
		budget, err := ratelimit.NewRequestBudget(&ratelimit.RequestBudgetConfig{
			Redis:      a.Redis.Client(),
			Name:       "reddit",
			Limit:      rc.RequestBudget,
			WindowSize: rc.BudgetWindow,
		})
		if err != nil {
			logging.WithError(err).Warn("Request budget disabled")
		} else {
			out = append(out, budget)
		}
	}
	return out
}

// RedisClient returns the shared client or nil
func (a *App) RedisClient() *redis.Client {
	if a.Redis == nil {
		return nil
	}
	return a.Redis.Client()
}

// Close releases every connection that was opened
func (a *App) Close() {
	if a.ClickHouse != nil {
		if err := a.ClickHouse.Close(); err != nil {
			logging.WithError(err).Warn("Error closing ClickHouse")
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			logging.WithError(err).Warn("Error closing Redis")
		}
	}
	if a.Postgres != nil {
		a.Postgres.Close()
	}
}

// InitLogging configures the global logger from cfg
func InitLogging(cfg config.LoggingConfig) *logging.Logger {
	logger := logging.NewLoggerWithFile(
		logging.ParseLogLevel(cfg.Level),
		logging.ParseLogFormat(cfg.Format),
		logging.FileOptions{Filename: cfg.File, MaxAgeDays: cfg.MaxAgeDays, Compress: true},
	)
	logging.SetGlobalLogger(logger)
	return logger
}
