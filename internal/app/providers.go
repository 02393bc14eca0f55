package app

import (
	"context"
	"fmt"

	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/flox/server/internal/module/billing"
	"github.com/flox/server/internal/module/billing/provider"
	"github.com/flox/server/internal/module/referral"
	"github.com/flox/server/internal/module/user"
	"github.com/flox/server/internal/shared/cache"
	"github.com/flox/server/internal/shared/config"
	"github.com/flox/server/internal/shared/database"
	"github.com/flox/server/internal/shared/logger"
	"github.com/flox/server/internal/utils/metrics"
	"github.com/flox/server/internal/utils/middleware"
)

// ===== Infrastructure Providers =====

// InfraSet provides infrastructure dependencies.
var InfraSet = wire.NewSet(
	ProvideLogger,
	ProvideDatabase,
	ProvideRedisClient,
	ProvideRegistry,
	ProvideMetrics,
	ProvideJWTValidator,
	ProvideRateLimiter,
)

// ProvideLogger creates the process logger.
func ProvideLogger(cfg *config.Config) (*zap.Logger, func(), error) {
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return log, func() { _ = log.Sync() }, nil
}

// ProvideDatabase opens the database and migrates the schema when enabled.
func ProvideDatabase(cfg *config.Config, log *zap.Logger) (*gorm.DB, func(), error) {
	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := database.Close(db); err != nil {
			log.Warn("close database", zap.Error(err))
		}
	}

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db, Models()...); err != nil {
			cleanup()
			return nil, nil, err
		}
	}
	return db, cleanup, nil
}

// Models returns every persisted model.
func Models() []any {
	models := []any{&user.User{}}
	models = append(models, referral.Models()...)
	return append(models, billing.Models()...)
}

// ProvideRedisClient creates a Redis client. Without an address, or when
// Redis cannot be reached, it returns nil and dependent middleware passes
// requests through.
func ProvideRedisClient(cfg *config.Config, log *zap.Logger) (goredis.UniversalClient, func()) {
	if cfg.Redis.Address == "" {
		return nil, func() {}
	}
	client, err := cache.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Warn("redis unavailable, rate limiting and idempotency disabled",
			zap.String("address", cfg.Redis.Address), zap.Error(err))
		return nil, func() {}
	}
	return client, func() { _ = cache.Close(client) }
}

// ProvideRegistry creates the Prometheus registry served at /metrics.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideMetrics creates application metrics.
func ProvideMetrics(reg *prometheus.Registry) *metrics.Metrics {
	return metrics.New("flox", reg)
}

// ProvideJWTValidator creates the identity token validator.
func ProvideJWTValidator(cfg *config.Config) middleware.JWTValidator {
	return middleware.NewHMACValidator(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
}

// ProvideRateLimiter creates the Redis-backed rate limiter.
func ProvideRateLimiter(client goredis.UniversalClient) middleware.RateLimiter {
	if client == nil {
		// A typed nil would defeat the limiter == nil check.
		return nil
	}
	return middleware.NewRedisRateLimiter(client)
}

// ===== Module Providers =====

// ModuleSet provides domain services.
var ModuleSet = wire.NewSet(
	// User
	user.NewRepository,
	user.NewService,
	ProvideUserStore,

	// Referral
	referral.NewRepository,
	referral.NewValidator,
	referral.NewService,
	referral.NewRecorder,
	wire.Bind(new(billing.CodeChecker), new(*referral.Service)),
	wire.Bind(new(billing.Redeemer), new(*referral.Recorder)),

	// Billing
	ProvideBillingProvider,
	ProvideArchiver,
	ProvideCatalog,
	ProvideTrialPolicy,
	billing.NewEventRepository,
	billing.NewProvisioner,
	billing.NewWebhookProcessor,
)

// ProvideUserStore exposes the user repository to billing.
func ProvideUserStore(repo user.Repository) billing.UserStore {
	return repo
}

// ProvideBillingProvider wraps Stripe in a circuit breaker.
func ProvideBillingProvider(cfg *config.Config, m *metrics.Metrics) provider.Provider {
	stripe := provider.NewStripeProvider(&provider.StripeConfig{
		SecretKey:     cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
	})

	breaker := provider.DefaultBreakerConfig()
	if cfg.Stripe.FailureThreshold > 0 {
		breaker.FailureThreshold = cfg.Stripe.FailureThreshold
	}
	if cfg.Stripe.CircuitTimeout > 0 {
		breaker.Timeout = cfg.Stripe.CircuitTimeout
	}
	if cfg.Stripe.RequestTimeout > 0 {
		breaker.RequestTimeout = cfg.Stripe.RequestTimeout
	}
	return provider.NewCircuitBreaker(stripe, breaker, m)
}

// ProvideArchiver creates the webhook archive, or nil when no bucket is set.
func ProvideArchiver(cfg *config.Config, log *zap.Logger) (billing.Archiver, error) {
	if !cfg.Storage.Enabled() {
		log.Info("webhook archive disabled")
		return nil, nil
	}
	archiver, err := billing.NewS3Archiver(context.Background(), &cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("init webhook archive: %w", err)
	}
	return archiver, nil
}

// ProvideCatalog builds the plan catalog.
func ProvideCatalog(cfg *config.Config) *billing.Catalog {
	return billing.NewCatalog(&cfg.Stripe)
}

// ProvideTrialPolicy builds the trial policy.
func ProvideTrialPolicy(cfg *config.Config) billing.TrialPolicy {
	return billing.TrialPolicy{
		DefaultDays: cfg.Stripe.TrialDays,
		FreeDays:    cfg.Stripe.FreeTrialDays,
	}
}

// ===== Handler Providers =====

// HandlerSet provides HTTP handlers.
var HandlerSet = wire.NewSet(
	user.NewHandler,
	referral.NewHandler,
	billing.NewHandler,
	billing.NewWebhookHandler,
)

// AppSet combines all provider sets.
var AppSet = wire.NewSet(
	InfraSet,
	ModuleSet,
	HandlerSet,
	wire.Struct(new(Handlers), "*"),
	NewApp,
)
