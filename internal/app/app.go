package app

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"

	_ "github.com/flox/server/cmd/server/docs" // swagger docs
	"github.com/flox/server/internal/module/billing"
	"github.com/flox/server/internal/module/referral"
	"github.com/flox/server/internal/module/user"
	"github.com/flox/server/internal/shared/config"
	"github.com/flox/server/internal/utils/metrics"
	"github.com/flox/server/internal/utils/middleware"
)

// Handlers groups the HTTP handlers mounted by the router.
type Handlers struct {
	User     *user.Handler
	Referral *referral.Handler
	Billing  *billing.Handler
	Webhook  *billing.WebhookHandler
}

// App represents the application.
type App struct {
	config   *config.Config
	db       *gorm.DB
	redis    goredis.UniversalClient
	router   *gin.Engine
	logger   *zap.Logger
	metrics  *metrics.Metrics
	registry *prometheus.Registry
}

// NewApp assembles the router from the wired handlers.
func NewApp(
	cfg *config.Config,
	db *gorm.DB,
	redis goredis.UniversalClient,
	log *zap.Logger,
	m *metrics.Metrics,
	reg *prometheus.Registry,
	validator middleware.JWTValidator,
	limiter middleware.RateLimiter,
	handlers *Handlers,
) *App {
	a := &App{
		config:   cfg,
		db:       db,
		redis:    redis,
		logger:   log,
		metrics:  m,
		registry: reg,
	}
	a.router = a.setupRouter()
	a.registerRoutes(validator, limiter, handlers)
	return a
}

// Router returns the HTTP router.
func (a *App) Router() *gin.Engine {
	return a.router
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// setupRouter creates the engine with global middleware.
func (a *App) setupRouter() *gin.Engine {
	r := gin.New()

	r.Use(middleware.Recovery(a.logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(a.logger))
	r.Use(middleware.Metrics(a.metrics))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(a.config.Server.AllowOrigins)))

	r.GET("/health", a.health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))

	return r
}

// registerRoutes mounts the API.
func (a *App) registerRoutes(validator middleware.JWTValidator, limiter middleware.RateLimiter, h *Handlers) {
	v1 := a.router.Group("/api/v1")

	// Public routes
	public := v1.Group("")
	{
		h.Billing.RegisterPublicRoutes(public)
	}

	// Provider notifications authenticate by signature
	webhooks := v1.Group("/webhooks")
	{
		h.Webhook.RegisterRoutes(webhooks)
	}

	// Protected routes (require auth)
	protected := v1.Group("")
	protected.Use(middleware.RequireAuth(validator), h.User.EnsureUserMiddleware())
	{
		h.User.RegisterProtectedRoutes(protected)
		h.Referral.RegisterProtectedRoutes(protected, middleware.RateLimitByUser(
			limiter,
			a.config.Referral.ValidateRateLimit,
			a.config.Referral.ValidateRateWindow,
		))
		h.Billing.RegisterProtectedRoutes(protected, middleware.Idempotency(a.redis, idempotencyConfig(a.config)))
	}

	// Admin routes
	admin := v1.Group("/admin")
	admin.Use(middleware.AdminToken(a.config.Auth.AdminToken))
	{
		h.Referral.RegisterAdminRoutes(admin)
	}
}

// provisionProviderCalls is the most sequential provider calls one
// provisioning request makes: customer, coupon, subscription.
const provisionProviderCalls = 3

// idempotencyConfig keeps the in-flight lock longer than a provisioning
// request can run, so a client retry waits for the first attempt.
func idempotencyConfig(cfg *config.Config) middleware.IdempotencyConfig {
	idem := middleware.DefaultIdempotencyConfig()
	budget := provisionProviderCalls*cfg.Stripe.RequestTimeout + 30*time.Second
	if budget > idem.LockTTL {
		idem.LockTTL = budget
	}
	return idem
}

// health reports liveness and database reachability.
func (a *App) health(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}

	if sqlDB, err := a.db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		status = http.StatusServiceUnavailable
		body = gin.H{"status": "degraded", "database": "unreachable"}
	}
	c.JSON(status, body)
}
