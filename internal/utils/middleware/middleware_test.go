package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/flox/server/internal/utils/metrics"
	"github.com/flox/server/internal/utils/requestctx"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testSecret = "test-secret"

func signToken(t *testing.T, secret, subject string, expiresIn time.Duration) string {
	t.Helper()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Email: "jane@example.com",
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestRequestID(t *testing.T) {
	t.Run("generates new request ID when not provided", func(t *testing.T) {
		router := gin.New()
		router.Use(RequestID())
		router.GET("/test", func(c *gin.Context) {
			c.String(http.StatusOK, requestctx.RequestID(c.Request.Context()))
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		headerID := w.Header().Get(RequestIDHeader)
		assert.NotEmpty(t, headerID)
		assert.Equal(t, headerID, w.Body.String())
	})

	t.Run("uses existing request ID from header", func(t *testing.T) {
		router := gin.New()
		router.Use(RequestID())
		router.GET("/test", func(c *gin.Context) {
			c.String(http.StatusOK, GetRequestID(c))
		})

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set(RequestIDHeader, "existing-request-id-123")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "existing-request-id-123", w.Header().Get(RequestIDHeader))
		assert.Equal(t, "existing-request-id-123", w.Body.String())
	})
}

func TestHMACValidator(t *testing.T) {
	validator := NewHMACValidator(testSecret, "")
	userID := uuid.New()

	t.Run("valid token", func(t *testing.T) {
		identity, err := validator.ValidateToken(signToken(t, testSecret, userID.String(), time.Hour))
		require.NoError(t, err)
		assert.Equal(t, userID, identity.UserID)
		assert.Equal(t, "jane@example.com", identity.Email)
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := validator.ValidateToken(signToken(t, "other", userID.String(), time.Hour))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		_, err := validator.ValidateToken(signToken(t, testSecret, userID.String(), -time.Minute))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("subject is not a uuid", func(t *testing.T) {
		_, err := validator.ValidateToken(signToken(t, testSecret, "user-42", time.Hour))
		assert.ErrorIs(t, err, ErrInvalidTokenSubject)
	})
}

func TestRequireAuth(t *testing.T) {
	userID := uuid.New()
	router := gin.New()
	router.Use(RequireAuth(NewHMACValidator(testSecret, "")))
	router.GET("/me", func(c *gin.Context) {
		assert.Equal(t, GetUserID(c), requestctx.UserID(c.Request.Context()))
		c.String(http.StatusOK, GetUserID(c).String())
	})

	t.Run("missing header", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/me", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
	})

	t.Run("invalid token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/me", nil)
		req.Header.Set(AuthorizationHeader, BearerPrefix+"garbage")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/me", nil)
		req.Header.Set(AuthorizationHeader, BearerPrefix+signToken(t, testSecret, userID.String(), time.Hour))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, userID.String(), w.Body.String())
	})
}

func TestOptionalAuth(t *testing.T) {
	router := gin.New()
	router.Use(OptionalAuth(NewHMACValidator(testSecret, "")))
	router.GET("/plans", func(c *gin.Context) {
		c.String(http.StatusOK, GetUserID(c).String())
	})

	req := httptest.NewRequest("GET", "/plans", nil)
	req.Header.Set(AuthorizationHeader, BearerPrefix+"garbage")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, uuid.Nil.String(), w.Body.String())
}

func TestAdminToken(t *testing.T) {
	newRouter := func(token string) *gin.Engine {
		router := gin.New()
		router.Use(AdminToken(token))
		router.POST("/admin", func(c *gin.Context) { c.Status(http.StatusNoContent) })
		return router
	}

	t.Run("disabled without a configured token", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/admin", nil)
		req.Header.Set(AdminTokenHeader, "")
		w := httptest.NewRecorder()
		newRouter("").ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("wrong token", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/admin", nil)
		req.Header.Set(AdminTokenHeader, "nope")
		w := httptest.NewRecorder()
		newRouter("s3cret").ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("correct token", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/admin", nil)
		req.Header.Set(AdminTokenHeader, "s3cret")
		w := httptest.NewRecorder()
		newRouter("s3cret").ServeHTTP(w, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}

type fakeLimiter struct {
	allowed   bool
	remaining int
	err       error
	keys      []string
}

func (f *fakeLimiter) Allow(_ context.Context, key string, _ int, _ time.Duration) (bool, int, error) {
	f.keys = append(f.keys, key)
	return f.allowed, f.remaining, f.err
}

func TestRateLimit(t *testing.T) {
	newRouter := func(l RateLimiter) *gin.Engine {
		router := gin.New()
		router.POST("/validate", RateLimitByUser(l, 5, time.Minute), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})
		return router
	}

	t.Run("allowed sets headers", func(t *testing.T) {
		l := &fakeLimiter{allowed: true, remaining: 4}
		w := httptest.NewRecorder()
		newRouter(l).ServeHTTP(w, httptest.NewRequest("POST", "/validate", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "5", w.Header().Get(RateLimitLimit))
		assert.Equal(t, "4", w.Header().Get(RateLimitRemaining))
		require.Len(t, l.keys, 1)
		assert.Contains(t, l.keys[0], "ip:")
	})

	t.Run("denied returns 429", func(t *testing.T) {
		w := httptest.NewRecorder()
		newRouter(&fakeLimiter{allowed: false}).ServeHTTP(w, httptest.NewRequest("POST", "/validate", nil))

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "60", w.Header().Get(RetryAfter))
		assert.Contains(t, w.Body.String(), "RATE_LIMITED")
	})

	t.Run("limiter failure lets request through", func(t *testing.T) {
		w := httptest.NewRecorder()
		newRouter(&fakeLimiter{err: errors.New("redis down")}).ServeHTTP(w, httptest.NewRequest("POST", "/validate", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("nil limiter is a no-op", func(t *testing.T) {
		w := httptest.NewRecorder()
		newRouter(nil).ServeHTTP(w, httptest.NewRequest("POST", "/validate", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestIdempotency_WithoutRedisPassesThrough(t *testing.T) {
	calls := 0
	router := gin.New()
	router.Use(Idempotency(nil, DefaultIdempotencyConfig()))
	router.POST("/subscriptions", func(c *gin.Context) {
		calls++
		c.Status(http.StatusCreated)
	})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("POST", "/subscriptions", nil)
		req.Header.Set(IdempotencyKeyHeader, "key-1")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusCreated, w.Code)
	}
	assert.Equal(t, 2, calls)
}

func TestIdempotencyConfig_Defaults(t *testing.T) {
	cfg := IdempotencyConfig{}.withDefaults()
	assert.Equal(t, defaultIdempotencyTTL, cfg.TTL)
	assert.Equal(t, defaultIdempotencyLockTTL, cfg.LockTTL)
	assert.Equal(t, []string{"POST", "PUT", "PATCH"}, cfg.Methods)

	cfg = IdempotencyConfig{LockTTL: 5 * time.Minute}.withDefaults()
	assert.Equal(t, 5*time.Minute, cfg.LockTTL)
	assert.Equal(t, DefaultIdempotencyConfig().LockTTL, defaultIdempotencyLockTTL)
}

func TestLogging(t *testing.T) {
	tests := []struct {
		name   string
		status int
		level  zapcore.Level
	}{
		{"success logs info", http.StatusOK, zapcore.InfoLevel},
		{"client error logs warn", http.StatusNotFound, zapcore.WarnLevel},
		{"server error logs error", http.StatusInternalServerError, zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)

			router := gin.New()
			router.Use(RequestID())
			router.Use(Logging(zap.New(core)))
			router.GET("/test", func(c *gin.Context) {
				c.String(tt.status, "x")
			})

			req := httptest.NewRequest("GET", "/test?foo=bar", nil)
			req.Header.Set("User-Agent", "TestAgent/1.0")
			router.ServeHTTP(httptest.NewRecorder(), req)

			entries := logs.FilterMessage("HTTP Request").All()
			require.Len(t, entries, 1)
			assert.Equal(t, tt.level, entries[0].Level)

			fields := entries[0].ContextMap()
			assert.Equal(t, int64(tt.status), fields["status"])
			assert.Equal(t, "/test", fields["path"])
			assert.Equal(t, "foo=bar", fields["query"])
			assert.Equal(t, "TestAgent/1.0", fields["user_agent"])
			assert.NotEmpty(t, fields["request_id"])
		})
	}
}

func TestRecovery(t *testing.T) {
	t.Run("recovers from panic", func(t *testing.T) {
		core, logs := observer.New(zapcore.ErrorLevel)

		router := gin.New()
		router.Use(Recovery(zap.New(core)))
		router.GET("/panic", func(c *gin.Context) {
			panic("test panic")
		})

		w := httptest.NewRecorder()
		require.NotPanics(t, func() {
			router.ServeHTTP(w, httptest.NewRequest("GET", "/panic", nil))
		})

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
		assert.Equal(t, 1, logs.FilterMessage("Panic recovered").Len())
	})

	t.Run("uses nop logger when nil", func(t *testing.T) {
		router := gin.New()
		router.Use(Recovery(nil))
		router.GET("/panic", func(c *gin.Context) {
			panic("test panic")
		})

		w := httptest.NewRecorder()
		require.NotPanics(t, func() {
			router.ServeHTTP(w, httptest.NewRequest("GET", "/panic", nil))
		})
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestMetrics(t *testing.T) {
	m := metrics.New("test", prometheus.NewRegistry())

	router := gin.New()
	router.Use(Metrics(m))
	router.GET("/api/v1/plans", func(c *gin.Context) { c.Status(http.StatusOK) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/v1/plans", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/nowhere", nil))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/plans", "2xx")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "4xx")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.HTTPRequestsInFlight))
}

func TestDefaultCORSConfig(t *testing.T) {
	cfg := DefaultCORSConfig(nil)

	assert.Equal(t, []string{"*"}, cfg.AllowOrigins)
	assert.Contains(t, cfg.AllowMethods, "POST")
	assert.Contains(t, cfg.AllowHeaders, "Authorization")
	assert.Contains(t, cfg.AllowHeaders, IdempotencyKeyHeader)
	assert.False(t, cfg.AllowCredentials)
	assert.NotNil(t, CORS(DefaultCORSConfig([]string{"https://app.flox.dev"})))
}
