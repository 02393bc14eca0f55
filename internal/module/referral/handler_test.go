package referral

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	apperrors "github.com/flox/server/internal/utils/errors"
	"github.com/flox/server/internal/utils/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T, userID uuid.UUID) (*gin.Engine, *gorm.DB) {
	t.Helper()
	svc, db := newTestService(t)
	h := NewHandler(svc)

	router := gin.New()
	api := router.Group("/api/v1")
	protected := api.Group("")
	protected.Use(func(c *gin.Context) {
		c.Set(middleware.UserIDKey, userID)
		c.Next()
	})
	h.RegisterProtectedRoutes(protected, nil)
	h.RegisterAdminRoutes(api.Group("/admin"))
	return router, db
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) apperrors.ErrorDetail {
	t.Helper()
	var resp apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

func TestHandler_Validate(t *testing.T) {
	userID := uuid.New()
	router, db := newTestRouter(t, userID)

	insertCode(t, db, ReferralCode{
		Code: "FLOX25OFF", Description: "25% Off Your Subscription",
		DiscountType: DiscountPercentage, DiscountValue: 25, IsActive: true,
	})
	insertCode(t, db, ReferralCode{
		Code: "FLOXVIP", DiscountType: DiscountFree, DiscountValue: 100, IsActive: true,
		MaxUses: intPtr(10), CurrentUses: 10,
	})
	insertCode(t, db, ReferralCode{
		Code: "WELCOME10", DiscountType: DiscountPercentage, DiscountValue: 10, IsActive: true,
	})

	t.Run("valid code", func(t *testing.T) {
		w := doJSON(router, http.MethodPost, "/api/v1/referral-codes/validate", ValidateCodeRequest{Code: "flox25off"})
		require.Equal(t, http.StatusOK, w.Code)

		var resp CodeResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "FLOX25OFF", resp.Code)
		assert.Equal(t, DiscountPercentage, resp.DiscountType)
		assert.Equal(t, 25, resp.DiscountValue)
	})

	t.Run("missing body", func(t *testing.T) {
		w := doJSON(router, http.MethodPost, "/api/v1/referral-codes/validate", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown code", func(t *testing.T) {
		w := doJSON(router, http.MethodPost, "/api/v1/referral-codes/validate", ValidateCodeRequest{Code: "NOPE"})
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "REFERRAL_CODE_NOT_FOUND", errorCode(t, w).Code)
	})

	t.Run("exhausted code explains why", func(t *testing.T) {
		w := doJSON(router, http.MethodPost, "/api/v1/referral-codes/validate", ValidateCodeRequest{Code: "FLOXVIP"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		detail := errorCode(t, w)
		assert.Equal(t, "REFERRAL_CODE_USAGE_LIMIT_REACHED", detail.Code)
		assert.Equal(t, ReasonUsageLimitReached.Message(), detail.Message)
	})

	t.Run("already used by caller", func(t *testing.T) {
		_, err := newTestRecorder(db, nil).Redeem(context.Background(), "WELCOME10", userID, "")
		require.NoError(t, err)

		w := doJSON(router, http.MethodPost, "/api/v1/referral-codes/validate", ValidateCodeRequest{Code: "WELCOME10"})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, AlreadyUsedMessage, errorCode(t, w).Message)
	})
}

func TestHandler_ListUsage(t *testing.T) {
	userID := uuid.New()
	router, db := newTestRouter(t, userID)
	insertCode(t, db, ReferralCode{Code: "TRIAL7", DiscountType: DiscountTrialExtension, DiscountValue: 7, IsActive: true})

	_, err := newTestRecorder(db, nil).Redeem(context.Background(), "TRIAL7", userID, "sub_9")
	require.NoError(t, err)

	w := doJSON(router, http.MethodGet, "/api/v1/referral-codes/usage", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp UsageListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Usage, 1)
	assert.Equal(t, "TRIAL7", resp.Usage[0].Code)
	assert.Equal(t, "sub_9", resp.Usage[0].SubscriptionID)
}

func TestHandler_Admin(t *testing.T) {
	router, _ := newTestRouter(t, uuid.New())

	expires := fixedNow.Add(48 * time.Hour)
	w := doJSON(router, http.MethodPost, "/api/v1/admin/referral-codes", CodeSpec{
		Code: "spring30", Description: "Spring sale", DiscountType: DiscountPercentage,
		DiscountValue: 30, MaxUses: intPtr(200), ExpiresAt: &expires,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created AdminCodeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "SPRING30", created.Code)
	assert.True(t, created.IsActive)
	assert.Equal(t, 200, *created.MaxUses)

	w = doJSON(router, http.MethodPost, "/api/v1/admin/referral-codes", CodeSpec{
		Code: "SPRING30", DiscountType: DiscountPercentage, DiscountValue: 30,
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(router, http.MethodPost, "/api/v1/admin/referral-codes", CodeSpec{
		Code: "BROKEN", DiscountType: "mystery", DiscountValue: 30,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodPost, "/api/v1/admin/referral-codes/spring30/deactivate", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(router, http.MethodPost, "/api/v1/referral-codes/validate", ValidateCodeRequest{Code: "SPRING30"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "REFERRAL_CODE_INACTIVE", errorCode(t, w).Code)

	w = doJSON(router, http.MethodPost, "/api/v1/admin/referral-codes/ghost/deactivate", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
