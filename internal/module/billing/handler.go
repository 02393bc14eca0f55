package billing

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/flox/server/internal/module/referral"
	"github.com/flox/server/internal/module/user"
	"github.com/flox/server/internal/shared/response"
	apperrors "github.com/flox/server/internal/utils/errors"
	"github.com/flox/server/internal/utils/middleware"
)

// Handler handles HTTP requests for subscriptions.
type Handler struct {
	provisioner *Provisioner
}

// NewHandler creates a new billing handler.
func NewHandler(provisioner *Provisioner) *Handler {
	return &Handler{provisioner: provisioner}
}

// RegisterPublicRoutes registers routes that need no authentication.
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.GET("/plans", h.ListPlans)
}

// RegisterProtectedRoutes registers routes that require an authenticated user.
// idempotency, if not nil, runs before subscription creation.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup, idempotency gin.HandlerFunc) {
	if idempotency != nil {
		r.POST("/subscriptions", idempotency, h.CreateSubscription)
	} else {
		r.POST("/subscriptions", h.CreateSubscription)
	}
}

// ListPlans godoc
// @Summary      List subscription plans
// @Tags         subscriptions
// @Produce      json
// @Success      200 {object} PlansResponse
// @Router       /plans [get]
func (h *Handler) ListPlans(c *gin.Context) {
	c.JSON(http.StatusOK, PlansResponse{Plans: h.provisioner.Plans()})
}

// CreateSubscription godoc
// @Summary      Start a subscription
// @Description  Creates a trialing subscription, applying an optional referral code.
// @Tags         subscriptions
// @Accept       json
// @Produce      json
// @Param        request body CreateSubscriptionRequest true "Plan selection"
// @Param        Idempotency-Key header string false "Client idempotency key"
// @Success      201 {object} SubscriptionResponse
// @Failure      400 {object} apperrors.ErrorResponse
// @Failure      402 {object} apperrors.ErrorResponse
// @Failure      409 {object} apperrors.ErrorResponse
// @Failure      503 {object} apperrors.ErrorResponse
// @Security     BearerAuth
// @Router       /subscriptions [post]
func (h *Handler) CreateSubscription(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		response.Error(c, apperrors.Unauthorized(""))
		return
	}

	var req CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperrors.BadRequest("Plan is required"))
		return
	}

	result, err := h.provisioner.Provision(c.Request.Context(), ProvisionRequest{
		UserID:         userID,
		Plan:           user.Plan(strings.ToLower(strings.TrimSpace(req.Plan))),
		ReferralCode:   req.ReferralCode,
		IdempotencyKey: c.GetHeader(middleware.IdempotencyKeyHeader),
	})
	if err != nil {
		response.HandleErrorWithDefault(c, err, provisionErrorMappings)
		return
	}

	c.JSON(http.StatusCreated, result.ToResponse())
}

var provisionErrorMappings = append([]response.ErrorMapping{
	response.Map(ErrInvalidPlan, func() *apperrors.AppError {
		return apperrors.NewAppError("INVALID_PLAN", "Invalid plan selected", http.StatusBadRequest, nil)
	}),
	response.Map(ErrAlreadySubscribed, func() *apperrors.AppError {
		return apperrors.NewAppError("ALREADY_SUBSCRIBED", "You already have a subscription", http.StatusConflict, nil)
	}),
	response.Map(ErrBillingRejected, func() *apperrors.AppError {
		return apperrors.NewAppError("PAYMENT_REJECTED", "The payment provider declined the request", http.StatusPaymentRequired, nil)
	}),
	response.Map(ErrBillingUnavailable, func() *apperrors.AppError {
		return apperrors.ServiceUnavailable("Payment service is temporarily unavailable, please try again")
	}),
}, referral.ErrorMappings...)
