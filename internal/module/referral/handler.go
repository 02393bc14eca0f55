package referral

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/flox/server/internal/shared/response"
	apperrors "github.com/flox/server/internal/utils/errors"
	"github.com/flox/server/internal/utils/middleware"
)

// Handler handles HTTP requests for referral codes.
type Handler struct {
	service *Service
}

// NewHandler creates a new referral handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterProtectedRoutes registers routes that require an authenticated user.
// validateLimit, if not nil, runs before the validation endpoint.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup, validateLimit gin.HandlerFunc) {
	codes := r.Group("/referral-codes")
	{
		if validateLimit != nil {
			codes.POST("/validate", validateLimit, h.Validate)
		} else {
			codes.POST("/validate", h.Validate)
		}
		codes.GET("/usage", h.ListUsage)
	}
}

// RegisterAdminRoutes registers administrative routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	codes := r.Group("/referral-codes")
	{
		codes.POST("", h.CreateCode)
		codes.POST("/:code/deactivate", h.DeactivateCode)
	}
}

// Validate godoc
// @Summary      Validate a referral code
// @Tags         referral
// @Accept       json
// @Produce      json
// @Param        request body ValidateCodeRequest true "Code to check"
// @Success      200 {object} CodeResponse
// @Failure      400 {object} apperrors.ErrorResponse
// @Failure      404 {object} apperrors.ErrorResponse
// @Failure      409 {object} apperrors.ErrorResponse
// @Security     BearerAuth
// @Router       /referral-codes/validate [post]
func (h *Handler) Validate(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		response.Error(c, apperrors.Unauthorized(""))
		return
	}

	var req ValidateCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperrors.BadRequest("Referral code is required"))
		return
	}

	code, err := h.service.Check(c.Request.Context(), userID, req.Code)
	if err != nil {
		handleReferralError(c, err)
		return
	}

	c.JSON(http.StatusOK, code.ToResponse())
}

// ListUsage godoc
// @Summary      List the caller's referral redemptions
// @Tags         referral
// @Produce      json
// @Success      200 {object} UsageListResponse
// @Security     BearerAuth
// @Router       /referral-codes/usage [get]
func (h *Handler) ListUsage(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		response.Error(c, apperrors.Unauthorized(""))
		return
	}

	usages, err := h.service.ListUsage(c.Request.Context(), userID)
	if err != nil {
		handleReferralError(c, err)
		return
	}

	resp := UsageListResponse{Usage: make([]*UsageResponse, len(usages))}
	for i, u := range usages {
		resp.Usage[i] = u.ToResponse()
	}
	c.JSON(http.StatusOK, resp)
}

// CreateCode godoc
// @Summary      Create a referral code
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        request body CodeSpec true "Code definition"
// @Success      201 {object} AdminCodeResponse
// @Failure      400 {object} apperrors.ErrorResponse
// @Failure      409 {object} apperrors.ErrorResponse
// @Security     AdminToken
// @Router       /admin/referral-codes [post]
func (h *Handler) CreateCode(c *gin.Context) {
	var spec CodeSpec
	if err := c.ShouldBindJSON(&spec); err != nil {
		response.Error(c, apperrors.BadRequest("invalid request body"))
		return
	}

	code, err := h.service.CreateCode(c.Request.Context(), spec)
	if err != nil {
		handleReferralError(c, err)
		return
	}

	c.JSON(http.StatusCreated, code.ToAdminResponse())
}

// DeactivateCode godoc
// @Summary      Deactivate a referral code
// @Tags         admin
// @Param        code path string true "Referral code"
// @Success      204
// @Failure      404 {object} apperrors.ErrorResponse
// @Security     AdminToken
// @Router       /admin/referral-codes/{code}/deactivate [post]
func (h *Handler) DeactivateCode(c *gin.Context) {
	if err := h.service.Deactivate(c.Request.Context(), c.Param("code")); err != nil {
		handleReferralError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ErrorMappings renders referral failures for any handler that surfaces them.
var ErrorMappings = []response.ErrorMapping{
	response.Map(ErrCodeNotFound, func() *apperrors.AppError {
		return apperrors.NewAppError("REFERRAL_CODE_NOT_FOUND", ReasonNotFound.Message(), http.StatusNotFound, nil)
	}),
	response.Map(ErrCodeInactive, func() *apperrors.AppError {
		return apperrors.NewAppError("REFERRAL_CODE_INACTIVE", ReasonInactive.Message(), http.StatusBadRequest, nil)
	}),
	response.Map(ErrCodeExpired, func() *apperrors.AppError {
		return apperrors.NewAppError("REFERRAL_CODE_EXPIRED", ReasonExpired.Message(), http.StatusBadRequest, nil)
	}),
	response.Map(ErrCodeUsageLimitReached, func() *apperrors.AppError {
		return apperrors.NewAppError("REFERRAL_CODE_USAGE_LIMIT_REACHED", ReasonUsageLimitReached.Message(), http.StatusBadRequest, nil)
	}),
	response.Map(ErrCodeAlreadyUsed, func() *apperrors.AppError {
		return apperrors.NewAppError("REFERRAL_CODE_ALREADY_USED", AlreadyUsedMessage, http.StatusConflict, nil)
	}),
	response.Map(ErrCodeExists, func() *apperrors.AppError {
		return apperrors.Conflict("Referral code already exists")
	}),
}

func handleReferralError(c *gin.Context, err error) {
	if errors.Is(err, ErrInvalidCodeSpec) {
		response.Error(c, apperrors.BadRequest(err.Error()))
		return
	}
	response.HandleErrorWithDefault(c, err, ErrorMappings)
}
