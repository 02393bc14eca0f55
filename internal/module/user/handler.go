package user

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/flox/server/internal/shared/response"
	apperrors "github.com/flox/server/internal/utils/errors"
	"github.com/flox/server/internal/utils/middleware"
)

// Handler handles HTTP requests for users.
type Handler struct {
	service *Service
}

// NewHandler creates a new user handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// EnsureUserMiddleware creates the local user row for the authenticated caller.
// It must run after authentication.
func (h *Handler) EnsureUserMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == uuid.Nil {
			response.Error(c, apperrors.Unauthorized(""))
			return
		}
		if _, err := h.service.EnsureUser(c.Request.Context(), userID, middleware.GetEmail(c)); err != nil {
			response.Error(c, apperrors.Internal("", err))
			return
		}
		c.Next()
	}
}

// RegisterProtectedRoutes registers routes that require authentication.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.GET("/users/me", h.GetCurrentUser)
	r.GET("/subscription/status", h.GetSubscriptionStatus)
}

// GetCurrentUser godoc
// @Summary      Current user
// @Tags         users
// @Produce      json
// @Success      200 {object} User
// @Security     BearerAuth
// @Router       /users/me [get]
func (h *Handler) GetCurrentUser(c *gin.Context) {
	u, err := h.service.GetUser(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// GetSubscriptionStatus godoc
// @Summary      Subscription status of the current user
// @Tags         subscriptions
// @Produce      json
// @Success      200 {object} SubscriptionSummary
// @Security     BearerAuth
// @Router       /subscription/status [get]
func (h *Handler) GetSubscriptionStatus(c *gin.Context) {
	summary, err := h.service.GetSubscriptionSummary(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func handleError(c *gin.Context, err error) {
	response.HandleErrorWithDefault(c, err, []response.ErrorMapping{
		response.Map(ErrUserNotFound, func() *apperrors.AppError { return apperrors.NotFound("user") }),
	})
}
