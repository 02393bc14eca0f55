package billing

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flox/server/internal/module/billing/provider"
	"github.com/flox/server/internal/shared/response"
	apperrors "github.com/flox/server/internal/utils/errors"
)

// maxWebhookBody bounds the notification payload read into memory.
const maxWebhookBody = 1 << 20

// WebhookHandler handles billing provider webhooks.
type WebhookHandler struct {
	processor *WebhookProcessor
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(processor *WebhookProcessor) *WebhookHandler {
	return &WebhookHandler{processor: processor}
}

// RegisterRoutes registers the webhook routes.
func (h *WebhookHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/stripe", h.HandleStripeWebhook)
}

// HandleStripeWebhook godoc
// @Summary      Stripe webhook
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Param        Stripe-Signature header string true "Webhook signature"
// @Success      200 {object} WebhookResponse
// @Failure      400 {object} apperrors.ErrorResponse
// @Router       /webhooks/stripe [post]
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	// Raw body is needed for signature verification
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		response.Error(c, apperrors.BadRequest("failed to read body"))
		return
	}

	result, err := h.processor.Process(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, provider.ErrInvalidSignature) {
			response.Error(c, apperrors.BadRequest("invalid signature").WithError(err))
			return
		}
		response.Error(c, apperrors.Internal("webhook processing failed", err))
		return
	}

	c.JSON(http.StatusOK, WebhookResponse{Received: true, Result: result})
}
