package billing

import (
	"time"

	"github.com/flox/server/internal/module/user"
)

// CreateSubscriptionRequest is the plan selection body.
type CreateSubscriptionRequest struct {
	Plan         string `json:"plan" binding:"required"`
	ReferralCode string `json:"referral_code,omitempty"`
}

// SubscriptionResponse is returned after provisioning.
type SubscriptionResponse struct {
	SubscriptionID string           `json:"subscription_id"`
	ClientSecret   string           `json:"client_secret,omitempty"`
	Status         string           `json:"status"`
	Plan           user.Plan        `json:"plan"`
	TrialDays      int              `json:"trial_days"`
	TrialEndsAt    *time.Time       `json:"trial_ends_at,omitempty"`
	Discount       *AppliedDiscount `json:"discount,omitempty"`
	Warning        string           `json:"warning,omitempty"`
}

// ToResponse converts a ProvisionResult to its response.
func (r *ProvisionResult) ToResponse() *SubscriptionResponse {
	return &SubscriptionResponse{
		SubscriptionID: r.SubscriptionID,
		ClientSecret:   r.ClientSecret,
		Status:         r.Status,
		Plan:           r.Plan,
		TrialDays:      r.TrialDays,
		TrialEndsAt:    r.TrialEndsAt,
		Discount:       r.Discount,
		Warning:        r.Warning,
	}
}

// PlansResponse lists purchasable plans.
type PlansResponse struct {
	Plans []*PlanInfo `json:"plans"`
}

// WebhookResponse acknowledges a billing notification.
type WebhookResponse struct {
	Received bool   `json:"received"`
	Result   string `json:"result"`
}
