package referral

import "time"

// ValidateCodeRequest is the body of a validation call.
type ValidateCodeRequest struct {
	Code string `json:"code" binding:"required"`
}

// CodeResponse is what clients see about a usable code.
type CodeResponse struct {
	Code          string       `json:"code"`
	Description   string       `json:"description"`
	DiscountType  DiscountType `json:"discount_type"`
	DiscountValue int          `json:"discount_value"`
}

// ToResponse converts a code to its client view.
func (c *ReferralCode) ToResponse() *CodeResponse {
	return &CodeResponse{
		Code:          c.Code,
		Description:   c.Description,
		DiscountType:  c.DiscountType,
		DiscountValue: c.DiscountValue,
	}
}

// AdminCodeResponse includes usage counters.
type AdminCodeResponse struct {
	CodeResponse
	MaxUses     *int       `json:"max_uses,omitempty"`
	CurrentUses int        `json:"current_uses"`
	IsActive    bool       `json:"is_active"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// ToAdminResponse converts a code to its admin view.
func (c *ReferralCode) ToAdminResponse() *AdminCodeResponse {
	return &AdminCodeResponse{
		CodeResponse: *c.ToResponse(),
		MaxUses:      c.MaxUses,
		CurrentUses:  c.CurrentUses,
		IsActive:     c.IsActive,
		ExpiresAt:    c.ExpiresAt,
	}
}

// UsageResponse is one redemption in the caller's history.
type UsageResponse struct {
	ID             string    `json:"id"`
	Code           string    `json:"code,omitempty"`
	SubscriptionID string    `json:"subscription_id,omitempty"`
	UsedAt         time.Time `json:"used_at"`
}

// ToResponse converts a ledger row to its client view.
func (u *ReferralCodeUsage) ToResponse() *UsageResponse {
	resp := &UsageResponse{ID: u.ID, UsedAt: u.UsedAt}
	if u.ReferralCode != nil {
		resp.Code = u.ReferralCode.Code
	}
	if u.SubscriptionID != nil {
		resp.SubscriptionID = *u.SubscriptionID
	}
	return resp
}

// UsageListResponse wraps the history.
type UsageListResponse struct {
	Usage []*UsageResponse `json:"usage"`
}
