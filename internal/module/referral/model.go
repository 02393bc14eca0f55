package referral

import (
	"time"

	"github.com/google/uuid"
)

// DiscountType describes how a code changes the subscription.
type DiscountType string

const (
	DiscountPercentage     DiscountType = "percentage"
	DiscountFixed          DiscountType = "fixed"
	DiscountFree           DiscountType = "free"
	DiscountTrialExtension DiscountType = "trial_extension"
)

// IsValid checks if the discount type is known.
func (t DiscountType) IsValid() bool {
	switch t {
	case DiscountPercentage, DiscountFixed, DiscountFree, DiscountTrialExtension:
		return true
	}
	return false
}

// ReferralCode is a redeemable discount or trial adjustment.
// Codes are never deleted; they are deactivated.
type ReferralCode struct {
	ID            uuid.UUID    `json:"id" gorm:"type:uuid;primaryKey"`
	Code          string       `json:"code" gorm:"size:64;not null;uniqueIndex"`
	Description   string       `json:"description"`
	DiscountType  DiscountType `json:"discount_type" gorm:"size:32;not null"`
	DiscountValue int          `json:"discount_value" gorm:"not null"` // percent, cents, or extra days
	MaxUses       *int         `json:"max_uses,omitempty"`             // nil = unlimited
	CurrentUses   int          `json:"current_uses" gorm:"not null"`
	IsActive      bool         `json:"is_active" gorm:"not null"`
	ExpiresAt     *time.Time   `json:"expires_at,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// TableName returns the table name.
func (ReferralCode) TableName() string {
	return "referral_codes"
}

// RemainingUses returns how many redemptions are left, or -1 when unlimited.
func (c *ReferralCode) RemainingUses() int {
	if c.MaxUses == nil {
		return -1
	}
	if left := *c.MaxUses - c.CurrentUses; left > 0 {
		return left
	}
	return 0
}

// ReferralCodeUsage is the ledger row written once per redemption.
type ReferralCodeUsage struct {
	ID             string        `json:"id" gorm:"size:26;primaryKey"` // ULID
	ReferralCodeID uuid.UUID     `json:"referral_code_id" gorm:"type:uuid;not null;uniqueIndex:idx_referral_usage_code_user"`
	UserID         uuid.UUID     `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_referral_usage_code_user;index"`
	SubscriptionID *string       `json:"subscription_id,omitempty" gorm:"size:255"`
	UsedAt         time.Time     `json:"used_at" gorm:"not null"`
	ReferralCode   *ReferralCode `json:"-" gorm:"foreignKey:ReferralCodeID"`
}

// TableName returns the table name.
func (ReferralCodeUsage) TableName() string {
	return "referral_code_usages"
}

// Models returns the models owned by this module, for migration.
func Models() []any {
	return []any{&ReferralCode{}, &ReferralCodeUsage{}}
}
