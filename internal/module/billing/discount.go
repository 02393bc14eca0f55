package billing

import (
	"github.com/flox/server/internal/module/billing/provider"
	"github.com/flox/server/internal/module/referral"
)

// TrialPolicy holds the trial lengths applied at provisioning.
type TrialPolicy struct {
	DefaultDays int
	FreeDays    int
}

// DefaultTrialPolicy is a 7-day trial, or a year for free codes.
var DefaultTrialPolicy = TrialPolicy{DefaultDays: 7, FreeDays: 365}

// AppliedDiscount describes the discount a subscription was created with.
type AppliedDiscount struct {
	Code           string                `json:"code"`
	Type           referral.DiscountType `json:"type"`
	PercentOff     int                   `json:"percent_off,omitempty"`
	AmountOff      int64                 `json:"amount_off,omitempty"`
	Currency       string                `json:"currency,omitempty"`
	ExtraTrialDays int                   `json:"extra_trial_days,omitempty"`
	Free           bool                  `json:"free,omitempty"`
}

// Terms is how a subscription should be configured at the provider.
type Terms struct {
	TrialDays int
	Coupon    *provider.CouponParams // nil when no coupon applies
	Free      bool
	Discount  *AppliedDiscount // nil without a code
}

// ComputeTerms maps a validated code onto provider subscription terms.
// A nil code yields the default trial.
func ComputeTerms(code *referral.ReferralCode, policy TrialPolicy, currency string) Terms {
	terms := Terms{TrialDays: policy.DefaultDays}
	if code == nil {
		return terms
	}

	applied := &AppliedDiscount{Code: code.Code, Type: code.DiscountType}
	switch code.DiscountType {
	case referral.DiscountPercentage:
		if code.DiscountValue > 0 {
			applied.PercentOff = code.DiscountValue
			terms.Coupon = &provider.CouponParams{
				Name:       code.Code,
				PercentOff: code.DiscountValue,
				Duration:   provider.CouponDurationForever,
			}
		}
	case referral.DiscountFixed:
		applied.AmountOff = int64(code.DiscountValue)
		applied.Currency = currency
		terms.Coupon = &provider.CouponParams{
			Name:      code.Code,
			AmountOff: int64(code.DiscountValue),
			Currency:  currency,
			Duration:  provider.CouponDurationForever,
		}
	case referral.DiscountFree:
		applied.Free = true
		terms.Free = true
		terms.TrialDays = policy.FreeDays
	case referral.DiscountTrialExtension:
		applied.ExtraTrialDays = code.DiscountValue
		terms.TrialDays = policy.DefaultDays + code.DiscountValue
	}
	terms.Discount = applied
	return terms
}
