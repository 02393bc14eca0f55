package referral

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/flox/server/internal/utils/metrics"
)

// Reason explains why a code cannot be used. The zero value means valid.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonNotFound          Reason = "not_found"
	ReasonInactive          Reason = "inactive"
	ReasonExpired           Reason = "expired"
	ReasonUsageLimitReached Reason = "usage_limit_reached"
)

// AlreadyUsedMessage is shown when a user tries to reuse a code.
const AlreadyUsedMessage = "You have already used this referral code"

// Message returns the user-facing explanation.
func (r Reason) Message() string {
	switch r {
	case ReasonNone:
		return ""
	case ReasonNotFound:
		return "Invalid referral code"
	case ReasonInactive:
		return "Referral code is no longer active"
	case ReasonExpired:
		return "Referral code has expired"
	case ReasonUsageLimitReached:
		return "Referral code has reached maximum uses"
	default:
		return "Referral code cannot be used"
	}
}

// Err returns the sentinel error for the reason, or nil when valid.
func (r Reason) Err() error {
	switch r {
	case ReasonNone:
		return nil
	case ReasonNotFound:
		return ErrCodeNotFound
	case ReasonInactive:
		return ErrCodeInactive
	case ReasonExpired:
		return ErrCodeExpired
	case ReasonUsageLimitReached:
		return ErrCodeUsageLimitReached
	default:
		return ErrCodeNotFound
	}
}

// ValidationResult is the outcome of validating a code.
// Code is set whenever the lookup found a row, even if it is not usable.
type ValidationResult struct {
	Code   *ReferralCode
	Reason Reason
}

// Valid reports whether the code can be applied.
func (r *ValidationResult) Valid() bool {
	return r.Reason == ReasonNone && r.Code != nil
}

// Normalize trims and upper-cases a raw code.
func Normalize(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Evaluate applies the validity rules in order; the first failing rule wins.
// A nil code means the lookup found nothing.
func Evaluate(code *ReferralCode, now time.Time) Reason {
	switch {
	case code == nil:
		return ReasonNotFound
	case !code.IsActive:
		return ReasonInactive
	case code.ExpiresAt != nil && now.After(*code.ExpiresAt):
		return ReasonExpired
	case code.MaxUses != nil && code.CurrentUses >= *code.MaxUses:
		return ReasonUsageLimitReached
	}
	return ReasonNone
}

// Validator checks codes against the store. It never writes.
type Validator struct {
	repo    Repository
	metrics *metrics.Metrics
}

// NewValidator creates a new validator.
func NewValidator(repo Repository, m *metrics.Metrics) *Validator {
	return &Validator{repo: repo, metrics: m}
}

// Validate looks up the normalized code and evaluates it at now.
// The error is reserved for store failures; invalid codes are reported in the result.
func (v *Validator) Validate(ctx context.Context, raw string, now time.Time) (*ValidationResult, error) {
	normalized := Normalize(raw)
	if normalized == "" {
		v.metrics.RecordValidation(string(ReasonNotFound))
		return &ValidationResult{Reason: ReasonNotFound}, nil
	}

	code, err := v.repo.GetByCode(ctx, normalized)
	if err != nil && !errors.Is(err, ErrCodeNotFound) {
		return nil, err
	}

	result := &ValidationResult{Code: code, Reason: Evaluate(code, now)}
	if result.Reason == ReasonNone {
		v.metrics.RecordValidation("valid")
	} else {
		v.metrics.RecordValidation(string(result.Reason))
	}
	return result, nil
}
