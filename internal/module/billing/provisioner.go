package billing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/flox/server/internal/module/billing/provider"
	"github.com/flox/server/internal/module/referral"
	"github.com/flox/server/internal/module/user"
	"github.com/flox/server/internal/utils/metrics"
)

// RedemptionWarning is reported when the subscription exists but the
// referral redemption could not be recorded.
const RedemptionWarning = "Subscription created, but the referral code could not be recorded"

// ProvisionRequest is a plan selection by an authenticated user.
type ProvisionRequest struct {
	UserID         uuid.UUID
	Plan           user.Plan
	ReferralCode   string
	IdempotencyKey string
}

// ProvisionResult describes the created subscription.
type ProvisionResult struct {
	SubscriptionID string
	CustomerID     string
	ClientSecret   string
	Status         string
	Plan           user.Plan
	TrialDays      int
	TrialEndsAt    *time.Time
	Discount       *AppliedDiscount
	Warning        string
}

// Provisioner creates subscriptions at the billing provider, applying
// referral discounts and recording their redemption.
type Provisioner struct {
	users    UserStore
	codes    CodeChecker
	redeemer Redeemer
	provider provider.Provider
	catalog  *Catalog
	policy   TrialPolicy
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewProvisioner creates a new provisioner.
func NewProvisioner(
	users UserStore,
	codes CodeChecker,
	redeemer Redeemer,
	prov provider.Provider,
	catalog *Catalog,
	policy TrialPolicy,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Provisioner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy.DefaultDays <= 0 {
		policy.DefaultDays = DefaultTrialPolicy.DefaultDays
	}
	if policy.FreeDays <= 0 {
		policy.FreeDays = DefaultTrialPolicy.FreeDays
	}
	return &Provisioner{
		users:    users,
		codes:    codes,
		redeemer: redeemer,
		provider: prov,
		catalog:  catalog,
		policy:   policy,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

// Plans returns the purchasable plans.
func (p *Provisioner) Plans() []*PlanInfo {
	return p.catalog.List()
}

// Provision creates a subscription for req.UserID on req.Plan.
//
// An invalid plan or code fails before anything is created. Once the
// provider subscription exists it is never rolled back: a failed
// redemption is reported as a warning, a failed local write as
// ErrPersistence.
func (p *Provisioner) Provision(ctx context.Context, req ProvisionRequest) (*ProvisionResult, error) {
	start := time.Now()
	result, err := p.provision(ctx, req)

	outcome := "success"
	switch {
	case err != nil:
		outcome = provisionOutcome(err)
	case result.Warning != "":
		outcome = "partial"
	}
	p.metrics.RecordProvisioning(string(req.Plan), outcome, time.Since(start))
	return result, err
}

func (p *Provisioner) provision(ctx context.Context, req ProvisionRequest) (*ProvisionResult, error) {
	plan, err := p.catalog.Get(req.Plan)
	if err != nil {
		return nil, err
	}

	u, err := p.users.GetByID(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: load user: %w", ErrPersistence, err)
	}
	if !u.SubscriptionStatus.CanTransitionTo(user.StatusTrialing) {
		return nil, fmt.Errorf("%w: status is %s", ErrAlreadySubscribed, u.SubscriptionStatus)
	}
	// A stored subscription can only be re-requested as a keyed retry,
	// which the provider resolves to the same subscription.
	if hasSubscription(u) && req.IdempotencyKey == "" {
		return nil, fmt.Errorf("%w: subscription %s exists", ErrAlreadySubscribed, *u.StripeSubscriptionID)
	}

	var code *referral.ReferralCode
	if strings.TrimSpace(req.ReferralCode) != "" {
		code, err = p.codes.Check(ctx, u.ID, req.ReferralCode)
		if err != nil {
			return nil, err
		}
	}
	terms := ComputeTerms(code, p.policy, plan.Currency)

	log := p.logger.With(
		zap.String("user_id", u.ID.String()),
		zap.String("plan", string(plan.ID)),
	)

	customerID, err := p.ensureCustomer(ctx, u, req.IdempotencyKey)
	if err != nil {
		return nil, err
	}

	var couponID string
	if terms.Coupon != nil {
		params := *terms.Coupon
		params.IdempotencyKey = scopedKey(req.UserID, req.IdempotencyKey, "coupon")
		coupon, err := p.provider.CreateCoupon(ctx, &params)
		if err != nil {
			return nil, providerError(err)
		}
		couponID = coupon.ID
	}

	metadata := map[string]string{
		"userId": u.ID.String(),
		"plan":   string(plan.ID),
	}
	if code != nil {
		metadata["referralCode"] = code.Code
	}
	if terms.Free {
		metadata["freeSubscription"] = strconv.FormatBool(true)
	}

	sub, err := p.provider.CreateSubscription(ctx, &provider.SubscriptionParams{
		CustomerID:     customerID,
		PriceID:        plan.PriceID,
		CouponID:       couponID,
		TrialDays:      terms.TrialDays,
		Metadata:       metadata,
		IdempotencyKey: scopedKey(req.UserID, req.IdempotencyKey, "subscription"),
	})
	if err != nil {
		return nil, providerError(err)
	}
	log = log.With(zap.String("subscription_id", sub.ID))

	// The provider subscription exists from here on. Finish local writes
	// even if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	result := &ProvisionResult{
		SubscriptionID: sub.ID,
		CustomerID:     customerID,
		ClientSecret:   sub.ClientSecret,
		Status:         sub.Status,
		Plan:           plan.ID,
		TrialDays:      terms.TrialDays,
		TrialEndsAt:    sub.TrialEnd,
		Discount:       terms.Discount,
	}
	if result.TrialEndsAt == nil && terms.TrialDays > 0 {
		trialEnd := p.now().UTC().AddDate(0, 0, terms.TrialDays)
		result.TrialEndsAt = &trialEnd
	}

	if code != nil {
		if _, err := p.redeemer.Redeem(ctx, code.Code, u.ID, sub.ID); err != nil {
			log.Warn("referral redemption failed after subscription creation",
				zap.String("code", code.Code),
				zap.Error(err),
			)
			result.Warning = RedemptionWarning
		}
	}

	err = p.users.SaveProvisioned(ctx, u.ID, user.Provisioned{
		CustomerID:     customerID,
		SubscriptionID: sub.ID,
		Plan:           plan.ID,
		TrialEndsAt:    result.TrialEndsAt,
	})
	if err != nil {
		log.Error("failed to store provisioned subscription", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	log.Info("subscription provisioned",
		zap.String("status", sub.Status),
		zap.Int("trial_days", terms.TrialDays),
		zap.Bool("discounted", terms.Discount != nil),
	)
	return result, nil
}

// ensureCustomer reuses the stored customer or creates one and stores it
// before anything else, so retries never create a second customer.
func (p *Provisioner) ensureCustomer(ctx context.Context, u *user.User, idempotencyKey string) (string, error) {
	if u.StripeCustomerID != nil && *u.StripeCustomerID != "" {
		return *u.StripeCustomerID, nil
	}

	customer, err := p.provider.CreateCustomer(ctx, &provider.CustomerParams{
		Email:          u.Email,
		Name:           u.DisplayName(),
		Metadata:       map[string]string{"userId": u.ID.String()},
		IdempotencyKey: customerKey(u.ID, idempotencyKey),
	})
	if err != nil {
		return "", providerError(err)
	}

	if err := p.users.SetStripeCustomer(context.WithoutCancel(ctx), u.ID, customer.ID); err != nil {
		return "", fmt.Errorf("%w: store customer: %w", ErrPersistence, err)
	}
	return customer.ID, nil
}

// scopedKey derives a per-call provider idempotency key from the client's key.
func scopedKey(userID uuid.UUID, key, op string) string {
	if key == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s:%s", userID, key, op)
}

// customerKey never returns an empty key: concurrent first provisions of
// one user must converge on a single customer.
func customerKey(userID uuid.UUID, key string) string {
	if key == "" {
		return fmt.Sprintf("%s:customer", userID)
	}
	return scopedKey(userID, key, "customer")
}

func hasSubscription(u *user.User) bool {
	return u.StripeSubscriptionID != nil && *u.StripeSubscriptionID != ""
}

func providerError(err error) error {
	if errors.Is(err, provider.ErrRejected) {
		return fmt.Errorf("%w: %w", ErrBillingRejected, err)
	}
	return fmt.Errorf("%w: %w", ErrBillingUnavailable, err)
}

func provisionOutcome(err error) string {
	switch {
	case errors.Is(err, ErrInvalidPlan):
		return "invalid_plan"
	case errors.Is(err, ErrAlreadySubscribed):
		return "already_subscribed"
	case errors.Is(err, ErrBillingRejected):
		return "rejected"
	case errors.Is(err, ErrBillingUnavailable):
		return "unavailable"
	case errors.Is(err, ErrPersistence):
		return "persistence_error"
	case errors.Is(err, referral.ErrCodeNotFound),
		errors.Is(err, referral.ErrCodeInactive),
		errors.Is(err, referral.ErrCodeExpired),
		errors.Is(err, referral.ErrCodeUsageLimitReached),
		errors.Is(err, referral.ErrCodeAlreadyUsed):
		return "invalid_code"
	default:
		return "error"
	}
}
