package billing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/flox/server/internal/module/billing/provider"
	"github.com/flox/server/internal/module/referral"
	"github.com/flox/server/internal/module/user"
)

func (f *fixture) expectCustomer(id string) {
	f.provider.On("CreateCustomer", mock.Anything, mock.AnythingOfType("*provider.CustomerParams")).
		Return(&provider.Customer{ID: id}, nil).Once()
}

func TestProvision_PercentageCode(t *testing.T) {
	f := newFixture(t)
	userID := f.addUser(t, user.StatusNone, "")
	code := f.addCode(t, referral.ReferralCode{Code: "FLOX25OFF", DiscountType: referral.DiscountPercentage, DiscountValue: 25})

	f.provider.On("CreateCustomer", mock.Anything, mock.MatchedBy(func(p *provider.CustomerParams) bool {
		return p.Email == "sam@example.com" && p.Metadata["userId"] == userID.String()
	})).Return(&provider.Customer{ID: "cus_1"}, nil).Once()
	f.provider.On("CreateCoupon", mock.Anything, mock.MatchedBy(func(p *provider.CouponParams) bool {
		return p.PercentOff == 25 && p.Duration == provider.CouponDurationForever
	})).Return(&provider.Coupon{ID: "co_25"}, nil).Once()
	f.provider.On("CreateSubscription", mock.Anything, mock.MatchedBy(func(p *provider.SubscriptionParams) bool {
		return p.CustomerID == "cus_1" &&
			p.PriceID == "price_yearly" &&
			p.CouponID == "co_25" &&
			p.TrialDays == 7 &&
			p.Metadata["userId"] == userID.String() &&
			p.Metadata["plan"] == "yearly" &&
			p.Metadata["referralCode"] == "FLOX25OFF"
	})).Return(&provider.Subscription{ID: "sub_1", Status: "trialing", ClientSecret: "seti_secret"}, nil).Once()

	result, err := f.provisioner.Provision(context.Background(), ProvisionRequest{
		UserID:       userID,
		Plan:         user.PlanYearly,
		ReferralCode: " flox25off ",
	})
	require.NoError(t, err)
	f.provider.AssertExpectations(t)

	assert.Equal(t, "sub_1", result.SubscriptionID)
	assert.Equal(t, "seti_secret", result.ClientSecret)
	assert.Equal(t, 7, result.TrialDays)
	require.NotNil(t, result.TrialEndsAt)
	assert.Equal(t, fixedNow.AddDate(0, 0, 7), *result.TrialEndsAt)
	require.NotNil(t, result.Discount)
	assert.Equal(t, 25, result.Discount.PercentOff)
	assert.Empty(t, result.Warning)

	u := f.getUser(t, userID)
	assert.Equal(t, user.StatusTrialing, u.SubscriptionStatus)
	assert.Equal(t, user.PlanYearly, u.SubscriptionPlan)
	assert.Equal(t, "cus_1", *u.StripeCustomerID)
	assert.Equal(t, "sub_1", *u.StripeSubscriptionID)

	assert.Equal(t, 1, f.reloadCode(t, code.ID).CurrentUses)
	var usage referral.ReferralCodeUsage
	require.NoError(t, f.db.First(&usage, "referral_code_id = ?", code.ID).Error)
	assert.Equal(t, userID, usage.UserID)
	assert.Equal(t, "sub_1", *usage.SubscriptionID)

	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.ProvisioningTotal.WithLabelValues("yearly", "success")))
}

func TestProvision_TrialExtensionCode(t *testing.T) {
	f := newFixture(t)
	userID := f.addUser(t, user.StatusNone, "")
	f.addCode(t, referral.ReferralCode{Code: "TRIAL7", DiscountType: referral.DiscountTrialExtension, DiscountValue: 7})

	f.expectCustomer("cus_1")
	f.provider.On("CreateSubscription", mock.Anything, mock.MatchedBy(func(p *provider.SubscriptionParams) bool {
		return p.TrialDays == 14 && p.CouponID == ""
	})).Return(&provider.Subscription{ID: "sub_1", Status: "trialing"}, nil).Once()

	result, err := f.provisioner.Provision(context.Background(), ProvisionRequest{UserID: userID, Plan: user.PlanMonthly, ReferralCode: "TRIAL7"})
	require.NoError(t, err)
	f.provider.AssertNotCalled(t, "CreateCoupon", mock.Anything, mock.Anything)
	assert.Equal(t, 14, result.TrialDays)
	assert.Equal(t, 7, result.Discount.ExtraTrialDays)
}

func TestProvision_FreeCode(t *testing.T) {
	f := newFixture(t)
	userID := f.addUser(t, user.StatusNone, "")
	f.addCode(t, referral.ReferralCode{Code: "FLOXFREE100", DiscountType: referral.DiscountFree, MaxUses: intPtr(50)})

	providerTrialEnd := fixedNow.AddDate(1, 0, 0)
	f.expectCustomer("cus_1")
	f.provider.On("CreateSubscription", mock.Anything, mock.MatchedBy(func(p *provider.SubscriptionParams) bool {
		return p.TrialDays == 365 && p.CouponID == "" && p.Metadata["freeSubscription"] == "true"
	})).Return(&provider.Subscription{ID: "sub_1", Status: "trialing", TrialEnd: &providerTrialEnd}, nil).Once()

	result, err := f.provisioner.Provision(context.Background(), ProvisionRequest{UserID: userID, Plan: user.PlanMonthly, ReferralCode: "FLOXFREE100"})
	require.NoError(t, err)
	assert.True(t, result.Discount.Free)
	assert.Equal(t, providerTrialEnd, *result.TrialEndsAt, "provider trial end wins")
	assert.True(t, f.getUser(t, userID).TrialEndsAt.Equal(providerTrialEnd))
}

func TestProvision_FixedCode(t *testing.T) {
	f := newFixture(t)
	userID := f.addUser(t, user.StatusNone, "")
	f.addCode(t, referral.ReferralCode{Code: "SPECIAL50", DiscountType: referral.DiscountFixed, DiscountValue: 500})

	f.expectCustomer("cus_1")
	f.provider.On("CreateCoupon", mock.Anything, mock.MatchedBy(func(p *provider.CouponParams) bool {
		return p.AmountOff == 500 && p.Currency == "usd" && p.PercentOff == 0
	})).Return(&provider.Coupon{ID: "co_500"}, nil).Once()
	f.provider.On("CreateSubscription", mock.Anything, mock.MatchedBy(func(p *provider.SubscriptionParams) bool {
		return p.CouponID == "co_500" && p.TrialDays == 7
	})).Return(&provider.Subscription{ID: "sub_1", Status: "trialing"}, nil).Once()

	result, err := f.provisioner.Provision(context.Background(), ProvisionRequest{UserID: userID, Plan: user.PlanMonthly, ReferralCode: "SPECIAL50"})
	require.NoError(t, err)
	assert.Equal(t, int64(500), result.Discount.AmountOff)
}

func TestProvision_NoCode(t *testing.T) {
	f := newFixture(t)
	userID := f.addUser(t, user.StatusNone, "cus_existing")

	f.provider.On("CreateSubscription", mock.Anything, mock.MatchedBy(func(p *provider.SubscriptionParams) bool {
		_, hasCode := p.Metadata["referralCode"]
		return p.CustomerID == "cus_existing" && p.TrialDays == 7 && !hasCode
	})).Return(&provider.Subscription{ID: "sub_1", Status: "trialing"}, nil).Once()

	result, err := f.provisioner.Provision(context.Background(), ProvisionRequest{UserID: userID, Plan: user.PlanMonthly})
	require.NoError(t, err)
	assert.Nil(t, result.Discount)
	f.provider.AssertNotCalled(t, "CreateCustomer", mock.Anything, mock.Anything)
}

func TestProvision_InvalidRequestsChangeNothing(t *testing.T) {
	yesterday := time.Now().Add(-24 * time.Hour)

	tests := []struct {
		name    string
		code    *referral.ReferralCode
		plan    user.Plan
		input   string
		wantErr error
	}{
		{"invalid plan", nil, "weekly", "", ErrInvalidPlan},
		{"unknown code", nil, user.PlanMonthly, "NOPE", referral.ErrCodeNotFound},
		{"expired code", &referral.ReferralCode{Code: "OLD", DiscountType: referral.DiscountPercentage, DiscountValue: 10, ExpiresAt: &yesterday}, user.PlanMonthly, "OLD", referral.ErrCodeExpired},
		{"exhausted code", &referral.ReferralCode{Code: "FLOXVIP", DiscountType: referral.DiscountFree, MaxUses: intPtr(10), CurrentUses: 10}, user.PlanYearly, "FLOXVIP", referral.ErrCodeUsageLimitReached},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			userID := f.addUser(t, user.StatusNone, "")
			if tt.code != nil {
				f.addCode(t, *tt.code)
			}

			_, err := f.provisioner.Provision(context.Background(), ProvisionRequest{UserID: userID, Plan: tt.plan, ReferralCode: tt.input})
			assert.ErrorIs(t, err, tt.wantErr)

			assert.Empty(t, f.provider.Calls)
			u := f.getUser(t, userID)
			assert.Equal(t, user.StatusNone, u.SubscriptionStatus)
			assert.Nil(t, u.StripeCustomerID)
		})
	}
}

func TestProvision_CodeUsedTwice(t *testing.T) {
	f := newFixture(t)
	userID := f.addUser(t, user.StatusNone, "")
	code := f.addCode(t, referral.ReferralCode{Code: "WELCOME10", DiscountType: referral.DiscountPercentage, DiscountValue: 10})

	f.expectCustomer("cus_1")
	f.provider.On("CreateCoupon", mock.Anything, mock.Anything).Return(&provider.Coupon{ID: "co_10"}, nil).Once()
	f.provider.On("CreateSubscription", mock.Anything, mock.Anything).Return(&provider.Subscription{ID: "sub_1", Status: "trialing"}, nil).Once()

	req := ProvisionRequest{UserID: userID, Plan: user.PlanMonthly, ReferralCode: "WELCOME10"}
	_, err := f.provisioner.Provision(context.Background(), req)
	require.NoError(t, err)

	_, err = f.provisioner.Provision(context.Background(), req)
	assert.ErrorIs(t, err, referral.ErrCodeAlreadyUsed)
	f.provider.AssertExpectations(t)
	assert.Equal(t, 1, f.reloadCode(t, code.ID).CurrentUses)
}

func TestProvision_RejectsExistingSubscriber(t *testing.T) {
	for _, status := range []user.SubscriptionStatus{user.StatusActive, user.StatusPastDue, user.StatusCanceled} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t)
			userID := f.addUser(t, status, "cus_1")

			_, err := f.provisioner.Provision(context.Background(), ProvisionRequest{UserID: userID, Plan: user.PlanMonthly})
			assert.ErrorIs(t, err, ErrAlreadySubscribed)
			assert.Empty(t, f.provider.Calls)
		})
	}
}

func TestProvision_ProviderUnavailable(t *testing.T) {
	f := newFixture(t)
	userID := f.addUser(t, user.StatusNone, "")
	code := f.addCode(t, referral.ReferralCode{Code: "WELCOME10", DiscountType: referral.DiscountPercentage, DiscountValue: 10})

	f.expectCustomer("cus_1")
	f.provider.On("CreateCoupon", mock.Anything, mock.Anything).Return(&provider.Coupon{ID: "co_10"}, nil).Once()
	f.provider.On("CreateSubscription", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: context deadline exceeded", provider.ErrUnavailable)).Once()

	_, err := f.provisioner.Provision(context.Background(), ProvisionRequest{UserID: userID, Plan: user.PlanMonthly, ReferralCode: "WELCOME10"})
	assert.ErrorIs(t, err, ErrBillingUnavailable)

	u := f.getUser(t, userID)
	assert.Equal(t, user.StatusNone, u.SubscriptionStatus)
	assert.Nil(t, u.StripeSubscriptionID)
	require.NotNil(t, u.StripeCustomerID, "customer is kept for the retry")
	assert.Equal(t, "cus_1", *u.StripeCustomerID)
	assert.Equal(t, 0, f.reloadCode(t, code.ID).CurrentUses)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.ProvisioningTotal.WithLabelValues("monthly", "unavailable")))
}

func TestProvision_ProviderRejects(t *testing.T) {
	f := newFixture(t)
	userID := f.addUser(t, user.StatusNone, "")

	f.provider.On("CreateCustomer", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: invalid email", provider.ErrRejected)).Once()

	_, err := f.provisioner.Provision(context.Background(), ProvisionRequest{UserID: userID, Plan: user.PlanMonthly})
	assert.ErrorIs(t, err, ErrBillingRejected)
	assert.NotErrorIs(t, err, ErrBillingUnavailable)
}

type failingRedeemer struct{}

func (failingRedeemer) Redeem(ctx context.Context, rawCode string, userID uuid.UUID, subscriptionID string) (*referral.ReferralCodeUsage, error) {
	return nil, referral.ErrCodeUsageLimitReached
}

func TestProvision_RedeemFailureIsPartialSuccess(t *testing.T) {
	f := newFixture(t)
	userID := f.addUser(t, user.StatusNone, "")
	f.addCode(t, referral.ReferralCode{Code: "FLOX50OFF", DiscountType: referral.DiscountPercentage, DiscountValue: 50})
	p := f.newProvisioner(failingRedeemer{})

	f.expectCustomer("cus_1")
	f.provider.On("CreateCoupon", mock.Anything, mock.Anything).Return(&provider.Coupon{ID: "co_50"}, nil).Once()
	f.provider.On("CreateSubscription", mock.Anything, mock.Anything).Return(&provider.Subscription{ID: "sub_1", Status: "trialing"}, nil).Once()

	result, err := p.Provision(context.Background(), ProvisionRequest{UserID: userID, Plan: user.PlanYearly, ReferralCode: "FLOX50OFF"})
	require.NoError(t, err)
	assert.Equal(t, RedemptionWarning, result.Warning)
	assert.Equal(t, "sub_1", result.SubscriptionID)
	assert.Equal(t, user.StatusTrialing, f.getUser(t, userID).SubscriptionStatus)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.ProvisioningTotal.WithLabelValues("yearly", "partial")))
}

func TestProvision_ForwardsIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	userID := f.addUser(t, user.StatusNone, "")

	f.provider.On("CreateCustomer", mock.Anything, mock.MatchedBy(func(p *provider.CustomerParams) bool {
		return p.IdempotencyKey == userID.String()+":req-1:customer"
	})).Return(&provider.Customer{ID: "cus_1"}, nil).Once()
	f.provider.On("CreateSubscription", mock.Anything, mock.MatchedBy(func(p *provider.SubscriptionParams) bool {
		return p.IdempotencyKey == userID.String()+":req-1:subscription"
	})).Return(&provider.Subscription{ID: "sub_1", Status: "trialing"}, nil).Once()

	_, err := f.provisioner.Provision(context.Background(), ProvisionRequest{UserID: userID, Plan: user.PlanMonthly, IdempotencyKey: "req-1"})
	require.NoError(t, err)
	f.provider.AssertExpectations(t)
}

func TestProvision_CustomerKeyWithoutClientKey(t *testing.T) {
	f := newFixture(t)
	userID := f.addUser(t, user.StatusNone, "")

	f.provider.On("CreateCustomer", mock.Anything, mock.MatchedBy(func(p *provider.CustomerParams) bool {
		return p.IdempotencyKey == userID.String()+":customer"
	})).Return(&provider.Customer{ID: "cus_1"}, nil).Once()
	f.provider.On("CreateSubscription", mock.Anything, mock.MatchedBy(func(p *provider.SubscriptionParams) bool {
		return p.IdempotencyKey == ""
	})).Return(&provider.Subscription{ID: "sub_1", Status: "trialing"}, nil).Once()

	_, err := f.provisioner.Provision(context.Background(), ProvisionRequest{UserID: userID, Plan: user.PlanMonthly})
	require.NoError(t, err)
	f.provider.AssertExpectations(t)
}

func TestProvision_TrialingWithSubscriptionRequiresKey(t *testing.T) {
	f := newFixture(t)
	userID := f.addUser(t, user.StatusTrialing, "cus_1")
	f.setSubscription(t, userID, "sub_1")

	_, err := f.provisioner.Provision(context.Background(), ProvisionRequest{UserID: userID, Plan: user.PlanMonthly})
	assert.ErrorIs(t, err, ErrAlreadySubscribed)
	assert.Empty(t, f.provider.Calls)

	u := f.getUser(t, userID)
	require.NotNil(t, u.StripeSubscriptionID)
	assert.Equal(t, "sub_1", *u.StripeSubscriptionID)
	assert.Equal(t, user.PlanYearly, u.SubscriptionPlan)
}

func TestProvision_SecondRequestWithoutKeyCreatesNothing(t *testing.T) {
	f := newFixture(t)
	userID := f.addUser(t, user.StatusNone, "")

	f.expectCustomer("cus_1")
	f.provider.On("CreateSubscription", mock.Anything, mock.Anything).
		Return(&provider.Subscription{ID: "sub_1", Status: "trialing"}, nil).Once()

	req := ProvisionRequest{UserID: userID, Plan: user.PlanMonthly}
	_, err := f.provisioner.Provision(context.Background(), req)
	require.NoError(t, err)

	_, err = f.provisioner.Provision(context.Background(), ProvisionRequest{UserID: userID, Plan: user.PlanYearly})
	assert.ErrorIs(t, err, ErrAlreadySubscribed)

	f.provider.AssertNumberOfCalls(t, "CreateSubscription", 1)
	u := f.getUser(t, userID)
	assert.Equal(t, "sub_1", *u.StripeSubscriptionID)
	assert.Equal(t, user.PlanMonthly, u.SubscriptionPlan)
}

func TestProvision_KeyedRetryOfTrialIsForwarded(t *testing.T) {
	f := newFixture(t)
	userID := f.addUser(t, user.StatusTrialing, "cus_1")
	f.setSubscription(t, userID, "sub_1")

	f.provider.On("CreateSubscription", mock.Anything, mock.MatchedBy(func(p *provider.SubscriptionParams) bool {
		return p.IdempotencyKey == userID.String()+":req-1:subscription"
	})).Return(&provider.Subscription{ID: "sub_1", Status: "trialing"}, nil).Once()

	result, err := f.provisioner.Provision(context.Background(), ProvisionRequest{UserID: userID, Plan: user.PlanYearly, IdempotencyKey: "req-1"})
	require.NoError(t, err)
	assert.Equal(t, "sub_1", result.SubscriptionID)
	f.provider.AssertExpectations(t)
}
