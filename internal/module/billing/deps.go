package billing

import (
	"context"

	"github.com/google/uuid"

	"github.com/flox/server/internal/module/referral"
	"github.com/flox/server/internal/module/user"
)

// UserStore is the slice of user persistence the billing module needs.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	SetStripeCustomer(ctx context.Context, id uuid.UUID, customerID string) error
	SaveProvisioned(ctx context.Context, id uuid.UUID, p user.Provisioned) error
	ApplyStatus(ctx context.Context, id uuid.UUID, next user.SubscriptionStatus, plan user.Plan) (bool, error)
}

// CodeChecker validates a referral code for a user without redeeming it.
type CodeChecker interface {
	Check(ctx context.Context, userID uuid.UUID, rawCode string) (*referral.ReferralCode, error)
}

// Redeemer commits a referral code redemption.
type Redeemer interface {
	Redeem(ctx context.Context, rawCode string, userID uuid.UUID, subscriptionID string) (*referral.ReferralCodeUsage, error)
}
