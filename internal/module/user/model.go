package user

import (
	"time"

	"github.com/google/uuid"
)

// Plan identifies a purchasable subscription plan.
type Plan string

const (
	PlanMonthly Plan = "monthly"
	PlanYearly  Plan = "yearly"
)

// IsValid checks if the plan is one we sell.
func (p Plan) IsValid() bool {
	return p == PlanMonthly || p == PlanYearly
}

// User is the local account record. Identity is owned by the identity
// provider; this row carries billing linkage and subscription state.
type User struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Email     string    `json:"email" gorm:"size:320"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`

	// Billing
	StripeCustomerID     *string            `json:"-" gorm:"size:255;index"`
	StripeSubscriptionID *string            `json:"-" gorm:"size:255;index"`
	SubscriptionStatus   SubscriptionStatus `json:"subscription_status" gorm:"size:32;not null;default:'none'"`
	SubscriptionPlan     Plan               `json:"subscription_plan,omitempty" gorm:"size:32"`
	TrialEndsAt          *time.Time         `json:"trial_ends_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name.
func (User) TableName() string {
	return "users"
}

// DisplayName returns a name suitable for the billing provider.
func (u *User) DisplayName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		return u.Email
	}
	return name
}

// HasAccess reports whether the user may use paid features at now.
func (u *User) HasAccess(now time.Time) bool {
	if u.SubscriptionStatus == StatusActive || u.SubscriptionStatus == StatusTrialing {
		return true
	}
	return u.TrialEndsAt != nil && u.TrialEndsAt.After(now)
}

// Provisioned is what a successful provisioning run stores on the user.
type Provisioned struct {
	CustomerID     string
	SubscriptionID string
	Plan           Plan
	TrialEndsAt    *time.Time
}
