package billing

import (
	"github.com/google/uuid"

	"github.com/flox/server/internal/module/billing/provider"
	"github.com/flox/server/internal/module/user"
)

// NotificationKind is a billing notification we act on.
type NotificationKind string

const (
	KindUnknown             NotificationKind = "unknown"
	KindSubscriptionCreated NotificationKind = "subscription_created"
	KindSubscriptionUpdated NotificationKind = "subscription_updated"
	KindSubscriptionDeleted NotificationKind = "subscription_deleted"
	KindPaymentSucceeded    NotificationKind = "payment_succeeded"
	KindPaymentFailed       NotificationKind = "payment_failed"
)

var eventKinds = map[string]NotificationKind{
	"customer.subscription.created": KindSubscriptionCreated,
	"customer.subscription.updated": KindSubscriptionUpdated,
	"customer.subscription.deleted": KindSubscriptionDeleted,
	"invoice.payment_succeeded":     KindPaymentSucceeded,
	"invoice.paid":                  KindPaymentSucceeded,
	"invoice.payment_failed":        KindPaymentFailed,
}

// KindOf classifies a provider event type. Unlisted types are KindUnknown.
func KindOf(eventType string) NotificationKind {
	if kind, ok := eventKinds[eventType]; ok {
		return kind
	}
	return KindUnknown
}

// IsInvoice reports whether the kind carries an invoice rather than a subscription.
func (k NotificationKind) IsInvoice() bool {
	return k == KindPaymentSucceeded || k == KindPaymentFailed
}

// TargetStatus returns the local status a notification moves the user to.
// ok is false when the notification implies no change.
func (k NotificationKind) TargetStatus(sub *provider.Subscription) (user.SubscriptionStatus, bool) {
	switch k {
	case KindSubscriptionCreated, KindSubscriptionUpdated:
		if sub == nil {
			return "", false
		}
		return statusFromProvider(sub.Status)
	case KindSubscriptionDeleted:
		return user.StatusCanceled, true
	case KindPaymentSucceeded:
		return user.StatusActive, true
	case KindPaymentFailed:
		return user.StatusPastDue, true
	}
	return "", false
}

// statusFromProvider maps a provider subscription status onto the local one.
func statusFromProvider(status string) (user.SubscriptionStatus, bool) {
	switch status {
	case "trialing":
		return user.StatusTrialing, true
	case "active":
		return user.StatusActive, true
	case "past_due", "unpaid":
		return user.StatusPastDue, true
	case "canceled", "incomplete_expired":
		return user.StatusCanceled, true
	}
	// incomplete, paused: wait for the next notification
	return "", false
}

// subscriptionOwner reads the user and plan from subscription metadata.
// Identity is never taken from anywhere else in the payload.
func subscriptionOwner(sub *provider.Subscription, catalog *Catalog) (uuid.UUID, user.Plan, bool) {
	if sub == nil {
		return uuid.Nil, "", false
	}
	userID, err := uuid.Parse(sub.Metadata["userId"])
	if err != nil {
		return uuid.Nil, "", false
	}

	plan := user.Plan(sub.Metadata["plan"])
	if !plan.IsValid() && catalog != nil {
		plan, _ = catalog.PlanForPrice(sub.PriceID)
	}
	return userID, plan, true
}
