package provider

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnavailable means the provider could not give a definitive answer
	// (network failure, timeout, provider-side 5xx, or an open circuit).
	ErrUnavailable = errors.New("billing provider unavailable")
	// ErrRejected means the provider refused the request.
	ErrRejected = errors.New("billing provider rejected request")
	// ErrInvalidSignature means a webhook payload failed verification.
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// CouponDuration controls how long a coupon keeps applying.
type CouponDuration string

const (
	CouponDurationOnce    CouponDuration = "once"
	CouponDurationForever CouponDuration = "forever"
)

// CustomerParams describes a customer to create.
type CustomerParams struct {
	Email          string
	Name           string
	Metadata       map[string]string
	IdempotencyKey string
}

// Customer represents a customer from the provider.
type Customer struct {
	ID    string
	Email string
}

// CouponParams describes a discount coupon. Exactly one of PercentOff and
// AmountOff is set.
type CouponParams struct {
	Name           string
	PercentOff     int
	AmountOff      int64 // In minor units of Currency
	Currency       string
	Duration       CouponDuration
	IdempotencyKey string
}

// Coupon represents a coupon from the provider.
type Coupon struct {
	ID string
}

// SubscriptionParams describes a subscription to create.
type SubscriptionParams struct {
	CustomerID     string
	PriceID        string
	CouponID       string
	TrialDays      int
	Metadata       map[string]string
	IdempotencyKey string
}

// Subscription represents a subscription from the provider.
type Subscription struct {
	ID           string
	CustomerID   string
	Status       string
	PriceID      string
	ClientSecret string
	TrialEnd     *time.Time
	Metadata     map[string]string
}

// Invoice is the part of a provider invoice that webhooks care about.
type Invoice struct {
	ID             string
	SubscriptionID string
	AmountPaid     int64
}

// Event is a verified webhook notification. Subscription or Invoice is set
// when the event's object is of that kind.
type Event struct {
	ID           string
	Type         string
	Created      time.Time
	Object       []byte // Raw JSON of the event's data object
	Payload      []byte // Raw request body
	Subscription *Subscription
	Invoice      *Invoice
}

// Provider defines the billing provider operations used for provisioning.
type Provider interface {
	// Name returns the provider name.
	Name() string

	CreateCustomer(ctx context.Context, params *CustomerParams) (*Customer, error)
	CreateCoupon(ctx context.Context, params *CouponParams) (*Coupon, error)
	CreateSubscription(ctx context.Context, params *SubscriptionParams) (*Subscription, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)

	// ConstructEvent verifies a webhook signature and decodes the event.
	ConstructEvent(payload []byte, signature string) (*Event, error)
}

// IsUnavailable reports whether err means the provider gave no definitive answer.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
