package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// StripeConfig holds Stripe configuration.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	// Backends overrides the Stripe API endpoints. Nil uses the defaults.
	Backends *stripe.Backends
}

// StripeProvider implements the Provider interface for Stripe.
type StripeProvider struct {
	api           *client.API
	webhookSecret string
}

// NewStripeProvider creates a new Stripe provider.
func NewStripeProvider(cfg *StripeConfig) *StripeProvider {
	return &StripeProvider{
		api:           client.New(cfg.SecretKey, cfg.Backends),
		webhookSecret: cfg.WebhookSecret,
	}
}

// Name returns the provider name.
func (p *StripeProvider) Name() string {
	return "stripe"
}

// --- Customers ---

func (p *StripeProvider) CreateCustomer(ctx context.Context, in *CustomerParams) (*Customer, error) {
	params := &stripe.CustomerParams{
		Email:    stripe.String(in.Email),
		Metadata: in.Metadata,
	}
	if in.Name != "" {
		params.Name = stripe.String(in.Name)
	}
	params.Context = ctx
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}

	c, err := p.api.Customers.New(params)
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", classify(err))
	}
	return &Customer{ID: c.ID, Email: c.Email}, nil
}

// --- Coupons ---

func (p *StripeProvider) CreateCoupon(ctx context.Context, in *CouponParams) (*Coupon, error) {
	duration := in.Duration
	if duration == "" {
		duration = CouponDurationForever
	}
	params := &stripe.CouponParams{
		Duration: stripe.String(string(duration)),
	}
	if in.Name != "" {
		params.Name = stripe.String(in.Name)
	}
	switch {
	case in.PercentOff > 0:
		params.PercentOff = stripe.Float64(float64(in.PercentOff))
	case in.AmountOff > 0:
		params.AmountOff = stripe.Int64(in.AmountOff)
		params.Currency = stripe.String(in.Currency)
	default:
		return nil, fmt.Errorf("create coupon: %w: no discount amount", ErrRejected)
	}
	params.Context = ctx
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}

	c, err := p.api.Coupons.New(params)
	if err != nil {
		return nil, fmt.Errorf("create coupon: %w", classify(err))
	}
	return &Coupon{ID: c.ID}, nil
}

// --- Subscriptions ---

// CreateSubscription creates an incomplete subscription whose first payment
// (or payment method setup, during a trial) is confirmed by the client.
func (p *StripeProvider) CreateSubscription(ctx context.Context, in *SubscriptionParams) (*Subscription, error) {
	params := &stripe.SubscriptionParams{
		Customer: stripe.String(in.CustomerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(in.PriceID)},
		},
		PaymentBehavior: stripe.String("default_incomplete"),
		PaymentSettings: &stripe.SubscriptionPaymentSettingsParams{
			SaveDefaultPaymentMethod: stripe.String("on_subscription"),
		},
		Metadata: in.Metadata,
	}
	if in.CouponID != "" {
		params.Coupon = stripe.String(in.CouponID)
	}
	if in.TrialDays > 0 {
		params.TrialPeriodDays = stripe.Int64(int64(in.TrialDays))
	}
	params.AddExpand("latest_invoice.payment_intent")
	params.AddExpand("pending_setup_intent")
	params.Context = ctx
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}

	sub, err := p.api.Subscriptions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create subscription: %w", classify(err))
	}
	return mapStripeSubscription(sub), nil
}

func (p *StripeProvider) GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := p.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", classify(err))
	}
	return mapStripeSubscription(sub), nil
}

// --- Webhooks ---

func (p *StripeProvider) ConstructEvent(payload []byte, signature string) (*Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}

	event := &Event{
		ID:      ev.ID,
		Type:    string(ev.Type),
		Created: time.Unix(ev.Created, 0).UTC(),
		Payload: payload,
	}
	if ev.Data == nil {
		return event, nil
	}
	event.Object = ev.Data.Raw

	switch {
	case strings.HasPrefix(event.Type, "customer.subscription."):
		var sub stripe.Subscription
		if err := json.Unmarshal(ev.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("unmarshal subscription: %w", err)
		}
		event.Subscription = mapStripeSubscription(&sub)
	case strings.HasPrefix(event.Type, "invoice."):
		var inv stripe.Invoice
		if err := json.Unmarshal(ev.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("unmarshal invoice: %w", err)
		}
		event.Invoice = &Invoice{ID: inv.ID, AmountPaid: inv.AmountPaid}
		if inv.Subscription != nil {
			event.Invoice.SubscriptionID = inv.Subscription.ID
		}
	}
	return event, nil
}

// --- Helpers ---

// classify tags a Stripe error as a rejection or an unavailability.
// Anything that is not a Stripe API error (network, timeout) is unavailable.
func classify(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode >= http.StatusInternalServerError ||
			stripeErr.HTTPStatusCode == http.StatusTooManyRequests ||
			stripeErr.Type == stripe.ErrorTypeAPI {
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return fmt.Errorf("%w: %w", ErrRejected, err)
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

func mapStripeSubscription(sub *stripe.Subscription) *Subscription {
	out := &Subscription{
		ID:       sub.ID,
		Status:   string(sub.Status),
		Metadata: sub.Metadata,
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		out.PriceID = sub.Items.Data[0].Price.ID
	}
	if sub.TrialEnd > 0 {
		trialEnd := time.Unix(sub.TrialEnd, 0).UTC()
		out.TrialEnd = &trialEnd
	}

	switch {
	case sub.LatestInvoice != nil && sub.LatestInvoice.PaymentIntent != nil && sub.LatestInvoice.PaymentIntent.ClientSecret != "":
		out.ClientSecret = sub.LatestInvoice.PaymentIntent.ClientSecret
	case sub.PendingSetupIntent != nil:
		out.ClientSecret = sub.PendingSetupIntent.ClientSecret
	}
	return out
}
