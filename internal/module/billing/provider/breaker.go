package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/flox/server/internal/utils/metrics"
)

// BreakerConfig contains circuit breaker configuration.
type BreakerConfig struct {
	FailureThreshold uint32
	Timeout          time.Duration // How long the circuit stays open
	Interval         time.Duration // Closed-state counter reset period
	RequestTimeout   time.Duration // Per-call deadline, 0 for none
}

// DefaultBreakerConfig returns the default breaker configuration.
func DefaultBreakerConfig() *BreakerConfig {
	return &BreakerConfig{
		FailureThreshold: 5,
		Timeout:          30 * time.Second,
		Interval:         60 * time.Second,
		RequestTimeout:   10 * time.Second,
	}
}

// CircuitBreaker wraps a Provider so that repeated unavailability fails fast.
// Rejections are definitive answers and do not trip the circuit.
type CircuitBreaker struct {
	next           Provider
	breaker        *gobreaker.CircuitBreaker[any]
	metrics        *metrics.Metrics
	requestTimeout time.Duration
}

// NewCircuitBreaker creates a breaker around next.
func NewCircuitBreaker(next Provider, cfg *BreakerConfig, m *metrics.Metrics) *CircuitBreaker {
	if cfg == nil {
		cfg = DefaultBreakerConfig()
	}
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	settings := gobreaker.Settings{
		Name:        next.Name(),
		MaxRequests: 1,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !IsUnavailable(err)
		},
		OnStateChange: func(name string, _ gobreaker.State, to gobreaker.State) {
			m.SetCircuitState(name, int(to))
		},
	}

	m.SetCircuitState(next.Name(), int(gobreaker.StateClosed))
	return &CircuitBreaker{
		next:           next,
		breaker:        gobreaker.NewCircuitBreaker[any](settings),
		metrics:        m,
		requestTimeout: cfg.RequestTimeout,
	}
}

// Name returns the wrapped provider name.
func (b *CircuitBreaker) Name() string {
	return b.next.Name()
}

// State returns the current circuit state.
func (b *CircuitBreaker) State() gobreaker.State {
	return b.breaker.State()
}

func (b *CircuitBreaker) CreateCustomer(ctx context.Context, params *CustomerParams) (*Customer, error) {
	return execute(ctx, b, "create_customer", func(ctx context.Context) (*Customer, error) {
		return b.next.CreateCustomer(ctx, params)
	})
}

func (b *CircuitBreaker) CreateCoupon(ctx context.Context, params *CouponParams) (*Coupon, error) {
	return execute(ctx, b, "create_coupon", func(ctx context.Context) (*Coupon, error) {
		return b.next.CreateCoupon(ctx, params)
	})
}

func (b *CircuitBreaker) CreateSubscription(ctx context.Context, params *SubscriptionParams) (*Subscription, error) {
	return execute(ctx, b, "create_subscription", func(ctx context.Context) (*Subscription, error) {
		return b.next.CreateSubscription(ctx, params)
	})
}

func (b *CircuitBreaker) GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	return execute(ctx, b, "get_subscription", func(ctx context.Context) (*Subscription, error) {
		return b.next.GetSubscription(ctx, subscriptionID)
	})
}

// ConstructEvent is a local signature check and bypasses the circuit.
func (b *CircuitBreaker) ConstructEvent(payload []byte, signature string) (*Event, error) {
	return b.next.ConstructEvent(payload, signature)
}

func execute[T any](ctx context.Context, b *CircuitBreaker, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if b.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.requestTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := b.breaker.Execute(func() (any, error) {
		return fn(ctx)
	})
	b.metrics.RecordBillingCall(op, err, time.Since(start))

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil && !IsUnavailable(err) {
			return zero, fmt.Errorf("%s: %w: %w", op, ErrUnavailable, ctxErr)
		}
		return zero, err
	}
	return result.(T), nil
}

var _ Provider = (*CircuitBreaker)(nil)
var _ Provider = (*StripeProvider)(nil)
