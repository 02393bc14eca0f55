package billing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/flox/server/internal/module/billing/provider"
	"github.com/flox/server/internal/module/referral"
	"github.com/flox/server/internal/module/user"
	"github.com/flox/server/internal/shared/config"
	"github.com/flox/server/internal/shared/database/dbtest"
	"github.com/flox/server/internal/utils/metrics"
)

var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) CreateCustomer(ctx context.Context, params *provider.CustomerParams) (*provider.Customer, error) {
	args := m.Called(ctx, params)
	c, _ := args.Get(0).(*provider.Customer)
	return c, args.Error(1)
}

func (m *mockProvider) CreateCoupon(ctx context.Context, params *provider.CouponParams) (*provider.Coupon, error) {
	args := m.Called(ctx, params)
	c, _ := args.Get(0).(*provider.Coupon)
	return c, args.Error(1)
}

func (m *mockProvider) CreateSubscription(ctx context.Context, params *provider.SubscriptionParams) (*provider.Subscription, error) {
	args := m.Called(ctx, params)
	s, _ := args.Get(0).(*provider.Subscription)
	return s, args.Error(1)
}

func (m *mockProvider) GetSubscription(ctx context.Context, id string) (*provider.Subscription, error) {
	args := m.Called(ctx, id)
	s, _ := args.Get(0).(*provider.Subscription)
	return s, args.Error(1)
}

func (m *mockProvider) ConstructEvent(payload []byte, signature string) (*provider.Event, error) {
	args := m.Called(payload, signature)
	e, _ := args.Get(0).(*provider.Event)
	return e, args.Error(1)
}

func testCatalog() *Catalog {
	return NewCatalog(&config.StripeConfig{
		Currency: "USD",
		Plans: map[string]config.PlanConfig{
			"monthly": {PriceID: "price_monthly", Amount: 999, Interval: "month"},
			"yearly":  {PriceID: "price_yearly", Amount: 7999, Interval: "year"},
		},
	})
}

type fixture struct {
	db          *gorm.DB
	users       user.Repository
	codes       *referral.Service
	recorder    *referral.Recorder
	provider    *mockProvider
	metrics     *metrics.Metrics
	provisioner *Provisioner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	models := append(referral.Models(), &user.User{})
	db := dbtest.New(t, append(models, Models()...)...)

	m := metrics.New("test", prometheus.NewRegistry())
	codeRepo := referral.NewRepository(db)
	f := &fixture{
		db:       db,
		users:    user.NewRepository(db),
		codes:    referral.NewService(codeRepo, referral.NewValidator(codeRepo, m), nil),
		recorder: referral.NewRecorder(db, nil, m),
		provider: &mockProvider{},
		metrics:  m,
	}
	f.provisioner = f.newProvisioner(f.recorder)
	return f
}

func (f *fixture) newProvisioner(redeemer Redeemer) *Provisioner {
	p := NewProvisioner(f.users, f.codes, redeemer, f.provider, testCatalog(), DefaultTrialPolicy, nil, f.metrics)
	p.now = func() time.Time { return fixedNow }
	return p
}

func (f *fixture) addUser(t *testing.T, status user.SubscriptionStatus, customerID string) uuid.UUID {
	t.Helper()
	u := &user.User{ID: uuid.New(), Email: "sam@example.com", FirstName: "Sam", SubscriptionStatus: status}
	if customerID != "" {
		u.StripeCustomerID = &customerID
	}
	if status != user.StatusNone {
		u.SubscriptionPlan = user.PlanYearly
	}
	require.NoError(t, f.db.Create(u).Error)
	return u.ID
}

func (f *fixture) setSubscription(t *testing.T, id uuid.UUID, subscriptionID string) {
	t.Helper()
	require.NoError(t, f.db.Model(&user.User{}).Where("id = ?", id).
		Update("stripe_subscription_id", subscriptionID).Error)
}

func (f *fixture) getUser(t *testing.T, id uuid.UUID) *user.User {
	t.Helper()
	u, err := f.users.GetByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

func (f *fixture) addCode(t *testing.T, rc referral.ReferralCode) *referral.ReferralCode {
	t.Helper()
	rc.ID = uuid.New()
	rc.IsActive = true
	require.NoError(t, f.db.Create(&rc).Error)
	return &rc
}

func (f *fixture) reloadCode(t *testing.T, id uuid.UUID) *referral.ReferralCode {
	t.Helper()
	var rc referral.ReferralCode
	require.NoError(t, f.db.First(&rc, "id = ?", id).Error)
	return &rc
}

func intPtr(v int) *int { return &v }
