package user

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service provides user operations.
type Service struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a new user service.
func NewService(repo Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// EnsureUser returns the local record for an authenticated identity,
// creating it on first sight.
func (s *Service) EnsureUser(ctx context.Context, id uuid.UUID, email string) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	switch {
	case err == nil && (email == "" || email == u.Email):
		return u, nil
	case err != nil && !errors.Is(err, ErrUserNotFound):
		return nil, err
	}

	if err := s.repo.EnsureExists(ctx, &User{ID: id, Email: email}); err != nil {
		return nil, err
	}
	if u == nil {
		s.logger.Info("user created", zap.String("user_id", id.String()))
	}
	return s.repo.GetByID(ctx, id)
}

// GetUser returns a user by id.
func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// SubscriptionSummary is the caller-facing view of subscription state.
type SubscriptionSummary struct {
	HasActiveSubscription bool               `json:"has_active_subscription"`
	SubscriptionStatus    SubscriptionStatus `json:"subscription_status"`
	SubscriptionPlan      Plan               `json:"subscription_plan,omitempty"`
	TrialEndsAt           *time.Time         `json:"trial_ends_at,omitempty"`
}

// GetSubscriptionSummary reports whether the user currently has access.
func (s *Service) GetSubscriptionSummary(ctx context.Context, id uuid.UUID) (*SubscriptionSummary, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &SubscriptionSummary{
		HasActiveSubscription: u.HasAccess(s.now()),
		SubscriptionStatus:    u.SubscriptionStatus,
		SubscriptionPlan:      u.SubscriptionPlan,
		TrialEndsAt:           u.TrialEndsAt,
	}, nil
}
