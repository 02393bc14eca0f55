package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository defines the interface for user data access.
type Repository interface {
	// EnsureExists creates the row on first sight and refreshes the email afterwards.
	EnsureExists(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	SetStripeCustomer(ctx context.Context, id uuid.UUID, customerID string) error
	SaveProvisioned(ctx context.Context, id uuid.UUID, p Provisioned) error
	ApplyStatus(ctx context.Context, id uuid.UUID, next SubscriptionStatus, plan Plan) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository creates a new user repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) EnsureExists(ctx context.Context, user *User) error {
	if user.SubscriptionStatus == "" {
		user.SubscriptionStatus = StatusNone
	}
	onConflict := clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}
	if user.Email != "" {
		onConflict = clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"email", "updated_at"}),
		}
	}
	if err := r.db.WithContext(ctx).Clauses(onConflict).Create(user).Error; err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return findUser(r.db.WithContext(ctx), id, false)
}

func (r *repository) SetStripeCustomer(ctx context.Context, id uuid.UUID, customerID string) error {
	result := r.db.WithContext(ctx).
		Model(&User{}).
		Where("id = ?", id).
		Update("stripe_customer_id", customerID)
	if result.Error != nil {
		return fmt.Errorf("set stripe customer: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SaveProvisioned records a new subscription and moves the user to trialing.
func (r *repository) SaveProvisioned(ctx context.Context, id uuid.UUID, p Provisioned) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u, err := findUser(tx, id, true)
		if err != nil {
			return err
		}
		if !u.SubscriptionStatus.CanTransitionTo(StatusTrialing) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, u.SubscriptionStatus, StatusTrialing)
		}
		return compareAndUpdate(tx, u, map[string]any{
			"stripe_customer_id":     p.CustomerID,
			"stripe_subscription_id": p.SubscriptionID,
			"subscription_status":    StatusTrialing,
			"subscription_plan":      p.Plan,
			"trial_ends_at":          p.TrialEndsAt,
		})
	})
}

// ApplyStatus moves the user to next if the state machine allows it.
// It returns false without error when the user is already in next
// (and on plan, when one is given).
func (r *repository) ApplyStatus(ctx context.Context, id uuid.UUID, next SubscriptionStatus, plan Plan) (bool, error) {
	changed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u, err := findUser(tx, id, true)
		if err != nil {
			return err
		}
		if !u.SubscriptionStatus.CanTransitionTo(next) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, u.SubscriptionStatus, next)
		}

		updates := map[string]any{}
		if u.SubscriptionStatus != next {
			updates["subscription_status"] = next
		}
		if plan.IsValid() && plan != u.SubscriptionPlan {
			updates["subscription_plan"] = plan
		}
		if len(updates) == 0 {
			return nil
		}
		if err := compareAndUpdate(tx, u, updates); err != nil {
			return err
		}
		changed = true
		return nil
	})
	return changed, err
}

func findUser(db *gorm.DB, id uuid.UUID, forUpdate bool) (*User, error) {
	if forUpdate && db.Dialector.Name() == "postgres" {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var u User
	err := db.Where("id = ?", id).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// compareAndUpdate applies updates only if the status has not moved since u was read.
func compareAndUpdate(tx *gorm.DB, u *User, updates map[string]any) error {
	result := tx.Model(&User{}).
		Where("id = ? AND subscription_status = ?", u.ID, u.SubscriptionStatus).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("update user subscription: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrConcurrentUpdate
	}
	return nil
}
