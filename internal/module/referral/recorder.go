package referral

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/flox/server/internal/utils/metrics"
)

// Recorder commits redemptions. It is the only writer of current_uses.
type Recorder struct {
	db      *gorm.DB
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewRecorder creates a new usage recorder.
func NewRecorder(db *gorm.DB, logger *zap.Logger, m *metrics.Metrics) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{db: db, logger: logger, metrics: m, now: time.Now}
}

// Redeem re-validates the code, writes the ledger row and increments the
// counter in one transaction. The code row is locked for the duration, and
// the increment is conditional on the cap, so concurrent redemptions of the
// same code never push current_uses past max_uses.
func (r *Recorder) Redeem(ctx context.Context, rawCode string, userID uuid.UUID, subscriptionID string) (*ReferralCodeUsage, error) {
	code := Normalize(rawCode)
	var usage *ReferralCodeUsage

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rc, err := findByCode(tx, code, true)
		if err != nil && !errors.Is(err, ErrCodeNotFound) {
			return err
		}
		if reason := Evaluate(rc, r.now()); reason != ReasonNone {
			return reason.Err()
		}

		used, err := hasUsage(tx, rc.ID, userID)
		if err != nil {
			return err
		}
		if used {
			return ErrCodeAlreadyUsed
		}

		usage = &ReferralCodeUsage{
			ID:             ulid.Make().String(),
			ReferralCodeID: rc.ID,
			UserID:         userID,
			UsedAt:         r.now().UTC(),
		}
		if subscriptionID != "" {
			usage.SubscriptionID = &subscriptionID
		}
		if err := tx.Create(usage).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrCodeAlreadyUsed
			}
			return fmt.Errorf("insert referral usage: %w", err)
		}

		ok, err := incrementUses(tx, rc.ID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrCodeUsageLimitReached
		}
		return nil
	})

	r.metrics.RecordRedemption(redemptionResult(err))
	if err != nil {
		r.logger.Info("referral redemption rejected",
			zap.String("code", code),
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	r.logger.Info("referral code redeemed",
		zap.String("code", code),
		zap.String("user_id", userID.String()),
		zap.String("usage_id", usage.ID),
	)
	return usage, nil
}

func redemptionResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrCodeAlreadyUsed):
		return "already_used"
	case errors.Is(err, ErrCodeUsageLimitReached):
		return string(ReasonUsageLimitReached)
	case errors.Is(err, ErrCodeExpired):
		return string(ReasonExpired)
	case errors.Is(err, ErrCodeInactive):
		return string(ReasonInactive)
	case errors.Is(err, ErrCodeNotFound):
		return string(ReasonNotFound)
	default:
		return "error"
	}
}
