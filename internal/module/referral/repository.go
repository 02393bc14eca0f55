package referral

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository defines the interface for referral code data access.
type Repository interface {
	GetByCode(ctx context.Context, code string) (*ReferralCode, error)
	Create(ctx context.Context, code *ReferralCode) error
	CreateMissing(ctx context.Context, codes []*ReferralCode) (int64, error)
	SetActive(ctx context.Context, code string, active bool) error
	HasUsage(ctx context.Context, codeID, userID uuid.UUID) (bool, error)
	ListUsageByUser(ctx context.Context, userID uuid.UUID) ([]*ReferralCodeUsage, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository creates a new referral repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// GetByCode expects an already normalized code.
func (r *repository) GetByCode(ctx context.Context, code string) (*ReferralCode, error) {
	return findByCode(r.db.WithContext(ctx), code, false)
}

func (r *repository) Create(ctx context.Context, code *ReferralCode) error {
	if code.ID == uuid.Nil {
		code.ID = uuid.New()
	}
	if _, err := r.GetByCode(ctx, code.Code); err == nil {
		return ErrCodeExists
	} else if !errors.Is(err, ErrCodeNotFound) {
		return err
	}
	err := r.db.WithContext(ctx).Create(code).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrCodeExists
	}
	if err != nil {
		return fmt.Errorf("create referral code: %w", err)
	}
	return nil
}

// CreateMissing inserts codes whose text is not taken yet and returns how many were inserted.
func (r *repository) CreateMissing(ctx context.Context, codes []*ReferralCode) (int64, error) {
	if len(codes) == 0 {
		return 0, nil
	}
	for _, c := range codes {
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "code"}}, DoNothing: true}).
		Create(&codes)
	if result.Error != nil {
		return 0, fmt.Errorf("seed referral codes: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *repository) SetActive(ctx context.Context, code string, active bool) error {
	result := r.db.WithContext(ctx).
		Model(&ReferralCode{}).
		Where("code = ?", code).
		Update("is_active", active)
	if result.Error != nil {
		return fmt.Errorf("update referral code: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrCodeNotFound
	}
	return nil
}

func (r *repository) HasUsage(ctx context.Context, codeID, userID uuid.UUID) (bool, error) {
	return hasUsage(r.db.WithContext(ctx), codeID, userID)
}

func (r *repository) ListUsageByUser(ctx context.Context, userID uuid.UUID) ([]*ReferralCodeUsage, error) {
	var usages []*ReferralCodeUsage
	err := r.db.WithContext(ctx).
		Preload("ReferralCode").
		Where("user_id = ?", userID).
		Order("used_at DESC").
		Find(&usages).Error
	if err != nil {
		return nil, fmt.Errorf("list referral usage: %w", err)
	}
	return usages, nil
}

// --- helpers shared with the recorder's transaction ---

func findByCode(db *gorm.DB, code string, forUpdate bool) (*ReferralCode, error) {
	if forUpdate && db.Dialector.Name() == "postgres" {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var rc ReferralCode
	err := db.Where("code = ?", code).First(&rc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get referral code: %w", err)
	}
	return &rc, nil
}

func hasUsage(db *gorm.DB, codeID, userID uuid.UUID) (bool, error) {
	var count int64
	err := db.Model(&ReferralCodeUsage{}).
		Where("referral_code_id = ? AND user_id = ?", codeID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check referral usage: %w", err)
	}
	return count > 0, nil
}

// incrementUses bumps current_uses only while the cap allows it.
// It reports false when the cap was already reached.
func incrementUses(db *gorm.DB, codeID uuid.UUID) (bool, error) {
	result := db.Model(&ReferralCode{}).
		Where("id = ? AND (max_uses IS NULL OR current_uses < max_uses)", codeID).
		UpdateColumn("current_uses", gorm.Expr("current_uses + ?", 1))
	if result.Error != nil {
		return false, fmt.Errorf("increment referral uses: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}
