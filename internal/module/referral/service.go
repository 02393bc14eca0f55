package referral

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var codePattern = regexp.MustCompile(`^[A-Z0-9_-]{3,64}$`)

// CodeSpec describes a code to create, either from the admin API or a seed file.
type CodeSpec struct {
	Code          string        `json:"code" yaml:"code"`
	Description   string        `json:"description" yaml:"description"`
	DiscountType  DiscountType  `json:"discount_type" yaml:"discount_type"`
	DiscountValue int           `json:"discount_value" yaml:"discount_value"`
	MaxUses       *int          `json:"max_uses,omitempty" yaml:"max_uses"`
	ExpiresAt     *time.Time    `json:"expires_at,omitempty" yaml:"expires_at"`
	ExpiresIn     time.Duration `json:"-" yaml:"expires_in"` // relative to seeding time
}

// toModel validates the definition and builds an active code.
func (s CodeSpec) toModel(now time.Time) (*ReferralCode, error) {
	code := Normalize(s.Code)
	if !codePattern.MatchString(code) {
		return nil, fmt.Errorf("%w: code %q must be 3-64 letters, digits, '-' or '_'", ErrInvalidCodeSpec, s.Code)
	}
	if !s.DiscountType.IsValid() {
		return nil, fmt.Errorf("%w: %s: unknown discount type %q", ErrInvalidCodeSpec, code, s.DiscountType)
	}
	switch s.DiscountType {
	case DiscountPercentage:
		if s.DiscountValue < 0 || s.DiscountValue > 100 {
			return nil, fmt.Errorf("%w: %s: percentage must be between 0 and 100", ErrInvalidCodeSpec, code)
		}
	case DiscountFixed, DiscountTrialExtension:
		if s.DiscountValue <= 0 {
			return nil, fmt.Errorf("%w: %s: discount value must be positive", ErrInvalidCodeSpec, code)
		}
	}
	if s.MaxUses != nil && *s.MaxUses <= 0 {
		return nil, fmt.Errorf("%w: %s: max uses must be positive", ErrInvalidCodeSpec, code)
	}

	rc := &ReferralCode{
		ID:            uuid.New(),
		Code:          code,
		Description:   s.Description,
		DiscountType:  s.DiscountType,
		DiscountValue: s.DiscountValue,
		MaxUses:       s.MaxUses,
		IsActive:      true,
	}
	switch {
	case s.ExpiresAt != nil:
		t := s.ExpiresAt.UTC()
		rc.ExpiresAt = &t
	case s.ExpiresIn > 0:
		t := now.Add(s.ExpiresIn).UTC()
		rc.ExpiresAt = &t
	}
	return rc, nil
}

// SeedFile is the on-disk format for batches of codes.
type SeedFile struct {
	Codes []CodeSpec `yaml:"codes"`
}

// LoadSeedFile reads a YAML batch of code definitions.
func LoadSeedFile(path string) ([]CodeSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var file SeedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return file.Codes, nil
}

// Service provides referral code operations for handlers and tooling.
type Service struct {
	repo      Repository
	validator *Validator
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates a new referral service.
func NewService(repo Repository, validator *Validator, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:      repo,
		validator: validator,
		logger:    logger,
		now:       time.Now,
	}
}

// Check validates a code for display to userID. Besides the validity
// reasons it fails with ErrCodeAlreadyUsed if the user redeemed it before.
func (s *Service) Check(ctx context.Context, userID uuid.UUID, rawCode string) (*ReferralCode, error) {
	result, err := s.validator.Validate(ctx, rawCode, s.now())
	if err != nil {
		return nil, err
	}
	if !result.Valid() {
		return nil, result.Reason.Err()
	}

	used, err := s.repo.HasUsage(ctx, result.Code.ID, userID)
	if err != nil {
		return nil, err
	}
	if used {
		return nil, ErrCodeAlreadyUsed
	}
	return result.Code, nil
}

// CreateCode creates a single code.
func (s *Service) CreateCode(ctx context.Context, spec CodeSpec) (*ReferralCode, error) {
	rc, err := spec.toModel(s.now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, rc); err != nil {
		return nil, err
	}
	s.logger.Info("referral code created",
		zap.String("code", rc.Code),
		zap.String("discount_type", string(rc.DiscountType)),
		zap.Int("discount_value", rc.DiscountValue),
	)
	return rc, nil
}

// Deactivate permanently disables a code.
func (s *Service) Deactivate(ctx context.Context, rawCode string) error {
	code := Normalize(rawCode)
	if err := s.repo.SetActive(ctx, code, false); err != nil {
		return err
	}
	s.logger.Info("referral code deactivated", zap.String("code", code))
	return nil
}

// ListUsage returns the user's redemption history, newest first.
func (s *Service) ListUsage(ctx context.Context, userID uuid.UUID) ([]*ReferralCodeUsage, error) {
	return s.repo.ListUsageByUser(ctx, userID)
}

// Seed inserts the codes that do not exist yet. Existing codes are left untouched.
func (s *Service) Seed(ctx context.Context, specs []CodeSpec) (int64, error) {
	now := s.now()
	codes := make([]*ReferralCode, 0, len(specs))
	for _, spec := range specs {
		rc, err := spec.toModel(now)
		if err != nil {
			return 0, err
		}
		codes = append(codes, rc)
	}

	inserted, err := s.repo.CreateMissing(ctx, codes)
	if err != nil {
		return 0, err
	}
	s.logger.Info("referral codes seeded",
		zap.Int("requested", len(codes)),
		zap.Int64("inserted", inserted),
	)
	return inserted, nil
}
