package referral

import "errors"

// Module errors.
var (
	ErrCodeNotFound          = errors.New("referral code not found")
	ErrCodeInactive          = errors.New("referral code is inactive")
	ErrCodeExpired           = errors.New("referral code has expired")
	ErrCodeUsageLimitReached = errors.New("referral code usage limit reached")
	ErrCodeAlreadyUsed       = errors.New("referral code already used by this user")
	ErrCodeExists            = errors.New("referral code already exists")
	ErrInvalidCodeSpec       = errors.New("invalid referral code definition")
)
