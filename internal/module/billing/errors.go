package billing

import "errors"

// Module errors.
var (
	ErrInvalidPlan        = errors.New("invalid subscription plan")
	ErrAlreadySubscribed  = errors.New("user already has a subscription")
	ErrBillingUnavailable = errors.New("billing provider unavailable")
	ErrBillingRejected    = errors.New("billing provider rejected the request")
	ErrPersistence        = errors.New("failed to persist subscription state")
)
