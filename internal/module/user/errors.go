package user

import "errors"

// Module errors.
var (
	ErrUserNotFound            = errors.New("user not found")
	ErrInvalidStatusTransition = errors.New("invalid subscription status transition")
	ErrConcurrentUpdate        = errors.New("user was modified concurrently")
)
