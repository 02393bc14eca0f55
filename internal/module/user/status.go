package user

// SubscriptionStatus is the local view of the user's subscription.
type SubscriptionStatus string

const (
	StatusNone     SubscriptionStatus = "none"
	StatusTrialing SubscriptionStatus = "trialing"
	StatusActive   SubscriptionStatus = "active"
	StatusPastDue  SubscriptionStatus = "past_due"
	StatusCanceled SubscriptionStatus = "canceled"
)

// IsValid checks if the status is known.
func (s SubscriptionStatus) IsValid() bool {
	switch s {
	case StatusNone, StatusTrialing, StatusActive, StatusPastDue, StatusCanceled:
		return true
	}
	return false
}

// allowedTransitions lists the forward moves. Staying put is always allowed.
var allowedTransitions = map[SubscriptionStatus][]SubscriptionStatus{
	StatusNone:     {StatusTrialing, StatusPastDue, StatusCanceled},
	StatusTrialing: {StatusActive, StatusPastDue, StatusCanceled},
	StatusActive:   {StatusPastDue, StatusCanceled},
	StatusPastDue:  {StatusActive, StatusCanceled},
	StatusCanceled: {},
}

// CanTransitionTo reports whether moving from s to next is permitted.
// Reapplying the current status is a permitted no-op, which makes
// redelivered notifications harmless.
func (s SubscriptionStatus) CanTransitionTo(next SubscriptionStatus) bool {
	if !next.IsValid() {
		return false
	}
	if s == "" {
		s = StatusNone
	}
	if s == next {
		return true
	}
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
