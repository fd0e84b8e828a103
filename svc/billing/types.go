package billing

import (
	"time"

	"github.com/google/uuid"
)

// PlanTier is one of the fixed subscription service levels.
type PlanTier string

const (
	TierStarter      PlanTier = "starter"
	TierProfessional PlanTier = "professional"
	TierEnterprise   PlanTier = "enterprise"
)

// Status is the lifecycle state of a subscription profile.
type Status string

const (
	StatusTrial     Status = "trial"
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
)

// CanTransition reports whether a status change is allowed by the lifecycle:
// trial moves to active or cancelled, active moves to cancelled. A cancelled
// profile is never automatically reactivated; a fresh checkout is the only
// way back in, and that path writes trial, not active.
func (s Status) CanTransition(to Status) bool {
	switch s {
	case StatusTrial:
		return to == StatusActive || to == StatusCancelled
	case StatusActive:
		return to == StatusCancelled
	default:
		return false
	}
}

// TrialEndSentinel is written as the trial boundary when a subscription
// converts to active: far enough in the future that no trial check ever
// trips again for the lifetime of the subscription.
var TrialEndSentinel = time.Date(2099, time.December, 31, 0, 0, 0, 0, time.UTC)

// Profile is the subscription record kept one-to-one with a directory
// account, keyed by the account id.
type Profile struct {
	UserID           uuid.UUID
	Email            string
	Plan             PlanTier
	Status           Status
	StripeCustomerID string
	TrialEndsAt      time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PendingPayment is a durable record of a captured payment that could not be
// matched to an account. Resolution is a manual process.
type PendingPayment struct {
	ID               uuid.UUID
	Email            string
	Plan             PlanTier
	StripeCustomerID string
	StripeSessionID  string
	Amount           float64
	CreatedAt        time.Time
}
