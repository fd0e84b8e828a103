package billing

import (
	"context"
)

// ProfileStore persists subscription profiles. Profiles are keyed by the
// directory account id, so repeated delivery of the same checkout event is
// idempotent at this layer regardless of what happened upstream.
type ProfileStore interface {
	// Upsert inserts the profile or updates the existing row for the same
	// account id.
	Upsert(ctx context.Context, profile *Profile) error

	// Activate flips a profile to active and pushes the trial boundary to
	// the far-future sentinel. Matches by provider customer id or email.
	// Returns false when no matching non-cancelled profile exists; the
	// caller treats that as a no-op, never an error. Cancelled profiles are
	// left untouched.
	Activate(ctx context.Context, customerID, email string) (bool, error)

	// Cancel flips a profile to cancelled. Matches by provider customer id
	// or email. Returns false when nothing matched.
	Cancel(ctx context.Context, customerID, email string) (bool, error)
}

// PendingPaymentStore records payments that could not be provisioned.
type PendingPaymentStore interface {
	// Insert stores the payment facts for manual reconciliation.
	Insert(ctx context.Context, payment *PendingPayment) error
}
