package billing

import "errors"

var (
	// Caller errors: reject with 400, the sender must not retry.
	ErrMissingSignature = errors.New("missing stripe-signature header")
	ErrInvalidSignature = errors.New("webhook signature verification failed")
	ErrMissingEmail     = errors.New("no customer email in checkout session")

	// Configuration errors: reject with 500, operator-fixable.
	ErrMissingWebhookSecret = errors.New("webhook signing secret is not configured")
	ErrMissingAPIKey        = errors.New("billing provider API key is not configured")
	ErrMissingServiceKey    = errors.New("identity service role key is not configured")
	ErrMissingProjectURL    = errors.New("identity project URL is not configured")

	// Downstream failures: reject with 500, surfaced with details.
	ErrDirectoryUnavailable = errors.New("identity directory listing failed")
	ErrProfileWriteFailed   = errors.New("subscription profile write failed")

	// Identity resolution.
	ErrUserNotFound = errors.New("no account exists for email")
	ErrEmailTaken   = errors.New("account already exists for email")

	// ErrPendingPaymentExists reports that the checkout session is already
	// parked for reconciliation; a redelivery must not alert ops again.
	ErrPendingPaymentExists = errors.New("pending payment already recorded for session")

	// Plan catalog.
	ErrInvalidCatalog = errors.New("invalid plan catalog")
)
