package billing

import "context"

// EventType identifies the billing events this service acts on. Anything
// else is acknowledged as a no-op so the sender never retries events we
// intentionally ignore.
type EventType string

const (
	EventCheckoutCompleted   EventType = "checkout.session.completed"
	EventSubscriptionUpdated EventType = "customer.subscription.updated"
	EventSubscriptionDeleted EventType = "customer.subscription.deleted"
)

// Event is a verified, normalized webhook event. Exactly one of Checkout or
// Subscription is set for the event types handled here.
type Event struct {
	ID   string
	Type EventType

	Checkout     *CheckoutInfo
	Subscription *SubscriptionInfo
}

// CheckoutInfo carries the payment facts from a completed checkout session.
type CheckoutInfo struct {
	SessionID  string
	Email      string
	CustomerID string
	// AmountTotal is in the smallest currency unit (cents for USD).
	AmountTotal int64
}

// Amount returns the paid amount in major currency units.
func (c CheckoutInfo) Amount() float64 {
	return float64(c.AmountTotal) / 100
}

// SubscriptionInfo carries the state from a subscription lifecycle event.
type SubscriptionInfo struct {
	ID         string
	CustomerID string
	Status     string
}

// Provider abstracts the payment processor. The implementation must verify
// the webhook signature before returning an event; an unverifiable payload
// is never processed.
type Provider interface {
	// VerifyWebhook validates the payload against the signature header and
	// returns the parsed event, or ErrInvalidSignature.
	VerifyWebhook(payload []byte, signature string) (*Event, error)

	// CustomerEmail resolves the billing email for a provider customer
	// reference. Used by lifecycle events, which carry no email of their own.
	CustomerEmail(ctx context.Context, customerID string) (string, error)
}
