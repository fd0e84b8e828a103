package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeConfig holds Stripe credentials. The webhook secret authenticates
// inbound deliveries; the API key is only needed for customer lookups on
// lifecycle events.
type StripeConfig struct {
	APIKey        string `env:"STRIPE_SECRET_KEY,required"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET,required"`
}

// StripeProvider implements Provider on the official Stripe SDK.
type StripeProvider struct {
	api    *client.API
	secret string
}

// NewStripeProvider creates a Stripe-backed payment provider. Credentials
// are validated here so misconfiguration surfaces at startup, not on the
// first delivery.
func NewStripeProvider(cfg StripeConfig) (*StripeProvider, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.WebhookSecret == "" {
		return nil, ErrMissingWebhookSecret
	}

	return &StripeProvider{
		api:    client.New(cfg.APIKey, nil),
		secret: cfg.WebhookSecret,
	}, nil
}

// VerifyWebhook checks the Stripe-Signature header against the signing
// secret and normalizes the event. Signature failure is terminal for the
// request; a forged payload is never retried.
func (p *StripeProvider) VerifyWebhook(payload []byte, signature string) (*Event, error) {
	if signature == "" {
		return nil, ErrMissingSignature
	}

	ev, err := webhook.ConstructEventWithOptions(payload, signature, p.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, errors.Join(ErrInvalidSignature, err)
	}

	out := &Event{ID: ev.ID, Type: EventType(ev.Type)}

	switch out.Type {
	case EventCheckoutCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
		info := &CheckoutInfo{
			SessionID:   session.ID,
			AmountTotal: session.AmountTotal,
		}
		if session.CustomerDetails != nil {
			info.Email = session.CustomerDetails.Email
		}
		if session.Customer != nil {
			info.CustomerID = session.Customer.ID
		}
		out.Checkout = info

	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(ev.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("decode subscription: %w", err)
		}
		info := &SubscriptionInfo{
			ID:     sub.ID,
			Status: string(sub.Status),
		}
		if sub.Customer != nil {
			info.CustomerID = sub.Customer.ID
		}
		out.Subscription = info
	}

	return out, nil
}

// CustomerEmail retrieves the customer's billing email from Stripe.
func (p *StripeProvider) CustomerEmail(ctx context.Context, customerID string) (string, error) {
	if customerID == "" {
		return "", nil
	}

	cust, err := p.api.Customers.Get(customerID, &stripe.CustomerParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return "", fmt.Errorf("retrieve customer %s: %w", customerID, err)
	}
	return cust.Email, nil
}
