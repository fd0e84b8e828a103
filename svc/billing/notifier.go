package billing

import (
	"context"
	"fmt"
	"html"

	"github.com/reconcilebook/billingd/pkg/email"
)

// Notifier receives alerts about payments parked for manual reconciliation.
type Notifier interface {
	PendingPaymentRecorded(ctx context.Context, payment PendingPayment) error
}

// EmailNotifier sends pending payment alerts to an operations inbox.
type EmailNotifier struct {
	sender email.EmailSender
	to     string
}

// NewEmailNotifier creates an email-backed notifier.
func NewEmailNotifier(sender email.EmailSender, to string) *EmailNotifier {
	if sender == nil {
		panic("billing: email sender is required")
	}
	return &EmailNotifier{sender: sender, to: to}
}

func (n *EmailNotifier) PendingPaymentRecorded(ctx context.Context, payment PendingPayment) error {
	body := fmt.Sprintf(
		"<p>A payment was captured but the account could not be provisioned.</p>"+
			"<ul>"+
			"<li>Email: %s</li>"+
			"<li>Plan: %s</li>"+
			"<li>Amount: %.2f</li>"+
			"<li>Customer: %s</li>"+
			"<li>Session: %s</li>"+
			"</ul>"+
			"<p>The payment is recorded in pending_payments and needs manual follow-up.</p>",
		html.EscapeString(payment.Email),
		html.EscapeString(string(payment.Plan)),
		payment.Amount,
		html.EscapeString(payment.StripeCustomerID),
		html.EscapeString(payment.StripeSessionID),
	)

	return n.sender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   n.to,
		Subject:  fmt.Sprintf("Pending payment: %s (%s)", payment.Email, payment.Plan),
		BodyHTML: body,
		Tag:      "pending-payment",
	})
}

// NoopNotifier discards alerts.
type NoopNotifier struct{}

func (NoopNotifier) PendingPaymentRecorded(ctx context.Context, payment PendingPayment) error {
	return nil
}
