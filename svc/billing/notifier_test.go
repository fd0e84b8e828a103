package billing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reconcilebook/billingd/pkg/email"
	"github.com/reconcilebook/billingd/svc/billing"
)

type capturingSender struct {
	sent []email.SendEmailParams
}

func (s *capturingSender) SendEmail(ctx context.Context, params email.SendEmailParams) error {
	s.sent = append(s.sent, params)
	return nil
}

func TestEmailNotifier_PendingPaymentRecorded(t *testing.T) {
	sender := &capturingSender{}
	n := billing.NewEmailNotifier(sender, "ops@reconcilebook.com")

	err := n.PendingPaymentRecorded(context.Background(), billing.PendingPayment{
		Email:            "new@example.com",
		Plan:             billing.TierProfessional,
		Amount:           79.00,
		StripeCustomerID: "cus_1",
		StripeSessionID:  "cs_1",
	})
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "ops@reconcilebook.com", msg.SendTo)
	assert.Contains(t, msg.Subject, "new@example.com")
	assert.Contains(t, msg.BodyHTML, "new@example.com")
	assert.Contains(t, msg.BodyHTML, "79.00")
	assert.Contains(t, msg.BodyHTML, "cs_1")
	assert.Equal(t, "pending-payment", msg.Tag)
}

func TestEmailNotifier_EscapesContent(t *testing.T) {
	sender := &capturingSender{}
	n := billing.NewEmailNotifier(sender, "ops@reconcilebook.com")

	err := n.PendingPaymentRecorded(context.Background(), billing.PendingPayment{
		Email: `<script>alert("x")</script>@example.com`,
		Plan:  billing.TierStarter,
	})
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	assert.NotContains(t, sender.sent[0].BodyHTML, "<script>")
}

func TestNewEmailNotifier_RequiresSender(t *testing.T) {
	assert.Panics(t, func() {
		billing.NewEmailNotifier(nil, "ops@reconcilebook.com")
	})
}
