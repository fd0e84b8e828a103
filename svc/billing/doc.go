// Package billing processes payment processor webhooks for ReconcileBook:
// it verifies signed deliveries, classifies paid amounts into plan tiers,
// provisions accounts in the identity directory, and maintains subscription
// profiles through their trial/active/cancelled lifecycle.
//
// The central policy of this flow is asymmetric failure handling: caller and
// configuration problems fail the request so the sender can act on them, but
// once a payment is captured, provisioning problems are absorbed: the facts
// are parked in pending_payments for manual reconciliation and the delivery
// is acknowledged, because answering a captured payment with a retryable
// error only produces duplicate side effects.
package billing
