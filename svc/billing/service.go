package billing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/reconcilebook/billingd/pkg/logger"
)

// DefaultTrialDays is the trial window granted on every completed checkout.
const DefaultTrialDays = 14

// Result is the business outcome of a processed webhook delivery. Exactly
// one of Received or Success is set: Received acknowledges events that
// produced no provisioning outcome, Success carries the payment facts.
type Result struct {
	Received bool

	Success bool
	Email   string
	Plan    PlanTier
	Amount  float64
	Message string
	UserID  string
}

// Service processes payment webhook events: it verifies deliveries,
// classifies paid amounts into plan tiers, provisions directory accounts,
// and maintains subscription profiles.
type Service struct {
	provider Provider
	dir      Directory
	profiles ProfileStore
	pending  PendingPaymentStore
	dedup    Deduper
	notifier Notifier
	catalog  Catalog
	log      *slog.Logger
	now      func() time.Time

	trialDays int
}

// ServiceOption configures optional service behavior.
type ServiceOption func(*Service)

// WithDeduper installs a webhook event deduper.
func WithDeduper(d Deduper) ServiceOption {
	return func(s *Service) {
		if d != nil {
			s.dedup = d
		}
	}
}

// WithNotifier installs an ops notifier for pending payments.
func WithNotifier(n Notifier) ServiceOption {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithCatalog replaces the default plan catalog.
func WithCatalog(c Catalog) ServiceOption {
	return func(s *Service) {
		if len(c.plans) > 0 {
			s.catalog = c
		}
	}
}

// WithLogger supplies a logger. If unset, logs are discarded.
func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithTrialDays overrides the trial window length.
func WithTrialDays(days int) ServiceOption {
	return func(s *Service) {
		if days > 0 {
			s.trialDays = days
		}
	}
}

// WithClock substitutes the time source, for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates the webhook processing service. Panics when a required
// dependency is nil to fail fast during initialization.
func NewService(provider Provider, dir Directory, profiles ProfileStore, pending PendingPaymentStore, opts ...ServiceOption) *Service {
	if provider == nil {
		panic("billing: Provider is required")
	}
	if dir == nil {
		panic("billing: Directory is required")
	}
	if profiles == nil {
		panic("billing: ProfileStore is required")
	}
	if pending == nil {
		panic("billing: PendingPaymentStore is required")
	}

	s := &Service{
		provider:  provider,
		dir:       dir,
		profiles:  profiles,
		pending:   pending,
		dedup:     NoopDeduper{},
		notifier:  NoopNotifier{},
		catalog:   DefaultCatalog(),
		log:       slog.New(slog.DiscardHandler),
		now:       time.Now,
		trialDays: DefaultTrialDays,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandleEvent verifies and processes one webhook delivery. Caller and
// configuration problems come back as errors for the transport layer to map
// onto HTTP statuses; business outcomes, including the pending payment
// fallback, come back as a Result so a captured payment is never answered
// with a retryable failure.
func (s *Service) HandleEvent(ctx context.Context, payload []byte, signature string) (*Result, error) {
	event, err := s.provider.VerifyWebhook(payload, signature)
	if err != nil {
		return nil, err
	}

	if event.ID != "" {
		seen, err := s.dedup.Seen(ctx, event.ID)
		if err != nil {
			// Dedup is best-effort; the profile upsert stays idempotent
			// without it.
			s.log.WarnContext(ctx, "event dedup unavailable", logger.EventID(event.ID), logger.Error(err))
		} else if seen {
			s.log.InfoContext(ctx, "duplicate event acknowledged", logger.EventID(event.ID))
			return &Result{Received: true}, nil
		}
	}

	var result *Result
	switch event.Type {
	case EventCheckoutCompleted:
		result, err = s.handleCheckoutCompleted(ctx, event)
	case EventSubscriptionUpdated:
		result, err = s.handleSubscriptionUpdated(ctx, event)
	case EventSubscriptionDeleted:
		result, err = s.handleSubscriptionDeleted(ctx, event)
	default:
		s.log.DebugContext(ctx, "unhandled event type acknowledged",
			logger.EventID(event.ID), slog.String("type", string(event.Type)))
		result = &Result{Received: true}
	}
	if err != nil {
		// The event stays unmarked so the sender's redelivery is
		// processed, not short-circuited.
		return nil, err
	}

	if event.ID != "" {
		if err := s.dedup.Mark(ctx, event.ID); err != nil {
			s.log.WarnContext(ctx, "event dedup mark failed", logger.EventID(event.ID), logger.Error(err))
		}
	}
	return result, nil
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, event *Event) (*Result, error) {
	checkout := event.Checkout
	if checkout == nil || checkout.Email == "" {
		return nil, ErrMissingEmail
	}

	amount := checkout.Amount()
	tier, anomalous := s.catalog.Classify(amount)
	if anomalous {
		s.log.WarnContext(ctx, "paid amount below lowest plan band, defaulting to starter",
			logger.EventID(event.ID), logger.Email(checkout.Email), slog.Float64("amount", amount))
	}

	s.log.InfoContext(ctx, "checkout completed",
		logger.EventID(event.ID), logger.Email(checkout.Email),
		logger.Plan(tier), slog.Float64("amount", amount))

	user, err := s.dir.FindUserByEmail(ctx, checkout.Email)
	switch {
	case err == nil:
		return s.writeProfile(ctx, user, checkout, tier)
	case errors.Is(err, ErrUserNotFound):
		return s.provisionAccount(ctx, event, checkout, tier)
	default:
		// Directory listing failure is terminal: without the lookup we
		// cannot tell a new customer from an existing one.
		return nil, err
	}
}

// provisionAccount creates a directory account for a first-time customer and
// writes its trial profile. Account creation failure does NOT fail the
// request: the payment is already captured, so the facts are parked in
// pending_payments and the delivery is acknowledged as a success. A non-2xx
// here would make the sender retry a payment that cannot be un-captured.
func (s *Service) provisionAccount(ctx context.Context, event *Event, checkout *CheckoutInfo, tier PlanTier) (*Result, error) {
	amount := checkout.Amount()

	user, err := s.dir.CreateUser(ctx, NewUser{
		Email:    checkout.Email,
		Password: ThrowawayPassword(),
		Metadata: map[string]any{
			"created_via":      "payment_webhook",
			"payment_amount":   amount,
			"plan_at_creation": string(tier),
		},
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			// Lost a provisioning race; whoever won owns the account now.
			existing, ferr := s.dir.FindUserByEmail(ctx, checkout.Email)
			if ferr != nil {
				return nil, ferr
			}
			return s.writeProfile(ctx, existing, checkout, tier)
		}

		s.log.ErrorContext(ctx, "account provisioning failed, recording pending payment",
			logger.EventID(event.ID), logger.Email(checkout.Email), logger.Error(err))
		s.recordPendingPayment(ctx, checkout, tier)

		return &Result{
			Success: true,
			Email:   checkout.Email,
			Plan:    tier,
			Amount:  amount,
			Message: "Payment recorded; account provisioning deferred for manual follow-up",
		}, nil
	}

	s.log.InfoContext(ctx, "account provisioned",
		logger.EventID(event.ID), logger.Email(user.Email), logger.UserID(user.ID))

	return s.writeProfile(ctx, user, checkout, tier)
}

// writeProfile upserts the trial profile for an account. Keyed by account
// id, so a redelivered checkout event rewrites the same row. The trial
// window is always counted from now, even for a returning customer whose
// previous trial lapsed.
func (s *Service) writeProfile(ctx context.Context, user *User, checkout *CheckoutInfo, tier PlanTier) (*Result, error) {
	now := s.now().UTC()
	profile := &Profile{
		UserID:           user.ID,
		Email:            user.Email,
		Plan:             tier,
		Status:           StatusTrial,
		StripeCustomerID: checkout.CustomerID,
		TrialEndsAt:      now.AddDate(0, 0, s.trialDays),
	}

	if err := s.profiles.Upsert(ctx, profile); err != nil {
		return nil, err
	}

	return &Result{
		Success: true,
		Email:   user.Email,
		Plan:    tier,
		Amount:  checkout.Amount(),
		Message: "Subscription activated successfully",
		UserID:  user.ID.String(),
	}, nil
}

// recordPendingPayment is the last-resort error path: best effort, failures
// are logged and swallowed because there is nothing left to fall back to.
func (s *Service) recordPendingPayment(ctx context.Context, checkout *CheckoutInfo, tier PlanTier) {
	payment := PendingPayment{
		Email:            checkout.Email,
		Plan:             tier,
		StripeCustomerID: checkout.CustomerID,
		StripeSessionID:  checkout.SessionID,
		Amount:           checkout.Amount(),
		CreatedAt:        s.now().UTC(),
	}

	switch err := s.pending.Insert(ctx, &payment); {
	case err == nil:
	case errors.Is(err, ErrPendingPaymentExists):
		s.log.InfoContext(ctx, "pending payment already recorded",
			logger.Email(payment.Email), slog.String("session_id", checkout.SessionID))
		return
	default:
		s.log.ErrorContext(ctx, "failed to record pending payment",
			logger.Email(payment.Email), logger.Error(err))
		return
	}

	if err := s.notifier.PendingPaymentRecorded(ctx, payment); err != nil {
		s.log.WarnContext(ctx, "pending payment alert failed",
			logger.Email(payment.Email), logger.Error(err))
	}
}

func (s *Service) handleSubscriptionUpdated(ctx context.Context, event *Event) (*Result, error) {
	sub := event.Subscription
	if sub == nil || sub.Status != "active" {
		return &Result{Received: true}, nil
	}

	email := s.resolveCustomerEmail(ctx, event, sub.CustomerID)

	matched, err := s.profiles.Activate(ctx, sub.CustomerID, email)
	if err != nil {
		return nil, err
	}
	if !matched {
		// No account for this customer: acknowledged as a no-op, never an
		// error, and never a reason to create one.
		s.log.InfoContext(ctx, "subscription activated for unknown customer, ignoring",
			logger.EventID(event.ID), logger.CustomerID(sub.CustomerID))
	} else {
		s.log.InfoContext(ctx, "subscription activated",
			logger.EventID(event.ID), logger.CustomerID(sub.CustomerID))
	}

	return &Result{Received: true}, nil
}

func (s *Service) handleSubscriptionDeleted(ctx context.Context, event *Event) (*Result, error) {
	sub := event.Subscription
	if sub == nil {
		return &Result{Received: true}, nil
	}

	email := s.resolveCustomerEmail(ctx, event, sub.CustomerID)

	matched, err := s.profiles.Cancel(ctx, sub.CustomerID, email)
	if err != nil {
		return nil, err
	}
	if !matched {
		s.log.InfoContext(ctx, "subscription cancelled for unknown customer, ignoring",
			logger.EventID(event.ID), logger.CustomerID(sub.CustomerID))
	} else {
		// Access revocation on cancellation is enforced elsewhere; this
		// flow only records the state change.
		s.log.InfoContext(ctx, "subscription cancelled",
			logger.EventID(event.ID), logger.CustomerID(sub.CustomerID))
	}

	return &Result{Received: true}, nil
}

// resolveCustomerEmail fetches the billing email for profile matching.
// Lifecycle events still match by stored customer id when the lookup fails,
// so a provider hiccup degrades matching instead of failing the delivery.
func (s *Service) resolveCustomerEmail(ctx context.Context, event *Event, customerID string) string {
	email, err := s.provider.CustomerEmail(ctx, customerID)
	if err != nil {
		s.log.WarnContext(ctx, "customer email lookup failed, matching by customer id only",
			logger.EventID(event.ID), logger.CustomerID(customerID), logger.Error(err))
		return ""
	}
	return email
}
