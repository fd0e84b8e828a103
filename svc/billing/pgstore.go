package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reconcilebook/billingd/pkg/pg"
)

// PGProfileStore implements ProfileStore on PostgreSQL.
type PGProfileStore struct {
	pool *pgxpool.Pool
}

// NewPGProfileStore creates a Postgres-backed profile store.
func NewPGProfileStore(pool *pgxpool.Pool) *PGProfileStore {
	if pool == nil {
		panic("billing: pgxpool is required")
	}
	return &PGProfileStore{pool: pool}
}

func (s *PGProfileStore) Upsert(ctx context.Context, profile *Profile) error {
	const q = `
		INSERT INTO subscription_profiles
			(user_id, email, plan, status, stripe_customer_id, trial_ends_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		ON CONFLICT (user_id) DO UPDATE SET
			email              = EXCLUDED.email,
			plan               = EXCLUDED.plan,
			status             = EXCLUDED.status,
			stripe_customer_id = EXCLUDED.stripe_customer_id,
			trial_ends_at      = EXCLUDED.trial_ends_at,
			updated_at         = now()`

	_, err := s.pool.Exec(ctx, q,
		profile.UserID, profile.Email, profile.Plan, profile.Status,
		profile.StripeCustomerID, profile.TrialEndsAt,
	)
	if err != nil {
		return errors.Join(ErrProfileWriteFailed, err)
	}
	return nil
}

// Activate promotes a matched profile to active and disables the trial
// boundary. The status filter keeps cancelled profiles cancelled: a stale
// or out-of-order activation event must not resurrect them.
func (s *PGProfileStore) Activate(ctx context.Context, customerID, email string) (bool, error) {
	const q = `
		UPDATE subscription_profiles
		SET status = $1, trial_ends_at = $2, updated_at = now()
		WHERE (stripe_customer_id = $3 OR email = $4)
		  AND status <> $5`

	tag, err := s.pool.Exec(ctx, q,
		StatusActive, TrialEndSentinel, customerID, email, StatusCancelled,
	)
	if err != nil {
		return false, errors.Join(ErrProfileWriteFailed, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PGProfileStore) Cancel(ctx context.Context, customerID, email string) (bool, error) {
	const q = `
		UPDATE subscription_profiles
		SET status = $1, updated_at = now()
		WHERE (stripe_customer_id = $2 OR email = $3)
		  AND status <> $1`

	tag, err := s.pool.Exec(ctx, q, StatusCancelled, customerID, email)
	if err != nil {
		return false, errors.Join(ErrProfileWriteFailed, err)
	}
	return tag.RowsAffected() > 0, nil
}

// PGPendingPaymentStore implements PendingPaymentStore on PostgreSQL.
type PGPendingPaymentStore struct {
	pool *pgxpool.Pool
}

// NewPGPendingPaymentStore creates a Postgres-backed pending payment store.
func NewPGPendingPaymentStore(pool *pgxpool.Pool) *PGPendingPaymentStore {
	if pool == nil {
		panic("billing: pgxpool is required")
	}
	return &PGPendingPaymentStore{pool: pool}
}

func (s *PGPendingPaymentStore) Insert(ctx context.Context, payment *PendingPayment) error {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}

	const q = `
		INSERT INTO pending_payments
			(id, email, plan, stripe_customer_id, stripe_session_id, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.pool.Exec(ctx, q,
		payment.ID, payment.Email, payment.Plan,
		payment.StripeCustomerID, payment.StripeSessionID,
		payment.Amount, payment.CreatedAt,
	)
	if pg.IsDuplicateKeyError(err) {
		return ErrPendingPaymentExists
	}
	return err
}
