package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists the payment ledger. Rows are append-only apart from
// guarded status and refund-amount updates.
type Repository struct {
	pool querier
}

// NewRepository creates a repository backed by pgx.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("payments: pgx pool required")
	}
	return &Repository{pool: pool}
}

// NewRepositoryWithQuerier allows injecting mocks for tests.
func NewRepositoryWithQuerier(q querier) *Repository {
	return &Repository{pool: q}
}

const paymentColumns = `id, org_id, reservation_id, intent_id, COALESCE(charge_id, ''), type, amount_cents, refunded_cents, status, COALESCE(failure_reason, ''), created_at, updated_at`

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	if err := row.Scan(
		&p.ID,
		&p.OrgID,
		&p.ReservationID,
		&p.IntentID,
		&p.ChargeID,
		&p.Type,
		&p.AmountCents,
		&p.RefundedCents,
		&p.Status,
		&p.FailureReason,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

// InsertAttempt records a payment attempt, idempotent on (org, intent id).
// If a row already exists for the intent id it is returned unchanged and
// created is false.
func (r *Repository) InsertAttempt(ctx context.Context, p *Payment) (*Payment, bool, error) {
	query := `
		INSERT INTO payments (id, org_id, reservation_id, intent_id, type, amount_cents, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (org_id, intent_id) DO NOTHING
		RETURNING ` + paymentColumns
	row, err := scanPayment(r.pool.QueryRow(ctx, query,
		uuid.New(),
		p.OrgID,
		p.ReservationID,
		p.IntentID,
		p.Type,
		p.AmountCents,
		p.Status,
	))
	if err == nil {
		return row, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("payments: insert attempt: %w", err)
	}

	existing, err := r.GetByIntentID(ctx, p.IntentID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// GetByIntentID fetches a payment by its gateway payment-intent id. Intent
// ids are globally unique by schema, so the lookup needs no org scope: the
// webhook path resolves the owning org from the row itself.
func (r *Repository) GetByIntentID(ctx context.Context, intentID string) (*Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE intent_id = $1`
	p, err := scanPayment(r.pool.QueryRow(ctx, query, intentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("payments: load by intent id: %w", err)
	}
	return p, nil
}

// GetByChargeID fetches a payment by its gateway charge id. Charge ids are
// globally unique by schema, like intent ids.
func (r *Repository) GetByChargeID(ctx context.Context, chargeID string) (*Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE charge_id = $1`
	p, err := scanPayment(r.pool.QueryRow(ctx, query, chargeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("payments: load by charge id: %w", err)
	}
	return p, nil
}

// GetCapturedForReservation returns the captured payment for a reservation,
// if any, scoped to the org.
func (r *Repository) GetCapturedForReservation(ctx context.Context, orgID, reservationID uuid.UUID) (*Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE org_id = $1 AND reservation_id = $2 AND status = 'succeeded'
		ORDER BY created_at DESC
		LIMIT 1
	`
	p, err := scanPayment(r.pool.QueryRow(ctx, query, orgID, reservationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("payments: load captured for reservation: %w", err)
	}
	return p, nil
}

// MarkSucceeded promotes a payment to succeeded. The guard only matches
// requires_capture so a replayed event or a stale downgrade is a no-op;
// applied is true only on the first application.
func (r *Repository) MarkSucceeded(ctx context.Context, id uuid.UUID, chargeID string) (bool, error) {
	query := `
		UPDATE payments
		SET status = 'succeeded',
		    charge_id = COALESCE(NULLIF($2, ''), charge_id),
		    updated_at = now()
		WHERE id = $1 AND status = 'requires_capture'
	`
	ct, err := r.pool.Exec(ctx, query, id, chargeID)
	if err != nil {
		return false, fmt.Errorf("payments: mark succeeded: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// MarkTerminal moves a payment from requires_capture to canceled or failed.
// Captured payments never match the guard; they can only be refunded.
func (r *Repository) MarkTerminal(ctx context.Context, id uuid.UUID, status, failureReason string) (bool, error) {
	if status != StatusCanceled && status != StatusFailed {
		return false, fmt.Errorf("payments: %q is not a terminal status", status)
	}
	query := `
		UPDATE payments
		SET status = $2,
		    failure_reason = NULLIF($3, ''),
		    updated_at = now()
		WHERE id = $1 AND status = 'requires_capture'
	`
	ct, err := r.pool.Exec(ctx, query, id, status, failureReason)
	if err != nil {
		return false, fmt.Errorf("payments: mark terminal: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// SetRefundedCents raises the cumulative refunded amount. The guard keeps
// the amount monotone and capped, so a replayed or out-of-order refund
// event cannot lower it.
func (r *Repository) SetRefundedCents(ctx context.Context, id uuid.UUID, refundedCents int64) (bool, error) {
	query := `
		UPDATE payments
		SET refunded_cents = $2, updated_at = now()
		WHERE id = $1 AND refunded_cents < $2 AND $2 <= amount_cents
	`
	ct, err := r.pool.Exec(ctx, query, id, refundedCents)
	if err != nil {
		return false, fmt.Errorf("payments: set refunded: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}
