package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/glidebook/glidebook/pkg/logging"
)

// ledgerStore is the slice of Repository the ledger needs.
type ledgerStore interface {
	InsertAttempt(ctx context.Context, p *Payment) (*Payment, bool, error)
	GetByIntentID(ctx context.Context, intentID string) (*Payment, error)
	GetByChargeID(ctx context.Context, chargeID string) (*Payment, error)
	GetCapturedForReservation(ctx context.Context, orgID, reservationID uuid.UUID) (*Payment, error)
	MarkSucceeded(ctx context.Context, id uuid.UUID, chargeID string) (bool, error)
	MarkTerminal(ctx context.Context, id uuid.UUID, status, failureReason string) (bool, error)
	SetRefundedCents(ctx context.Context, id uuid.UUID, refundedCents int64) (bool, error)
}

// ReservationDriver is how ledger mutations feed back into the reservation
// state machine. Implemented by the reservations service; every method must
// be safe to call more than once for the same underlying gateway event.
type ReservationDriver interface {
	MarkPaymentAuthorized(ctx context.Context, orgID, reservationID uuid.UUID) error
	MarkCaptured(ctx context.Context, orgID, reservationID uuid.UUID, payment *Payment) error
	MarkPaymentFailed(ctx context.Context, orgID, reservationID uuid.UUID, canceled bool) error
	MarkRefunded(ctx context.Context, orgID, reservationID uuid.UUID, payment *Payment, partial bool) error
	StoreGatewayCorrelation(ctx context.Context, orgID, reservationID uuid.UUID, setupIntentID, paymentMethodID string) error
}

// Ledger owns payment ledger mutations and drives the reservation state
// machine off them. All operations are idempotent, order-tolerant merges:
// replaying a gateway event, or delivering a stale one late, never regresses
// persisted state.
type Ledger struct {
	store  ledgerStore
	driver ReservationDriver
	logger *logging.Logger
}

// NewLedger creates the payment ledger service.
func NewLedger(store ledgerStore, driver ReservationDriver, logger *logging.Logger) *Ledger {
	if logger == nil {
		logger = logging.Default()
	}
	return &Ledger{store: store, driver: driver, logger: logger}
}

// RecordAttempt records a payment attempt for a reservation, idempotent on
// the gateway intent id: a duplicate returns the existing row unchanged.
func (l *Ledger) RecordAttempt(ctx context.Context, orgID, reservationID uuid.UUID, typ string, amountCents int64, intentID string) (*Payment, error) {
	if intentID == "" {
		return nil, errors.New("payments: intent id required")
	}
	if amountCents <= 0 {
		return nil, fmt.Errorf("payments: invalid amount %d", amountCents)
	}
	switch typ {
	case TypeAuthorization, TypeCapture, TypeRefund:
	default:
		return nil, fmt.Errorf("payments: unknown attempt type %q", typ)
	}

	p, created, err := l.store.InsertAttempt(ctx, &Payment{
		OrgID:         orgID,
		ReservationID: reservationID,
		IntentID:      intentID,
		Type:          typ,
		AmountCents:   amountCents,
		Status:        StatusRequiresCapture,
	})
	if err != nil {
		return nil, err
	}
	if !created {
		l.logger.Debug("payment attempt replayed", "intent_id", intentID, "org_id", p.OrgID)
	}
	return p, nil
}

// ConfirmAuthorization applies a requires_capture gateway event: the hold
// succeeded. Drives the reservation's payment status to authorized. A late
// event for an already-captured payment is a no-op.
func (l *Ledger) ConfirmAuthorization(ctx context.Context, p *Payment) error {
	if p.Status != StatusRequiresCapture {
		// Stale event: the payment already progressed past authorization.
		return nil
	}
	return l.driver.MarkPaymentAuthorized(ctx, p.OrgID, p.ReservationID)
}

// ApplyCapture settles a capture outcome. On success the reservation is
// driven to authorized with payment status captured; on failure both the
// payment and the reservation become failed. Replays are no-ops.
func (l *Ledger) ApplyCapture(ctx context.Context, p *Payment, succeeded bool, chargeID, failureReason string) error {
	if succeeded {
		applied, err := l.store.MarkSucceeded(ctx, p.ID, chargeID)
		if err != nil {
			return err
		}
		if !applied && p.Status != StatusSucceeded {
			// Terminal payment cannot succeed afterwards.
			return &InvalidLedgerStateError{Op: "capture", Status: p.Status}
		}
		updated := *p
		updated.Status = StatusSucceeded
		if chargeID != "" {
			updated.ChargeID = chargeID
		}
		// Driving the reservation is itself guarded, so re-running it on a
		// replayed event is safe.
		return l.driver.MarkCaptured(ctx, p.OrgID, p.ReservationID, &updated)
	}

	applied, err := l.store.MarkTerminal(ctx, p.ID, StatusFailed, failureReason)
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}
	return l.driver.MarkPaymentFailed(ctx, p.OrgID, p.ReservationID, false)
}

// ApplyRefund raises the cumulative refunded amount from a gateway
// amount_refunded value in minor units. Monotone: a replayed or stale event
// with an equal or lower cumulative amount is a no-op.
func (l *Ledger) ApplyRefund(ctx context.Context, p *Payment, refundedCents int64) error {
	if refundedCents < 0 {
		return fmt.Errorf("payments: negative refund %d", refundedCents)
	}
	if refundedCents > p.AmountCents {
		return fmt.Errorf("%w: %d > %d", ErrRefundExceedsAmount, refundedCents, p.AmountCents)
	}
	if refundedCents <= p.RefundedCents {
		return nil
	}

	applied, err := l.store.SetRefundedCents(ctx, p.ID, refundedCents)
	if err != nil {
		return err
	}
	if !applied {
		// Lost the race to a concurrent, higher refund event.
		return nil
	}

	updated := *p
	updated.RefundedCents = refundedCents
	partial := refundedCents < p.AmountCents
	return l.driver.MarkRefunded(ctx, p.OrgID, p.ReservationID, &updated, partial)
}

// ApplyCancellation releases a pre-capture hold. Only legal while the
// payment still awaits capture; a captured payment can only be refunded.
func (l *Ledger) ApplyCancellation(ctx context.Context, p *Payment) error {
	switch p.Status {
	case StatusRequiresCapture:
	case StatusCanceled:
		return nil
	default:
		return &InvalidLedgerStateError{Op: "cancellation", Status: p.Status}
	}

	applied, err := l.store.MarkTerminal(ctx, p.ID, StatusCanceled, "")
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}
	// The gateway's canceled is kept distinct on the payment row; the
	// reservation's payment status maps it to failed.
	return l.driver.MarkPaymentFailed(ctx, p.OrgID, p.ReservationID, true)
}

// CapturedPayment looks up the captured payment backing a reservation.
func (l *Ledger) CapturedPayment(ctx context.Context, orgID, reservationID uuid.UUID) (*Payment, error) {
	return l.store.GetCapturedForReservation(ctx, orgID, reservationID)
}

// ByIntentID resolves a payment from a gateway intent id.
func (l *Ledger) ByIntentID(ctx context.Context, intentID string) (*Payment, error) {
	return l.store.GetByIntentID(ctx, intentID)
}

// ByChargeID resolves a payment from a gateway charge id.
func (l *Ledger) ByChargeID(ctx context.Context, chargeID string) (*Payment, error) {
	return l.store.GetByChargeID(ctx, chargeID)
}

// Correlate persists gateway setup-intent correlation onto the reservation.
func (l *Ledger) Correlate(ctx context.Context, orgID, reservationID uuid.UUID, setupIntentID, paymentMethodID string) error {
	return l.driver.StoreGatewayCorrelation(ctx, orgID, reservationID, setupIntentID, paymentMethodID)
}
