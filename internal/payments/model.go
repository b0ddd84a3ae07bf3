package payments

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Attempt types. A payment row records one attempt against the gateway.
const (
	TypeAuthorization = "authorization"
	TypeCapture       = "capture"
	TypeRefund        = "refund"
)

// Payment statuses. requires_capture is the only live status; succeeded
// payments move money again only through the monotone refunded amount, and
// canceled/failed are terminal. The gateway's canceled is kept distinct
// from failed on purpose.
const (
	StatusRequiresCapture = "requires_capture"
	StatusSucceeded       = "succeeded"
	StatusCanceled        = "canceled"
	StatusFailed          = "failed"
)

// ErrPaymentNotFound is returned when no payment matches a lookup.
var ErrPaymentNotFound = errors.New("payments: not found")

// ErrRefundExceedsAmount is returned when a cumulative refund would exceed
// the captured amount.
var ErrRefundExceedsAmount = errors.New("payments: refund exceeds amount")

// Payment is one ledger row. Amounts are minor units end to end; display
// conversion happens at the edge, never here.
type Payment struct {
	ID            uuid.UUID `json:"id"`
	OrgID         uuid.UUID `json:"org_id"`
	ReservationID uuid.UUID `json:"reservation_id"`
	IntentID      string    `json:"intent_id"`
	ChargeID      string    `json:"charge_id,omitempty"`
	Type          string    `json:"type"`
	AmountCents   int64     `json:"amount_cents"`
	RefundedCents int64     `json:"refunded_cents"`
	Status        string    `json:"status"`
	FailureReason string    `json:"failure_reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// FullyRefunded reports whether the whole captured amount has been
// returned.
func (p *Payment) FullyRefunded() bool {
	return p.AmountCents > 0 && p.RefundedCents >= p.AmountCents
}

// InvalidLedgerStateError is returned when a gateway event asks for a
// transition the payment's terminal status forbids, such as capturing a
// canceled payment.
type InvalidLedgerStateError struct {
	Op     string
	Status string
}

func (e *InvalidLedgerStateError) Error() string {
	return fmt.Sprintf("payments: %s not allowed in status %q", e.Op, e.Status)
}

// GatewayError wraps a failed call to the payment gateway.
type GatewayError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payments: gateway %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("payments: gateway %s: status %d", e.Op, e.StatusCode)
}

func (e *GatewayError) Unwrap() error { return e.Err }
