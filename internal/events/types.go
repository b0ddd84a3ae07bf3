package events

import "time"

// Event type names as written to the outbox.
const (
	TypeReservationCreated   = "reservation_created.v1"
	TypeReservationScheduled = "reservation_scheduled.v1"
	TypeReservationCancelled = "reservation_cancelled.v1"
	TypeReservationCompleted = "reservation_completed.v1"
	TypePaymentCaptured      = "payment_captured.v1"
	TypeRefundRequested      = "refund_requested.v1"
)

// ReservationSnapshot is the reservation state at emission time. Events
// carry the whole snapshot so downstream consumers never read back.
type ReservationSnapshot struct {
	UUID          string            `json:"uuid"`
	OrgID         string            `json:"org_id"`
	ActivityID    string            `json:"activity_id"`
	ActivityKind  string            `json:"activity_kind"`
	Status        string            `json:"status"`
	PaymentStatus string            `json:"payment_status"`
	Participants  int               `json:"participants"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	ScheduledAt   *time.Time        `json:"scheduled_at,omitempty"`
}

// PaymentSnapshot is the ledger row state at emission time.
type PaymentSnapshot struct {
	IntentID      string `json:"intent_id"`
	ChargeID      string `json:"charge_id,omitempty"`
	Type          string `json:"type"`
	AmountCents   int64  `json:"amount_cents"`
	RefundedCents int64  `json:"refunded_cents"`
	Status        string `json:"status"`
}

type ReservationCreatedV1 struct {
	EventID     string              `json:"event_id"`
	OccurredAt  time.Time           `json:"occurred_at"`
	Reservation ReservationSnapshot `json:"reservation"`
}

type ReservationScheduledV1 struct {
	EventID     string              `json:"event_id"`
	OccurredAt  time.Time           `json:"occurred_at"`
	Reservation ReservationSnapshot `json:"reservation"`
	Resources   []string            `json:"resources,omitempty"`
}

type ReservationCancelledV1 struct {
	EventID     string              `json:"event_id"`
	OccurredAt  time.Time           `json:"occurred_at"`
	Reservation ReservationSnapshot `json:"reservation"`
	Reason      string              `json:"reason"`
	// RefundPending marks a cancellation whose captured payment still
	// awaits its compensating refund.
	RefundPending bool `json:"refund_pending,omitempty"`
}

type ReservationCompletedV1 struct {
	EventID     string              `json:"event_id"`
	OccurredAt  time.Time           `json:"occurred_at"`
	Reservation ReservationSnapshot `json:"reservation"`
}

type PaymentCapturedV1 struct {
	EventID     string              `json:"event_id"`
	OccurredAt  time.Time           `json:"occurred_at"`
	Reservation ReservationSnapshot `json:"reservation"`
	Payment     PaymentSnapshot     `json:"payment"`
}

type RefundRequestedV1 struct {
	EventID     string              `json:"event_id"`
	OccurredAt  time.Time           `json:"occurred_at"`
	Reservation ReservationSnapshot `json:"reservation"`
	Payment     PaymentSnapshot     `json:"payment"`
	AmountCents int64               `json:"amount_cents"`
	Reason      string              `json:"reason"`
}
