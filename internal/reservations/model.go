package reservations

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Reservation lifecycle statuses. Cancelled and Failed are terminal;
// cancellation is a status, never a row removal.
const (
	StatusPending    = "pending"
	StatusAuthorized = "authorized"
	StatusScheduled  = "scheduled"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
	StatusFailed     = "failed"
)

// Payment sub-statuses, tracked orthogonally to the lifecycle status.
const (
	PaymentPending           = "pending"
	PaymentAuthorized        = "authorized"
	PaymentCaptured          = "captured"
	PaymentRefunded          = "refunded"
	PaymentPartiallyRefunded = "partially_refunded"
	PaymentFailed            = "failed"
)

// Platform-wide metadata keys, recognized on every reservation regardless
// of activity kind. Activity modules contribute their own keys.
const (
	MetaSetupIntentID   = "setup_intent_id"
	MetaPaymentMethodID = "payment_method_id"
	MetaRefundPending   = "refund_pending"
)

var platformMetadataKeys = []string{MetaSetupIntentID, MetaPaymentMethodID, MetaRefundPending}

// Metadata is the reservation's structured side-channel. Only recognized
// keys are accepted: the platform set plus the activity module's declared
// keys. Unknown keys are rejected deterministically, never stored.
type Metadata map[string]string

// Validate checks every key against the allowed set.
func (m Metadata) Validate(moduleKeys []string) error {
	for key := range m {
		if !containsKey(platformMetadataKeys, key) && !containsKey(moduleKeys, key) {
			return fmt.Errorf("%w: %q", ErrUnknownMetadataKey, key)
		}
	}
	return nil
}

func containsKey(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

// Reservation belongs to an organization and an activity. Its ID doubles as
// the external uuid and is immutable; status mutations go through guarded
// updates only.
type Reservation struct {
	ID            uuid.UUID  `json:"id"`
	OrgID         uuid.UUID  `json:"org_id"`
	ActivityID    uuid.UUID  `json:"activity_id"`
	ActivityKind  string     `json:"activity_kind"`
	Status        string     `json:"status"`
	PaymentStatus string     `json:"payment_status"`
	CustomerName  string     `json:"customer_name"`
	CustomerEmail string     `json:"customer_email"`
	Participants  int        `json:"participants"`
	Metadata      Metadata   `json:"metadata,omitempty"`
	ScheduledAt   *time.Time `json:"scheduled_at,omitempty"`
	Resources     []string   `json:"resources,omitempty"`
	CancelReason  string     `json:"cancel_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Terminal reports whether the lifecycle status admits no further
// transitions.
func (r *Reservation) Terminal() bool {
	switch r.Status {
	case StatusCompleted, StatusCancelled, StatusFailed:
		return true
	}
	return false
}
