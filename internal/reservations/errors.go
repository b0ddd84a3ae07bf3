package reservations

import (
	"errors"
	"fmt"
)

var (
	// ErrReservationNotFound is returned when no reservation matches for
	// the org.
	ErrReservationNotFound = errors.New("reservation not found")

	// ErrUnknownMetadataKey is returned when a metadata write carries a
	// key neither the platform nor the activity module recognizes.
	ErrUnknownMetadataKey = errors.New("unknown metadata key")

	// ErrMissingIntentID is returned when a booking carries no gateway
	// payment intent.
	ErrMissingIntentID = errors.New("payment intent id is required")

	// ErrInvalidParticipants is returned for a non-positive participant
	// count.
	ErrInvalidParticipants = errors.New("participant count must be positive")
)

// ConflictError reports an optimistic-concurrency loss that persisted
// through the internal retry. The caller may retry the whole request.
type ConflictError struct {
	ReservationID string
	Attempted     string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("reservations: conflicting update on %s while transitioning to %s", e.ReservationID, e.Attempted)
}

// InvalidTransitionError reports a transition the state machine does not
// allow from the current status.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("reservations: transition %s -> %s not allowed", e.From, e.To)
}

// SchedulePreconditionError wraps an activity module's rejection of a
// schedule request. The reservation stays authorized.
type SchedulePreconditionError struct {
	Err error
}

func (e *SchedulePreconditionError) Error() string {
	return fmt.Sprintf("reservations: schedule precondition failed: %v", e.Err)
}

func (e *SchedulePreconditionError) Unwrap() error { return e.Err }
