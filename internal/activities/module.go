package activities

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind identifiers for the sealed module set.
const (
	KindParagliding = "paragliding"
	KindSurfing     = "surfing"
	KindDiving      = "diving"
)

// BookingInput carries the customer facts a module validates before a
// reservation is created.
type BookingInput struct {
	CustomerName       string
	CustomerEmail      string
	CustomerAge        int
	CustomerWeightKg   int
	CustomerHeightCm   int
	CertificationLevel string
	Participants       int
}

// ScheduleCheck is what a module sees before a session is scheduled.
type ScheduleCheck struct {
	ScheduledAt time.Time
	Resources   []string
	Metadata    map[string]string
}

// Module is a stateless policy object for one activity family. Hooks run
// inside state machine transitions: before-hooks abort the transition on
// error, after-hook errors are logged by the caller and swallowed.
type Module interface {
	Kind() string

	// ValidateConstraints rejects bookings outside the configured bounds.
	// The returned error names the violated bound.
	ValidateConstraints(ctx context.Context, in *BookingInput, cfg Config) error

	// AllowedMetadataKeys lists the reservation metadata keys this module
	// recognizes, beyond the platform-wide ones.
	AllowedMetadataKeys() []string

	BeforeReservationCreate(ctx context.Context, in *BookingInput, cfg Config) error
	AfterReservationCreate(ctx context.Context, reservationID uuid.UUID, in *BookingInput) error
	BeforeSessionSchedule(ctx context.Context, check ScheduleCheck) error
	AfterSessionComplete(ctx context.Context, reservationID uuid.UUID, metadata map[string]string) error
}

// ConstraintViolationError reports a booking value outside a configured bound.
type ConstraintViolationError struct {
	Field string
	Value int
	Bound string
}

func (e *ConstraintViolationError) Error() string {
	return fmt.Sprintf("activities: %s %d violates bound %s", e.Field, e.Value, e.Bound)
}

func rangeBound(field string, value int, r *Range) error {
	if r == nil {
		return nil
	}
	if value < r.Min || value > r.Max {
		return &ConstraintViolationError{
			Field: field,
			Value: value,
			Bound: fmt.Sprintf("[%d, %d]", r.Min, r.Max),
		}
	}
	return nil
}

func minBound(field string, value, min int) error {
	if min <= 0 {
		return nil
	}
	if value < min {
		return &ConstraintViolationError{
			Field: field,
			Value: value,
			Bound: fmt.Sprintf("minimum %d", min),
		}
	}
	return nil
}
