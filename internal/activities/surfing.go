package activities

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Metadata keys recognized on surfing reservations.
const (
	MetaTideLevel = "tide_level"
	MetaBoardType = "board_type"
)

// SurfingModule enforces surf lesson constraints: height bounds for board
// sizing, minimum age, and a tide-level precondition before scheduling.
type SurfingModule struct{}

func NewSurfingModule() *SurfingModule { return &SurfingModule{} }

func (m *SurfingModule) Kind() string { return KindSurfing }

func (m *SurfingModule) AllowedMetadataKeys() []string {
	return []string{MetaTideLevel, MetaBoardType}
}

func (m *SurfingModule) ValidateConstraints(ctx context.Context, in *BookingInput, cfg Config) error {
	if err := rangeBound("customer_height", in.CustomerHeightCm, cfg.HeightCm); err != nil {
		return err
	}
	if err := minBound("customer_age", in.CustomerAge, cfg.MinAge); err != nil {
		return err
	}
	if cfg.MaxParticipants > 0 && in.Participants > cfg.MaxParticipants {
		return &ConstraintViolationError{
			Field: "participants",
			Value: in.Participants,
			Bound: fmt.Sprintf("maximum %d", cfg.MaxParticipants),
		}
	}
	return nil
}

func (m *SurfingModule) BeforeReservationCreate(ctx context.Context, in *BookingInput, cfg Config) error {
	return nil
}

func (m *SurfingModule) AfterReservationCreate(ctx context.Context, reservationID uuid.UUID, in *BookingInput) error {
	return nil
}

// BeforeSessionSchedule requires a known tide level for the session slot.
func (m *SurfingModule) BeforeSessionSchedule(ctx context.Context, check ScheduleCheck) error {
	tide := check.Metadata[MetaTideLevel]
	switch tide {
	case "low", "mid", "high":
		return nil
	case "":
		return fmt.Errorf("surfing: tide level not recorded for session")
	default:
		return fmt.Errorf("surfing: unknown tide level %q", tide)
	}
}

func (m *SurfingModule) AfterSessionComplete(ctx context.Context, reservationID uuid.UUID, metadata map[string]string) error {
	return nil
}
