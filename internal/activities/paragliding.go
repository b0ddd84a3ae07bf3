package activities

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Metadata keys recognized on paragliding reservations.
const (
	MetaFlightAltitudeM = "flight_altitude_m"
	MetaWingSize        = "wing_size"
)

// ParaglidingModule enforces tandem paragliding constraints. Weight bounds
// matter here: the wing is certified for a total load range and the
// tandem pilot (biplaceur) must be assigned before a flight is scheduled.
type ParaglidingModule struct{}

func NewParaglidingModule() *ParaglidingModule { return &ParaglidingModule{} }

func (m *ParaglidingModule) Kind() string { return KindParagliding }

func (m *ParaglidingModule) AllowedMetadataKeys() []string {
	return []string{MetaFlightAltitudeM, MetaWingSize}
}

func (m *ParaglidingModule) ValidateConstraints(ctx context.Context, in *BookingInput, cfg Config) error {
	if err := rangeBound("customer_weight", in.CustomerWeightKg, cfg.WeightKg); err != nil {
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

func (m *ParaglidingModule) BeforeReservationCreate(ctx context.Context, in *BookingInput, cfg Config) error {
	return nil
}

func (m *ParaglidingModule) AfterReservationCreate(ctx context.Context, reservationID uuid.UUID, in *BookingInput) error {
	return nil
}

// BeforeSessionSchedule rejects a flight with no tandem pilot assigned.
func (m *ParaglidingModule) BeforeSessionSchedule(ctx context.Context, check ScheduleCheck) error {
	for _, res := range check.Resources {
		if strings.HasPrefix(res, "pilot:") {
			return nil
		}
	}
	return fmt.Errorf("paragliding: no tandem pilot assigned")
}

func (m *ParaglidingModule) AfterSessionComplete(ctx context.Context, reservationID uuid.UUID, metadata map[string]string) error {
	return nil
}
