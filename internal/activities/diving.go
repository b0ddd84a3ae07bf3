package activities

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Metadata keys recognized on diving reservations.
const (
	MetaCertificationLevel = "certification_level"
	MetaMaxDepthM          = "max_depth_m"
)

// certificationRank orders recognized certification levels.
var certificationRank = map[string]int{
	"none":       0,
	"open_water": 1,
	"advanced":   2,
	"rescue":     3,
	"divemaster": 4,
	"instructor": 5,
}

// DivingModule enforces dive constraints: certification level, minimum
// age, and a boat assignment before a dive is scheduled.
type DivingModule struct{}

func NewDivingModule() *DivingModule { return &DivingModule{} }

func (m *DivingModule) Kind() string { return KindDiving }

func (m *DivingModule) AllowedMetadataKeys() []string {
	return []string{MetaCertificationLevel, MetaMaxDepthM}
}

func (m *DivingModule) ValidateConstraints(ctx context.Context, in *BookingInput, cfg Config) error {
	if err := minBound("customer_age", in.CustomerAge, cfg.MinAge); err != nil {
		return err
	}
	if cfg.MinCertification != "" {
		required, ok := certificationRank[cfg.MinCertification]
		if !ok {
			return fmt.Errorf("diving: unknown required certification %q", cfg.MinCertification)
		}
		have, ok := certificationRank[in.CertificationLevel]
		if !ok || have < required {
			return &ConstraintViolationError{
				Field: "certification_level",
				Value: have,
				Bound: fmt.Sprintf("minimum %s", cfg.MinCertification),
			}
		}
	}
	return nil
}

func (m *DivingModule) BeforeReservationCreate(ctx context.Context, in *BookingInput, cfg Config) error {
	return nil
}

func (m *DivingModule) AfterReservationCreate(ctx context.Context, reservationID uuid.UUID, in *BookingInput) error {
	return nil
}

// BeforeSessionSchedule rejects a dive with no boat assigned.
func (m *DivingModule) BeforeSessionSchedule(ctx context.Context, check ScheduleCheck) error {
	for _, res := range check.Resources {
		if strings.HasPrefix(res, "boat:") {
			return nil
		}
	}
	return fmt.Errorf("diving: no boat assigned")
}

func (m *DivingModule) AfterSessionComplete(ctx context.Context, reservationID uuid.UUID, metadata map[string]string) error {
	return nil
}
