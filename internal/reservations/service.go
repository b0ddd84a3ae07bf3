package reservations

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/glidebook/glidebook/internal/activities"
	"github.com/glidebook/glidebook/internal/events"
	"github.com/glidebook/glidebook/internal/observability/metrics"
	"github.com/glidebook/glidebook/internal/payments"
	"github.com/glidebook/glidebook/internal/worker/compensation"
	"github.com/glidebook/glidebook/pkg/logging"
)

type store interface {
	Create(ctx context.Context, res *Reservation) (*Reservation, error)
	GetForOrg(ctx context.Context, orgID, id uuid.UUID) (*Reservation, error)
	TransitionStatus(ctx context.Context, orgID, id uuid.UUID, to string, from []string) (bool, error)
	MarkScheduled(ctx context.Context, orgID, id uuid.UUID, scheduledAt time.Time, resources []string) (bool, error)
	MarkCancelled(ctx context.Context, orgID, id uuid.UUID, reason string) (bool, error)
	SetPaymentStatus(ctx context.Context, orgID, id uuid.UUID, to string, from []string) (bool, error)
	MergeMetadata(ctx context.Context, orgID, id uuid.UUID, kv map[string]string) error
	RemoveMetadataKey(ctx context.Context, orgID, id uuid.UUID, key string) error
}

type activitySource interface {
	GetForOrg(ctx context.Context, orgID, id uuid.UUID) (*activities.Activity, error)
}

type moduleResolver interface {
	Resolve(kind string) (activities.Module, error)
}

type paymentLedger interface {
	RecordAttempt(ctx context.Context, orgID, reservationID uuid.UUID, typ string, amountCents int64, intentID string) (*payments.Payment, error)
	CapturedPayment(ctx context.Context, orgID, reservationID uuid.UUID) (*payments.Payment, error)
}

type outboxWriter interface {
	Insert(ctx context.Context, orgID uuid.UUID, eventType string, payload any) (uuid.UUID, error)
}

type refundQueue interface {
	Enqueue(job compensation.RefundJob) bool
}

// CreateRequest is the booking entry point's input.
type CreateRequest struct {
	OrgID              uuid.UUID
	ActivityID         uuid.UUID
	CustomerName       string
	CustomerEmail      string
	CustomerAge        int
	CustomerWeightKg   int
	CustomerHeightCm   int
	CertificationLevel string
	Participants       int
	Metadata           Metadata
	PaymentType        string // authorization or capture
	PaymentMethodID    string
	IntentID           string
	AmountCents        int64
}

// ScheduleRequest is the operator schedule action's input.
type ScheduleRequest struct {
	OrgID         uuid.UUID
	ReservationID uuid.UUID
	ScheduledAt   time.Time
	Resources     []string
}

// Service drives the reservation lifecycle. All status writes go through
// guarded updates; a lost race is retried exactly once against the freshly
// observed state before surfacing a conflict.
type Service struct {
	repo       store
	activities activitySource
	modules    moduleResolver
	ledger     paymentLedger
	outbox     outboxWriter
	refunds    refundQueue
	metrics    *metrics.ReservationMetrics
	logger     *logging.Logger
}

// NewService wires the reservation engine.
func NewService(
	repo store,
	activitySrc activitySource,
	modules moduleResolver,
	ledger paymentLedger,
	outbox outboxWriter,
	refunds refundQueue,
	m *metrics.ReservationMetrics,
	logger *logging.Logger,
) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:       repo,
		activities: activitySrc,
		modules:    modules,
		ledger:     ledger,
		outbox:     outbox,
		refunds:    refunds,
		metrics:    m,
		logger:     logger,
	}
}

// Create validates a booking against the activity's module, creates the
// reservation in pending and records the initial payment attempt.
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*Reservation, error) {
	if req.Participants <= 0 {
		return nil, ErrInvalidParticipants
	}
	if req.IntentID == "" {
		return nil, ErrMissingIntentID
	}
	paymentType := req.PaymentType
	switch paymentType {
	case "":
		paymentType = payments.TypeAuthorization
	case payments.TypeAuthorization, payments.TypeCapture:
	default:
		return nil, errors.New("reservations: payment type must be authorization or capture")
	}

	activity, err := s.activities.GetForOrg(ctx, req.OrgID, req.ActivityID)
	if err != nil {
		return nil, err
	}
	module, err := s.modules.Resolve(activity.Kind)
	if err != nil {
		return nil, err
	}
	cfg, err := activity.Config()
	if err != nil {
		return nil, err
	}

	if err := req.Metadata.Validate(module.AllowedMetadataKeys()); err != nil {
		return nil, err
	}

	input := &activities.BookingInput{
		CustomerName:       req.CustomerName,
		CustomerEmail:      req.CustomerEmail,
		CustomerAge:        req.CustomerAge,
		CustomerWeightKg:   req.CustomerWeightKg,
		CustomerHeightCm:   req.CustomerHeightCm,
		CertificationLevel: req.CertificationLevel,
		Participants:       req.Participants,
	}
	if err := module.ValidateConstraints(ctx, input, cfg); err != nil {
		return nil, err
	}
	if err := module.BeforeReservationCreate(ctx, input, cfg); err != nil {
		return nil, err
	}

	metadata := Metadata{}
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	if req.PaymentMethodID != "" {
		metadata[MetaPaymentMethodID] = req.PaymentMethodID
	}

	res, err := s.repo.Create(ctx, &Reservation{
		OrgID:         req.OrgID,
		ActivityID:    activity.ID,
		ActivityKind:  activity.Kind,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		Participants:  req.Participants,
		Metadata:      metadata,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.ledger.RecordAttempt(ctx, req.OrgID, res.ID, paymentType, req.AmountCents, req.IntentID); err != nil {
		return nil, err
	}

	if err := module.AfterReservationCreate(ctx, res.ID, input); err != nil {
		// After-hooks are best effort: the reservation already exists.
		s.logger.Warn("after-create hook failed", "error", err, "reservation_id", res.ID, "kind", activity.Kind)
	}

	if err := s.emit(ctx, req.OrgID, events.TypeReservationCreated, events.ReservationCreatedV1{
		EventID:     uuid.NewString(),
		OccurredAt:  time.Now().UTC(),
		Reservation: snapshot(res),
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// Get returns a reservation scoped to the org.
func (s *Service) Get(ctx context.Context, orgID, id uuid.UUID) (*Reservation, error) {
	return s.repo.GetForOrg(ctx, orgID, id)
}

// Schedule applies the operator schedule action. The module's
// before-schedule hook may reject, which keeps the reservation authorized.
func (s *Service) Schedule(ctx context.Context, req *ScheduleRequest) (*Reservation, error) {
	res, err := s.repo.GetForOrg(ctx, req.OrgID, req.ReservationID)
	if err != nil {
		return nil, err
	}

	module, err := s.modules.Resolve(res.ActivityKind)
	if err != nil {
		return nil, err
	}
	if err := module.BeforeSessionSchedule(ctx, activities.ScheduleCheck{
		ScheduledAt: req.ScheduledAt,
		Resources:   req.Resources,
		Metadata:    res.Metadata,
	}); err != nil {
		return nil, &SchedulePreconditionError{Err: err}
	}

	err = s.transition(ctx, req.OrgID, req.ReservationID, res.Status, StatusScheduled, func() (bool, error) {
		return s.repo.MarkScheduled(ctx, req.OrgID, req.ReservationID, req.ScheduledAt, req.Resources)
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.GetForOrg(ctx, req.OrgID, req.ReservationID)
	if err != nil {
		return nil, err
	}
	if err := s.emit(ctx, req.OrgID, events.TypeReservationScheduled, events.ReservationScheduledV1{
		EventID:     uuid.NewString(),
		OccurredAt:  time.Now().UTC(),
		Reservation: snapshot(updated),
		Resources:   req.Resources,
	}); err != nil {
		return nil, err
	}
	return updated, nil
}

// Complete marks the session executed. The payment must already be
// captured: completed implies money in hand.
func (s *Service) Complete(ctx context.Context, orgID, id uuid.UUID) (*Reservation, error) {
	res, err := s.repo.GetForOrg(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	switch res.PaymentStatus {
	case PaymentCaptured, PaymentPartiallyRefunded:
	default:
		return nil, &InvalidTransitionError{From: res.Status, To: StatusCompleted}
	}

	err = s.transition(ctx, orgID, id, res.Status, StatusCompleted, func() (bool, error) {
		return s.repo.TransitionStatus(ctx, orgID, id, StatusCompleted, statusSources[StatusCompleted])
	})
	if err != nil {
		return nil, err
	}

	module, err := s.modules.Resolve(res.ActivityKind)
	if err == nil {
		if hookErr := module.AfterSessionComplete(ctx, id, res.Metadata); hookErr != nil {
			s.logger.Warn("after-complete hook failed", "error", hookErr, "reservation_id", id)
		}
	}

	updated, err := s.repo.GetForOrg(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if err := s.emit(ctx, orgID, events.TypeReservationCompleted, events.ReservationCompletedV1{
		EventID:     uuid.NewString(),
		OccurredAt:  time.Now().UTC(),
		Reservation: snapshot(updated),
	}); err != nil {
		return nil, err
	}
	return updated, nil
}

// Cancel terminates a non-terminal reservation. If money was already
// captured, a compensating refund request is enqueued before the
// cancellation is considered reconciled: the reservation carries a
// refund-pending marker until the refund webhook settles it.
func (s *Service) Cancel(ctx context.Context, orgID, id uuid.UUID, reason string) (*Reservation, error) {
	res, err := s.repo.GetForOrg(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if res.Status == StatusCancelled {
		return res, nil
	}
	if res.Terminal() {
		return nil, &InvalidTransitionError{From: res.Status, To: StatusCancelled}
	}

	err = s.transition(ctx, orgID, id, res.Status, StatusCancelled, func() (bool, error) {
		return s.repo.MarkCancelled(ctx, orgID, id, reason)
	})
	if err != nil {
		return nil, err
	}

	refundPending := false
	captured, err := s.ledger.CapturedPayment(ctx, orgID, id)
	if err != nil && !errors.Is(err, payments.ErrPaymentNotFound) {
		return nil, err
	}
	if captured != nil && captured.RefundedCents < captured.AmountCents {
		remaining := captured.AmountCents - captured.RefundedCents
		if err := s.repo.MergeMetadata(ctx, orgID, id, map[string]string{MetaRefundPending: "true"}); err != nil {
			return nil, err
		}
		refundPending = true

		enqueued := s.refunds.Enqueue(compensation.RefundJob{
			OrgID:         orgID,
			ReservationID: id,
			ChargeID:      captured.ChargeID,
			AmountCents:   remaining,
			Reason:        reason,
		})
		if !enqueued {
			s.logger.Error("refund enqueue failed, left pending for reconciliation", "reservation_id", id)
		}

		updated, getErr := s.repo.GetForOrg(ctx, orgID, id)
		if getErr != nil {
			return nil, getErr
		}
		if err := s.emit(ctx, orgID, events.TypeRefundRequested, events.RefundRequestedV1{
			EventID:     uuid.NewString(),
			OccurredAt:  time.Now().UTC(),
			Reservation: snapshot(updated),
			Payment:     paymentSnapshot(captured),
			AmountCents: remaining,
			Reason:      reason,
		}); err != nil {
			return nil, err
		}
	}

	updated, err := s.repo.GetForOrg(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if err := s.emit(ctx, orgID, events.TypeReservationCancelled, events.ReservationCancelledV1{
		EventID:       uuid.NewString(),
		OccurredAt:    time.Now().UTC(),
		Reservation:   snapshot(updated),
		Reason:        reason,
		RefundPending: refundPending,
	}); err != nil {
		return nil, err
	}
	return updated, nil
}

// transition runs a guarded update, retrying once against fresh state when
// a concurrent writer won the first race. from is the status the caller
// last observed; it labels the fast-path metric.
func (s *Service) transition(ctx context.Context, orgID, id uuid.UUID, from, to string, apply func() (bool, error)) error {
	applied, err := apply()
	if err != nil {
		return err
	}
	if applied {
		s.metrics.ObserveTransition(from, to)
		return nil
	}

	s.metrics.ObserveConflict()
	current, err := s.repo.GetForOrg(ctx, orgID, id)
	if err != nil {
		return err
	}
	if current.Status == to {
		return nil
	}
	if !CanTransition(current.Status, to) {
		return &InvalidTransitionError{From: current.Status, To: to}
	}

	applied, err = apply()
	if err != nil {
		return err
	}
	if !applied {
		return &ConflictError{ReservationID: id.String(), Attempted: to}
	}
	s.metrics.ObserveTransition(current.Status, to)
	return nil
}

func (s *Service) emit(ctx context.Context, orgID uuid.UUID, eventType string, payload any) error {
	if _, err := s.outbox.Insert(ctx, orgID, eventType, payload); err != nil {
		s.logger.Error("failed to enqueue outbox", "error", err, "type", eventType)
		return err
	}
	return nil
}

func snapshot(r *Reservation) events.ReservationSnapshot {
	return events.ReservationSnapshot{
		UUID:          r.ID.String(),
		OrgID:         r.OrgID.String(),
		ActivityID:    r.ActivityID.String(),
		ActivityKind:  r.ActivityKind,
		Status:        r.Status,
		PaymentStatus: r.PaymentStatus,
		Participants:  r.Participants,
		Metadata:      r.Metadata,
		ScheduledAt:   r.ScheduledAt,
	}
}

func paymentSnapshot(p *payments.Payment) events.PaymentSnapshot {
	return events.PaymentSnapshot{
		IntentID:      p.IntentID,
		ChargeID:      p.ChargeID,
		Type:          p.Type,
		AmountCents:   p.AmountCents,
		RefundedCents: p.RefundedCents,
		Status:        p.Status,
	}
}
